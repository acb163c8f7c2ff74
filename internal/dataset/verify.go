package dataset

import (
	"context"
	"fmt"
	"path"

	"github.com/sheppard/dask/internal/storage"
)

// VerifyResult is the outcome of checking a dataset's committed index
// against the footers actually on storage.
type VerifyResult struct {
	Valid bool
	Files int
	Rows  int64

	Errors []string
}

func (r *VerifyResult) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Verify re-reads every data file footer and compares it to the committed
// aggregate index: file presence, row counts, row group shapes and engine.
// It reads footers only, never chunk data.
func Verify(ctx context.Context, store storage.ObjectStore, location string) (*VerifyResult, error) {
	m, root, err := Discover(ctx, store, location)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true, Files: len(m.Files)}
	var totalRows int64
	for _, entry := range m.Files {
		actual, err := ReadFooter(ctx, store, path.Join(root, entry.Path))
		if err != nil {
			result.addError("%s: %v", entry.Path, err)
			continue
		}
		committed := entry.Footer
		if actual.NumRows != committed.NumRows {
			result.addError("%s: %d rows on storage, index records %d",
				entry.Path, actual.NumRows, committed.NumRows)
		}
		if len(actual.RowGroups) != len(committed.RowGroups) {
			result.addError("%s: %d row groups on storage, index records %d",
				entry.Path, len(actual.RowGroups), len(committed.RowGroups))
		}
		if actual.Engine != committed.Engine {
			result.addError("%s: written by engine %q, index records %q",
				entry.Path, actual.Engine, committed.Engine)
		}
		if !m.Schema.SameColumnSet(actual.Schema) {
			result.addError("%s: schema columns diverge from the dataset schema", entry.Path)
		}
		totalRows += actual.NumRows
	}
	result.Rows = totalRows

	if indexed := m.NumRows(); totalRows != indexed && result.Valid {
		result.addError("dataset holds %d rows, index records %d", totalRows, indexed)
	}
	return result, nil
}
