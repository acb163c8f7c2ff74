// Package dataset maintains the dataset-wide metadata index: the aggregate
// `_metadata` file merging every data file's footer, the schema-only
// `_common_metadata` summary, append-time validation and division
// derivation. An optional SQLite catalog caches the merged index for
// SQL-shaped pruning over large datasets.
package dataset

import (
	"encoding/json"
	"fmt"

	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/pkg/types"
)

const (
	// MetadataFile is the aggregate index with per-row-group statistics.
	MetadataFile = "_metadata"

	// CommonMetadataFile is the schema-only summary for fast discovery.
	CommonMetadataFile = "_common_metadata"

	// DataFileSuffix marks data files produced by this format.
	DataFileSuffix = ".dsk"
)

// FileEntry is one data file in the dataset index.
type FileEntry struct {
	// Path is relative to the dataset root
	Path string

	// Footer is the file's parsed footer
	Footer *file.Footer
}

// Metadata is the dataset-wide index: an ordered sequence of file entries
// plus the merged schema and partitioning layout. It is created on first
// write, extended in place on append and fully rebuilt on a non-append
// write; reads treat a loaded Metadata as an immutable snapshot.
type Metadata struct {
	Version          int           `json:"version"`
	Schema           *types.Schema `json:"schema"`
	PartitionScheme  string        `json:"partition_scheme,omitempty"`
	PartitionColumns []string      `json:"partition_columns,omitempty"`
	Files            []FileEntry   `json:"files"`
}

// CommonMetadata is the statistics-free summary mirrored alongside the
// aggregate index.
type CommonMetadata struct {
	Version          int           `json:"version"`
	Schema           *types.Schema `json:"schema"`
	PartitionScheme  string        `json:"partition_scheme,omitempty"`
	PartitionColumns []string      `json:"partition_columns,omitempty"`
	NumFiles         int           `json:"num_files"`
}

type fileEntryJSON struct {
	Path   string          `json:"path"`
	Footer json.RawMessage `json:"footer"`
}

// MarshalJSON keeps the footer as nested JSON.
func (e FileEntry) MarshalJSON() ([]byte, error) {
	footer, err := e.Footer.Marshal()
	if err != nil {
		return nil, err
	}
	return json.Marshal(fileEntryJSON{Path: e.Path, Footer: footer})
}

// UnmarshalJSON parses the footer through the stat-retyping footer parser.
func (e *FileEntry) UnmarshalJSON(data []byte) error {
	var raw fileEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	footer, err := file.UnmarshalFooter(raw.Footer)
	if err != nil {
		return fmt.Errorf("dataset: entry %q: %w", raw.Path, err)
	}
	e.Path = raw.Path
	e.Footer = footer
	return nil
}

// NumRows returns the total row count across all files.
func (m *Metadata) NumRows() int64 {
	var n int64
	for _, e := range m.Files {
		n += e.Footer.NumRows
	}
	return n
}

// Common derives the schema-only summary.
func (m *Metadata) Common() *CommonMetadata {
	return &CommonMetadata{
		Version:          m.Version,
		Schema:           m.Schema,
		PartitionScheme:  m.PartitionScheme,
		PartitionColumns: m.PartitionColumns,
		NumFiles:         len(m.Files),
	}
}

// Merge builds a Metadata from per-file footers, validating that every file
// exposes a mergeable schema: identical column set and compatible dtypes.
func Merge(entries []FileEntry, scheme string, partitionColumns []string) (*Metadata, error) {
	if len(entries) == 0 {
		return nil, daskerrors.New(daskerrors.ErrCategoryMetadata, daskerrors.CodeNoDataFiles,
			"no data files to merge")
	}
	base := entries[0].Footer.Schema
	for _, e := range entries[1:] {
		s := e.Footer.Schema
		if !base.SameColumnSet(s) {
			return nil, daskerrors.Wrap(daskerrors.ErrCategoryMetadata, daskerrors.CodeFooterMismatch,
				fmt.Sprintf("file %q schema columns differ from %q", e.Path, entries[0].Path), nil)
		}
		if conflicts := base.DTypeConflicts(s); len(conflicts) > 0 {
			return nil, daskerrors.Wrap(daskerrors.ErrCategoryMetadata, daskerrors.CodeFooterMismatch,
				fmt.Sprintf("file %q dtypes differ on %v", e.Path, conflicts), nil)
		}
	}
	return &Metadata{
		Version:          file.FormatVersion,
		Schema:           base.Clone(),
		PartitionScheme:  scheme,
		PartitionColumns: partitionColumns,
		Files:            entries,
	}, nil
}

// Extend appends new entries in order, preserving the existing ones. The
// incoming entries must already have been validated for append.
func (m *Metadata) Extend(entries []FileEntry) {
	m.Files = append(m.Files, entries...)
}

// Clone returns a copy whose file list can be extended without mutating
// the receiver. Footers and schema are shared; neither is modified in
// place anywhere.
func (m *Metadata) Clone() *Metadata {
	out := *m
	out.Files = append([]FileEntry(nil), m.Files...)
	out.PartitionColumns = append([]string(nil), m.PartitionColumns...)
	return &out
}

// IndexRange returns the index column's [min, max] for one file, folding
// every row group's statistics. ok is false when any statistic is missing.
func (e *FileEntry) IndexRange(index string) (min, max any, ok bool) {
	for i := range e.Footer.RowGroups {
		chunk, found := e.Footer.Chunk(i, index)
		if !found || chunk.Stats.Min == nil || chunk.Stats.Max == nil {
			return nil, nil, false
		}
		if min == nil {
			min, max = chunk.Stats.Min, chunk.Stats.Max
			continue
		}
		if cmp, err := types.Compare(chunk.Stats.Min, min); err != nil {
			return nil, nil, false
		} else if cmp < 0 {
			min = chunk.Stats.Min
		}
		if cmp, err := types.Compare(chunk.Stats.Max, max); err != nil {
			return nil, nil, false
		} else if cmp > 0 {
			max = chunk.Stats.Max
		}
	}
	if min == nil {
		return nil, nil, false
	}
	return min, max, true
}

// Divisions derives partition divisions from per-file index statistics.
// Returns nil (unknown) unless every file carries index statistics and the
// ranges are non-decreasing and non-overlapping across the file order;
// degradation is silent, never an error.
func (m *Metadata) Divisions(index string) []any {
	if index == "" || len(m.Files) == 0 {
		return nil
	}
	divs := make([]any, 0, len(m.Files)+1)
	var prevMax any
	for i := range m.Files {
		min, max, ok := m.Files[i].IndexRange(index)
		if !ok {
			return nil
		}
		if cmp, err := types.Compare(min, max); err != nil || cmp > 0 {
			return nil
		}
		if prevMax != nil {
			// boundaries may touch: new min equal to old max is allowed
			if cmp, err := types.Compare(min, prevMax); err != nil || cmp < 0 {
				return nil
			}
		}
		divs = append(divs, min)
		prevMax = max
	}
	return append(divs, prevMax)
}
