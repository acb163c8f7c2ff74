package dataset

import (
	"bytes"
	"encoding/json"
	"testing"

	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/pkg/types"
)

func entrySchema() *types.Schema {
	return &types.Schema{
		Index: "ts",
		Columns: []types.ColumnDef{
			{Name: "ts", Type: types.Int64},
			{Name: "v", Type: types.Float64},
		},
	}
}

// makeEntry writes a real data file in memory and returns its entry.
func makeEntry(t *testing.T, path string, ts []int64, vs []float64) FileEntry {
	t.Helper()
	var buf bytes.Buffer
	fw, err := file.NewWriter(&buf, entrySchema(), file.WriterOptions{Engine: "legacy", Compression: "none"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	frag := &types.Table{Index: "ts", Columns: []types.Column{
		types.NewInt64Column("ts", ts),
		types.NewFloat64Column("v", vs),
	}}
	if err := fw.WriteRowGroup(frag); err != nil {
		t.Fatalf("WriteRowGroup failed: %v", err)
	}
	footer, err := fw.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return FileEntry{Path: path, Footer: footer}
}

func TestMerge_BuildsIndex(t *testing.T) {
	entries := []FileEntry{
		makeEntry(t, "part.0.dsk", []int64{1, 2}, []float64{0.1, 0.2}),
		makeEntry(t, "part.1.dsk", []int64{3, 4}, []float64{0.3, 0.4}),
	}
	m, err := Merge(entries, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if m.NumRows() != 4 {
		t.Errorf("num rows: got %d, want 4", m.NumRows())
	}
	if len(m.Files) != 2 {
		t.Errorf("files: got %d, want 2", len(m.Files))
	}
	common := m.Common()
	if common.NumFiles != 2 || common.Schema.Index != "ts" {
		t.Errorf("common metadata: %+v", common)
	}
}

func TestMerge_RejectsMismatchedFooters(t *testing.T) {
	a := makeEntry(t, "a.dsk", []int64{1}, []float64{0.1})
	b := makeEntry(t, "b.dsk", []int64{2}, []float64{0.2})
	b.Footer.Schema = &types.Schema{Columns: []types.ColumnDef{
		{Name: "ts", Type: types.Int64},
		{Name: "other", Type: types.Float64},
	}}
	if _, err := Merge([]FileEntry{a, b}, "", nil); err == nil {
		t.Error("expected mismatched column sets to fail merge")
	}

	b = makeEntry(t, "b.dsk", []int64{2}, []float64{0.2})
	b.Footer.Schema.Columns[1].Type = types.Int64
	if _, err := Merge([]FileEntry{a, b}, "", nil); err == nil {
		t.Error("expected dtype conflict to fail merge")
	}

	if _, err := Merge(nil, "", nil); err == nil {
		t.Error("expected empty merge to fail")
	}
}

func TestMetadata_JSONRoundTripKeepsStatTypes(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1, 9}, []float64{0.1, 0.9})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back Metadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	chunk, ok := back.Files[0].Footer.Chunk(0, "ts")
	if !ok {
		t.Fatal("ts chunk missing after round trip")
	}
	if chunk.Stats.Min != int64(1) || chunk.Stats.Max != int64(9) {
		t.Errorf("stats retyping: min=%T %v max=%T %v",
			chunk.Stats.Min, chunk.Stats.Min, chunk.Stats.Max, chunk.Stats.Max)
	}
}

func TestDivisions_FromStats(t *testing.T) {
	m, err := Merge([]FileEntry{
		makeEntry(t, "a.dsk", []int64{1, 5}, []float64{0, 0}),
		makeEntry(t, "b.dsk", []int64{5, 9}, []float64{0, 0}),
	}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	// touching boundaries (5 == 5) are allowed
	divs := m.Divisions("ts")
	want := []int64{1, 5, 9}
	if len(divs) != len(want) {
		t.Fatalf("divisions: got %v, want %v", divs, want)
	}
	for i, w := range want {
		if divs[i] != w {
			t.Fatalf("divisions: got %v, want %v", divs, want)
		}
	}
}

func TestDivisions_OverlapDegradesToUnknown(t *testing.T) {
	m, err := Merge([]FileEntry{
		makeEntry(t, "a.dsk", []int64{1, 6}, []float64{0, 0}),
		makeEntry(t, "b.dsk", []int64{5, 9}, []float64{0, 0}),
	}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if divs := m.Divisions("ts"); divs != nil {
		t.Errorf("expected unknown divisions for overlapping files, got %v", divs)
	}
	if divs := m.Divisions(""); divs != nil {
		t.Errorf("expected no divisions without an index, got %v", divs)
	}
}

func TestValidateAppend_ColumnMismatch(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1}, []float64{0})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	incoming := &types.Schema{Columns: []types.ColumnDef{
		{Name: "ts", Type: types.Int64},
		{Name: "other", Type: types.Float64},
	}}
	_, err = ValidateAppend(m, incoming, nil, AppendOptions{WriteIndex: true})
	if !daskerrors.IsSchemaMismatch(err) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	var de *daskerrors.DatasetError
	if !asDatasetError(err, &de) || de.Message != "Appended columns do not match" {
		t.Errorf("message: got %v", err)
	}
}

func TestValidateAppend_DTypeMismatch(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1}, []float64{0})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	incoming := entrySchema()
	incoming.Columns[1].Type = types.Int64
	_, err = ValidateAppend(m, incoming, nil, AppendOptions{WriteIndex: true})
	if !daskerrors.IsSchemaMismatch(err) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	var de *daskerrors.DatasetError
	if !asDatasetError(err, &de) || de.Message != "Appended dtypes do not match" {
		t.Errorf("message: got %v", err)
	}
}

func TestValidateAppend_DivisionOverlap(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1, 10}, []float64{0, 0})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	_, err = ValidateAppend(m, entrySchema(), []any{int64(5), int64(20)}, AppendOptions{WriteIndex: true})
	if !daskerrors.IsDivisionOverlap(err) {
		t.Fatalf("expected division overlap, got %v", err)
	}
	var de *daskerrors.DatasetError
	if !asDatasetError(err, &de) || de.Message != "Appended divisions overlap" {
		t.Errorf("message: got %v", err)
	}

	// ignore_divisions accepts the overlap but loses ordering
	known, err := ValidateAppend(m, entrySchema(), []any{int64(5), int64(20)},
		AppendOptions{WriteIndex: true, IgnoreDivisions: true})
	if err != nil {
		t.Fatalf("expected overlap to be accepted, got %v", err)
	}
	if known {
		t.Error("expected unknown divisions after ignored overlap")
	}
}

func TestValidateAppend_TouchingBoundaryAllowed(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1, 10}, []float64{0, 0})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	known, err := ValidateAppend(m, entrySchema(), []any{int64(10), int64(20)}, AppendOptions{WriteIndex: true})
	if err != nil {
		t.Fatalf("touching boundary rejected: %v", err)
	}
	if !known {
		t.Error("expected divisions to stay known")
	}
}

func TestValidateAppend_NoIndexOnIndexedDataset(t *testing.T) {
	m, err := Merge([]FileEntry{makeEntry(t, "a.dsk", []int64{1}, []float64{0})}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	// the existing layout materializes the index, the new write does not
	_, err = ValidateAppend(m, entrySchema(), nil, AppendOptions{WriteIndex: false})
	if !daskerrors.IsSchemaMismatch(err) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func asDatasetError(err error, out **daskerrors.DatasetError) bool {
	de, ok := err.(*daskerrors.DatasetError)
	if !ok {
		return false
	}
	*out = de
	return true
}
