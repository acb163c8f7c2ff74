package dataset

import (
	"context"
	"strings"
	"testing"
)

func TestVerify_CleanDataset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f0 := putDataFile(t, store, "ds/part.0.dsk", []int64{1, 2, 3})
	f1 := putDataFile(t, store, "ds/part.1.dsk", []int64{4, 5})
	m, err := Merge([]FileEntry{
		{Path: "part.0.dsk", Footer: f0},
		{Path: "part.1.dsk", Footer: f1},
	}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := Commit(ctx, store, "ds", m); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	result, err := Verify(ctx, store, "ds")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected clean dataset, got errors %v", result.Errors)
	}
	if result.Files != 2 || result.Rows != 5 {
		t.Errorf("result: files=%d rows=%d, want 2 files 5 rows", result.Files, result.Rows)
	}
}

func TestVerify_MissingDataFile(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f0 := putDataFile(t, store, "ds/part.0.dsk", []int64{1, 2, 3})
	m, err := Merge([]FileEntry{{Path: "part.0.dsk", Footer: f0}}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := Commit(ctx, store, "ds", m); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := store.Delete(ctx, "ds/part.0.dsk"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	result, err := Verify(ctx, store, "ds")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Valid || len(result.Errors) == 0 {
		t.Error("expected the missing file to be reported")
	}
}

func TestVerify_StaleIndex(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	f0 := putDataFile(t, store, "ds/part.0.dsk", []int64{1, 2, 3})
	m, err := Merge([]FileEntry{{Path: "part.0.dsk", Footer: f0}}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := Commit(ctx, store, "ds", m); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	// the file is replaced after the commit; the index is now stale
	putDataFile(t, store, "ds/part.0.dsk", []int64{1, 2, 3, 4, 5})

	result, err := Verify(ctx, store, "ds")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Valid {
		t.Fatal("expected the stale index to be reported")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e, "rows on storage") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors: %v", result.Errors)
	}
}
