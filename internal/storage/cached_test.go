package storage

import (
	"context"
	"sync/atomic"
	"testing"
)

// countingStore wraps a LocalStore and counts backing Get calls.
type countingStore struct {
	*LocalStore
	gets atomic.Int64
}

func (s *countingStore) Get(ctx context.Context, path string) ([]byte, error) {
	s.gets.Add(1)
	return s.LocalStore.Get(ctx, path)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return &countingStore{LocalStore: local}
}

func TestCachedStore_HitAvoidsBackingRead(t *testing.T) {
	backing := newCountingStore(t)
	cached, err := NewCachedStore(backing, t.TempDir(), 1<<20, ".dsk")
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	ctx := context.Background()

	if err := cached.Put(ctx, "ds/part.0.dsk", []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		data, err := cached.Get(ctx, "ds/part.0.dsk")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != "payload" {
			t.Fatalf("data: got %q", data)
		}
	}
	if got := backing.gets.Load(); got != 1 {
		t.Errorf("backing reads: got %d, want 1", got)
	}
	if cached.Metrics().Hits.Load() != 2 || cached.Metrics().Misses.Load() != 1 {
		t.Errorf("metrics: hits=%d misses=%d", cached.Metrics().Hits.Load(), cached.Metrics().Misses.Load())
	}
}

func TestCachedStore_MetadataBypassesCache(t *testing.T) {
	backing := newCountingStore(t)
	cached, err := NewCachedStore(backing, t.TempDir(), 1<<20, ".dsk")
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	ctx := context.Background()

	if err := cached.Put(ctx, "ds/_metadata", []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	cached.Get(ctx, "ds/_metadata")
	cached.Get(ctx, "ds/_metadata")
	if got := backing.gets.Load(); got != 2 {
		t.Errorf("backing reads: got %d, want 2 (no caching)", got)
	}
}

func TestCachedStore_PutInvalidates(t *testing.T) {
	backing := newCountingStore(t)
	cached, err := NewCachedStore(backing, t.TempDir(), 1<<20, ".dsk")
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	ctx := context.Background()

	cached.Put(ctx, "ds/part.0.dsk", []byte("v1"))
	cached.Get(ctx, "ds/part.0.dsk")
	cached.Put(ctx, "ds/part.0.dsk", []byte("v2"))
	data, err := cached.Get(ctx, "ds/part.0.dsk")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("data after rewrite: got %q, want v2", data)
	}
}

func TestCachedStore_Eviction(t *testing.T) {
	backing := newCountingStore(t)
	cached, err := NewCachedStore(backing, t.TempDir(), 32, ".dsk")
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	ctx := context.Background()

	payload := make([]byte, 24)
	cached.Put(ctx, "ds/part.0.dsk", payload)
	cached.Put(ctx, "ds/part.1.dsk", payload)
	cached.Get(ctx, "ds/part.0.dsk")
	cached.Get(ctx, "ds/part.1.dsk") // pushes the cache past 32 bytes

	if cached.Metrics().Evictions.Load() == 0 {
		t.Error("expected an eviction past the byte budget")
	}
	// both objects remain readable regardless of cache state
	for _, p := range []string{"ds/part.0.dsk", "ds/part.1.dsk"} {
		if _, err := cached.Get(ctx, p); err != nil {
			t.Errorf("Get %s failed: %v", p, err)
		}
	}
}

func TestCachedStore_RestoreAcrossRestart(t *testing.T) {
	backing := newCountingStore(t)
	dir := t.TempDir()
	cached, err := NewCachedStore(backing, dir, 1<<20, ".dsk")
	if err != nil {
		t.Fatalf("NewCachedStore failed: %v", err)
	}
	ctx := context.Background()
	cached.Put(ctx, "ds/part.0.dsk", []byte("payload"))
	cached.Get(ctx, "ds/part.0.dsk")

	reopened, err := NewCachedStore(backing, dir, 1<<20, ".dsk")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	before := backing.gets.Load()
	data, err := reopened.Get(ctx, "ds/part.0.dsk")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("data: got %q", data)
	}
	if backing.gets.Load() != before {
		t.Error("restored cache should serve the read locally")
	}
}

func TestCachedStore_InvalidBudget(t *testing.T) {
	backing := newCountingStore(t)
	if _, err := NewCachedStore(backing, t.TempDir(), 0, ".dsk"); err == nil {
		t.Error("expected zero budget to fail")
	}
}
