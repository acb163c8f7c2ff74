package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
)

// CacheMetrics holds read cache counters.
type CacheMetrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
}

// CachedStore wraps an ObjectStore with a local disk cache for whole-object
// reads. Only immutable objects are cached: paths must carry one of the
// configured suffixes, which excludes the replaceable metadata sidecars.
// Eviction is least-recently-used, run inline when the cache exceeds its
// byte budget.
type CachedStore struct {
	backing  ObjectStore
	dir      string
	maxBytes int64
	suffixes []string
	metrics  CacheMetrics

	mu    sync.Mutex
	index map[string]*cacheEntry
	size  int64
}

type cacheEntry struct {
	localPath  string
	sizeBytes  int64
	lastAccess int64 // unix nanos
}

// NewCachedStore opens a disk cache under dir, restoring any entries left
// by a previous run. Objects whose path ends in none of the suffixes
// bypass the cache entirely.
func NewCachedStore(backing ObjectStore, dir string, maxBytes int64, suffixes ...string) (*CachedStore, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("storage: cache size must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create cache dir: %w", err)
	}
	c := &CachedStore{
		backing:  backing,
		dir:      dir,
		maxBytes: maxBytes,
		suffixes: suffixes,
		index:    make(map[string]*cacheEntry),
	}
	if err := c.restore(); err != nil {
		return nil, err
	}
	return c, nil
}

// Metrics returns the cache counters.
func (c *CachedStore) Metrics() *CacheMetrics { return &c.metrics }

// HitRate returns the fraction of cacheable reads served locally.
func (c *CachedStore) HitRate() float64 {
	hits := c.metrics.Hits.Load()
	total := hits + c.metrics.Misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// restore rebuilds the index from files left in the cache directory.
// Entry keys are lost across restarts, so leftovers are indexed by their
// on-disk name; they stay evictable and reachable by the same hash.
func (c *CachedStore) restore() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("storage: scan cache dir: %w", err)
	}
	now := time.Now().UnixNano()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		c.index[entry.Name()] = &cacheEntry{
			localPath:  filepath.Join(c.dir, entry.Name()),
			sizeBytes:  info.Size(),
			lastAccess: now,
		}
		c.size += info.Size()
	}
	return nil
}

func (c *CachedStore) cacheable(path string) bool {
	for _, s := range c.suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

// cacheName maps an object path to a collision-free local file name.
func (c *CachedStore) cacheName(path string) string {
	h1, h2 := murmur3.Sum128([]byte(path))
	return fmt.Sprintf("%016x%016x%s", h1, h2, filepath.Ext(path))
}

// Get reads an object, serving cacheable paths from local disk when
// possible and filling the cache on a miss.
func (c *CachedStore) Get(ctx context.Context, path string) ([]byte, error) {
	if !c.cacheable(path) {
		return c.backing.Get(ctx, path)
	}
	name := c.cacheName(path)

	c.mu.Lock()
	entry, ok := c.index[name]
	if ok {
		entry.lastAccess = time.Now().UnixNano()
	}
	c.mu.Unlock()

	if ok {
		data, err := os.ReadFile(entry.localPath)
		if err == nil {
			c.metrics.Hits.Add(1)
			return data, nil
		}
		// the local file disappeared under us; drop the entry and refetch
		c.drop(name)
	}
	c.metrics.Misses.Add(1)

	data, err := c.backing.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	c.fill(name, data)
	return data, nil
}

// fill writes a fetched object into the cache and evicts past the budget.
// Fill failures are ignored; the cache is an optimization only.
func (c *CachedStore) fill(name string, data []byte) {
	localPath := filepath.Join(c.dir, name)
	tmp := localPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return
	}

	c.mu.Lock()
	if old, ok := c.index[name]; ok {
		c.size -= old.sizeBytes
	}
	c.index[name] = &cacheEntry{
		localPath:  localPath,
		sizeBytes:  int64(len(data)),
		lastAccess: time.Now().UnixNano(),
	}
	c.size += int64(len(data))
	c.evictLocked()
	c.mu.Unlock()
}

// evictLocked removes least-recently-used entries until the cache fits.
func (c *CachedStore) evictLocked() {
	if c.size <= c.maxBytes {
		return
	}
	type candidate struct {
		name       string
		lastAccess int64
	}
	candidates := make([]candidate, 0, len(c.index))
	for name, entry := range c.index {
		candidates = append(candidates, candidate{name, entry.lastAccess})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess < candidates[j].lastAccess
	})
	for _, cand := range candidates {
		if c.size <= c.maxBytes {
			return
		}
		entry := c.index[cand.name]
		if err := os.Remove(entry.localPath); err == nil || os.IsNotExist(err) {
			c.size -= entry.sizeBytes
			delete(c.index, cand.name)
			c.metrics.Evictions.Add(1)
		}
	}
}

func (c *CachedStore) drop(name string) {
	c.mu.Lock()
	if entry, ok := c.index[name]; ok {
		c.size -= entry.sizeBytes
		delete(c.index, name)
		os.Remove(entry.localPath)
	}
	c.mu.Unlock()
}

// Put writes through to the backing store and invalidates any stale copy.
func (c *CachedStore) Put(ctx context.Context, path string, data []byte) error {
	if err := c.backing.Put(ctx, path, data); err != nil {
		return err
	}
	if c.cacheable(path) {
		c.drop(c.cacheName(path))
	}
	return nil
}

// GetRange passes through: ranged reads are small footer probes and are
// not worth a whole-object fill.
func (c *CachedStore) GetRange(ctx context.Context, path string, off, length int64) ([]byte, error) {
	return c.backing.GetRange(ctx, path, off, length)
}

// Size passes through to the backing store.
func (c *CachedStore) Size(ctx context.Context, path string) (int64, error) {
	return c.backing.Size(ctx, path)
}

// Exists passes through to the backing store.
func (c *CachedStore) Exists(ctx context.Context, path string) (bool, error) {
	return c.backing.Exists(ctx, path)
}

// List passes through to the backing store.
func (c *CachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return c.backing.List(ctx, prefix)
}

// Delete removes the object and any cached copy.
func (c *CachedStore) Delete(ctx context.Context, path string) error {
	if err := c.backing.Delete(ctx, path); err != nil {
		return err
	}
	if c.cacheable(path) {
		c.drop(c.cacheName(path))
	}
	return nil
}
