package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PrefetchResult reports the outcome of a parallel warm-up pass.
type PrefetchResult struct {
	Fetched int
	Errors  map[string]error
}

// Prefetch reads every path through the store with bounded parallelism and
// discards the bytes. Against a CachedStore this pulls remote data files
// onto local disk before plan execution touches them; against a plain
// store it is a readability probe. Per-path failures are collected, not
// fatal; the only error returned is context cancellation.
func Prefetch(ctx context.Context, store ObjectStore, paths []string, concurrency int) (*PrefetchResult, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	result := &PrefetchResult{Errors: make(map[string]error)}

	seen := make(map[string]struct{}, len(paths))
	unique := paths[:0:0]
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, p)
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range unique {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(p string) {
			defer sem.Release(1)
			defer wg.Done()
			if _, err := store.Get(ctx, p); err != nil {
				mu.Lock()
				result.Errors[p] = err
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Fetched++
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return result, nil
}
