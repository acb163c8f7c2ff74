// Package executor runs planned task graphs: write tasks followed by the
// metadata commit, and read tasks followed by reassembly. Tasks run on a
// bounded worker pool; a single failure cancels the remaining work and
// surfaces as the operation's error.
package executor

import (
	"context"
	"path"
	"sync"

	"github.com/sheppard/dask/internal/dataset"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/internal/planner"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

// DefaultWorkers bounds task parallelism when no worker count is given.
const DefaultWorkers = 4

// Runner executes plans with bounded parallelism.
type Runner struct {
	workers int
}

// NewRunner builds a runner with the given worker count; zero or negative
// falls back to DefaultWorkers.
func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{workers: workers}
}

// runAll executes fn for every index in [0, n) on the worker pool. The
// first error cancels the rest; the returned error is that first failure.
func (r *Runner) runAll(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := fn(ctx, i); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
				}
			}(i)
		}
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// ExecuteWrite writes every planned data file and then, only after all of
// them are durable, commits the dataset metadata. A failed task leaves the
// previous metadata untouched.
func (r *Runner) ExecuteWrite(ctx context.Context, store storage.ObjectStore, plan *planner.WritePlan) (*dataset.Metadata, error) {
	entries := make([]dataset.FileEntry, len(plan.Tasks))
	err := r.runAll(ctx, len(plan.Tasks), func(ctx context.Context, i int) error {
		task := plan.Tasks[i]
		data, err := plan.Engine.WriteFile(ctx, plan.Schema, rowGroupFragments(task.Fragment, plan.RowGroupRows), plan.Options)
		if err != nil {
			return daskerrors.Wrap(daskerrors.ErrCategoryExec, daskerrors.CodeTaskFailed,
				"write "+task.Path, err)
		}
		if err := store.Put(ctx, path.Join(plan.Root, task.Path), data); err != nil {
			return err
		}
		fr, err := file.OpenReaderBytes(data)
		if err != nil {
			return daskerrors.NewInternalError("reparse written file "+task.Path, err)
		}
		entries[i] = dataset.FileEntry{Path: task.Path, Footer: fr.Footer()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var m *dataset.Metadata
	if plan.Append {
		// The plan's snapshot stays pristine so executing the same handle
		// twice cannot double-register the new entries.
		m = plan.Existing.Clone()
		m.Extend(entries)
	} else {
		m, err = dataset.Merge(entries, plan.PartitionScheme, plan.PartitionColumns)
		if err != nil {
			return nil, err
		}
	}
	if err := dataset.Commit(ctx, store, plan.Root, m); err != nil {
		return nil, err
	}
	return m, nil
}

// rowGroupFragments splits one task fragment into row-group-sized pieces.
func rowGroupFragments(t *types.Table, rowGroupRows int) []*types.Table {
	n := t.NumRows()
	if rowGroupRows <= 0 || n <= rowGroupRows {
		return []*types.Table{t}
	}
	var out []*types.Table
	for lo := 0; lo < n; lo += rowGroupRows {
		hi := lo + rowGroupRows
		if hi > n {
			hi = n
		}
		out = append(out, t.Slice(lo, hi))
	}
	return out
}

// ExecuteRead runs every read task and reassembles the decoded fragments
// into a partitioned table carrying the plan's divisions. An empty plan
// yields a single zero-row partition with the plan schema.
func (r *Runner) ExecuteRead(ctx context.Context, store storage.ObjectStore, plan *planner.ReadPlan) (*types.Partitioned, error) {
	if len(plan.Tasks) == 0 {
		return &types.Partitioned{Partitions: []*types.Table{emptyTable(plan.Schema)}}, nil
	}
	parts := make([]*types.Table, len(plan.Tasks))
	err := r.runAll(ctx, len(plan.Tasks), func(ctx context.Context, i int) error {
		t, err := r.readTask(ctx, store, plan, plan.Tasks[i])
		if err != nil {
			return err
		}
		parts[i] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &types.Partitioned{Partitions: parts, Divisions: plan.Divisions}, nil
}

// ReadOne executes a single task of a read plan.
func (r *Runner) ReadOne(ctx context.Context, store storage.ObjectStore, plan *planner.ReadPlan, i int) (*types.Table, error) {
	if i < 0 || i >= len(plan.Tasks) {
		if i == 0 && len(plan.Tasks) == 0 {
			return emptyTable(plan.Schema), nil
		}
		return nil, daskerrors.New(daskerrors.ErrCategoryExec, daskerrors.CodeTaskFailed,
			"partition index out of range")
	}
	return r.readTask(ctx, store, plan, plan.Tasks[i])
}

func (r *Runner) readTask(ctx context.Context, store storage.ObjectStore, plan *planner.ReadPlan, task planner.ReadTask) (*types.Table, error) {
	data, err := store.Get(ctx, path.Join(plan.Root, task.Path))
	if err != nil {
		return nil, err
	}
	t, err := plan.Engine.ReadRowGroup(ctx, data, task.RowGroup, task.Columns, task.Categories)
	if err != nil {
		return nil, daskerrors.Wrap(daskerrors.ErrCategoryExec, daskerrors.CodeTaskFailed,
			"read "+task.Path, err)
	}
	if len(task.PartitionValues) > 0 {
		t = partition.AttachColumns(t, task.PartitionValues)
	}
	out, err := t.Select(plan.Reassembly.Columns)
	if err != nil {
		return nil, daskerrors.NewInternalError("reassemble "+task.Path, err)
	}
	out.Index = plan.Reassembly.Index
	return out, nil
}

// emptyTable builds a zero-row table matching the schema.
func emptyTable(schema *types.Schema) *types.Table {
	t := &types.Table{Index: schema.Index}
	for _, def := range schema.Columns {
		t.Columns = append(t.Columns, types.EmptyColumn(def))
	}
	return t
}
