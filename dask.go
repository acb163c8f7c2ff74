// Package dask reads and writes partitioned columnar datasets. A dataset
// is a directory of immutable data files plus an aggregate `_metadata`
// index; writes and reads are planned lazily into independent per-file
// tasks and executed on demand.
package dask

import (
	"context"
	"path"
	"time"

	"github.com/sheppard/dask/internal/config"
	"github.com/sheppard/dask/internal/dataset"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/executor"
	"github.com/sheppard/dask/internal/observability"
	"github.com/sheppard/dask/internal/planner"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

// Filter is one conjunct of a read predicate. Filters prune whole row
// groups using footer statistics; a surviving partition may still contain
// rows that fail the predicate.
type Filter struct {
	Column string
	Op     string // ==, !=, <, <=, >, >=, in
	Value  any
}

// WriteOptions control a dataset write. Zero values follow the client's
// configured defaults; build from DefaultWriteOptions to get the standard
// behavior of materializing the index.
type WriteOptions struct {
	// Engine selects the file engine variant; empty uses the default.
	Engine string

	// WriteIndex materializes the index as the first physical column.
	WriteIndex bool

	// PartitionOn fans rows out into column=value directories.
	PartitionOn []string

	// Append extends an existing dataset instead of replacing it.
	Append bool

	// IgnoreDivisions accepts an append whose sort-key range overlaps
	// the existing data; the merged divisions become unknown.
	IgnoreDivisions bool

	// Compression is the chunk compression codec; empty uses the default.
	Compression string

	// ColumnCompression overrides the codec per column.
	ColumnCompression map[string]string

	// TimeUnit overrides the storage precision of timestamp columns.
	TimeUnit types.TimeUnit

	// RowGroupRows caps rows per row group; 0 uses the default.
	RowGroupRows int

	// KeyValues is user metadata stored in every footer.
	KeyValues map[string]string
}

// DefaultWriteOptions returns the standard write behavior: index
// materialized, everything else from the client configuration.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{WriteIndex: true}
}

// ReadOptions control a dataset read.
type ReadOptions struct {
	// Engine selects the file engine variant; empty uses the default.
	Engine string

	// Columns restricts the output to the named columns, in that order.
	// Nil selects every stored value column plus the partition columns.
	Columns []string

	// Index names the sort-key column; empty resolves it from the
	// dataset's own schema.
	Index string

	// NoIndex surfaces the stored index as an ordinary column instead.
	NoIndex bool

	// Filters is a conjunction of row-group pruning predicates.
	Filters []Filter

	// Categories names the columns to keep dictionary-encoded. Nil keeps
	// every stored categorical column; an empty non-nil slice keeps none.
	Categories []string
}

// Client is the entry point for dataset IO against one storage backend.
type Client struct {
	store  storage.ObjectStore
	cfg    *config.Config
	runner *executor.Runner
	stats  *observability.ReadStats
}

// NewClient builds a client from a configuration file (empty for
// defaults) plus DASK_* environment overrides.
func NewClient(ctx context.Context, configFile string) (*Client, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	return newClient(store, cfg), nil
}

// NewLocalClient builds a client over a local directory with default
// configuration. Dataset locations are relative to root.
func NewLocalClient(root string) (*Client, error) {
	cfg := config.DefaultConfig()
	cfg.Storage.Path = root
	store, err := storage.NewLocalStore(root)
	if err != nil {
		return nil, err
	}
	return newClient(store, cfg), nil
}

func newClient(store storage.ObjectStore, cfg *config.Config) *Client {
	return &Client{
		store:  store,
		cfg:    cfg,
		runner: executor.NewRunner(cfg.Workers),
		stats:  observability.NewReadStats(time.Hour),
	}
}

// Stats returns the client's read-plan statistics: hot filter and
// selection columns plus pruning effectiveness.
func (c *Client) Stats() *observability.ReadStats { return c.stats }

// Write plans a dataset write. All validation happens here, against the
// destination's committed metadata; no data is written until the returned
// handle's Compute runs.
func (c *Client) Write(ctx context.Context, pt *types.Partitioned, dest string, opts WriteOptions) (*WriteHandle, error) {
	cfg := planner.WriteConfig{
		Engine:            c.orDefault(opts.Engine, c.cfg.Engine),
		WriteIndex:        opts.WriteIndex,
		PartitionOn:       opts.PartitionOn,
		Append:            opts.Append,
		IgnoreDivisions:   opts.IgnoreDivisions,
		Compression:       c.orDefault(opts.Compression, c.cfg.Compression),
		ColumnCompression: opts.ColumnCompression,
		TimeUnit:          opts.TimeUnit,
		RowGroupRows:      opts.RowGroupRows,
		KeyValues:         opts.KeyValues,
	}
	if cfg.RowGroupRows == 0 {
		cfg.RowGroupRows = c.cfg.RowGroupRows
	}
	plan, err := planner.PlanWrite(ctx, c.store, pt, dest, cfg)
	if err != nil {
		return nil, err
	}
	return &WriteHandle{client: c, plan: plan}, nil
}

// Read plans a dataset read: discovers the metadata, resolves columns,
// index and categories, prunes row groups by the filters and returns a
// lazy frame over the surviving tasks.
func (c *Client) Read(ctx context.Context, location string, opts ReadOptions) (*LazyFrame, error) {
	filters := make([]planner.Filter, len(opts.Filters))
	for i, f := range opts.Filters {
		filters[i] = planner.Filter{Column: f.Column, Op: f.Op, Value: f.Value}
	}
	cfg := planner.ReadConfig{
		Engine:     c.orDefault(opts.Engine, c.cfg.Engine),
		Columns:    opts.Columns,
		Index:      opts.Index,
		NoIndex:    opts.NoIndex,
		Filters:    filters,
		Categories: opts.Categories,
	}
	plan, err := planner.PlanRead(ctx, c.store, location, cfg)
	if err != nil {
		return nil, err
	}
	for _, f := range opts.Filters {
		c.stats.RecordFilter(f.Column, f.Op)
	}
	c.stats.RecordSelection(plan.Reassembly.Columns)
	c.stats.RecordPlan(candidateRowGroups(plan.Snapshot), len(plan.Tasks))
	return &LazyFrame{client: c, plan: plan}, nil
}

func candidateRowGroups(m *dataset.Metadata) int {
	n := 0
	for _, entry := range m.Files {
		n += len(entry.Footer.RowGroups)
	}
	return n
}

// RebuildCatalog refreshes the SQLite pruning catalog from a dataset's
// committed metadata. It is a no-op error when the client has no catalog
// path configured.
func (c *Client) RebuildCatalog(ctx context.Context, location string) error {
	if c.cfg.CatalogPath == "" {
		return daskerrors.New(daskerrors.ErrCategoryPlan, daskerrors.CodeUnexpected,
			"no catalog path configured")
	}
	m, _, err := dataset.Discover(ctx, c.store, location)
	if err != nil {
		return err
	}
	cat, err := dataset.OpenCatalog(c.cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()
	return cat.Rebuild(ctx, m)
}

func (c *Client) orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// WriteHandle is a planned, not yet executed, dataset write.
type WriteHandle struct {
	client *Client
	plan   *planner.WritePlan
}

// NumTasks returns the number of data files the write will produce.
func (h *WriteHandle) NumTasks() int { return len(h.plan.Tasks) }

// Schema returns the negotiated on-disk schema.
func (h *WriteHandle) Schema() *types.Schema { return h.plan.Schema }

// Compute writes every data file and then commits the metadata index.
// A task failure leaves the previous committed state untouched.
func (h *WriteHandle) Compute(ctx context.Context) error {
	_, err := h.client.runner.ExecuteWrite(ctx, h.client.store, h.plan)
	return err
}

// LazyFrame is a planned, not yet executed, dataset read.
type LazyFrame struct {
	client *Client
	plan   *planner.ReadPlan
}

// Schema returns the output schema, partition columns included.
func (f *LazyFrame) Schema() *types.Schema { return f.plan.Schema }

// Columns returns the output column order.
func (f *LazyFrame) Columns() []string { return f.plan.Reassembly.Columns }

// NPartitions returns the number of output partitions.
func (f *LazyFrame) NPartitions() int {
	if len(f.plan.Tasks) == 0 {
		return 1
	}
	return len(f.plan.Tasks)
}

// Divisions returns the sort-key divisions across partitions, nil when
// unknown.
func (f *LazyFrame) Divisions() []any { return f.plan.Divisions }

// KnownDivisions reports whether the partition ordering is known.
func (f *LazyFrame) KnownDivisions() bool { return len(f.plan.Divisions) > 0 }

// Fingerprint identifies the plan: identical read requests produce
// identical fingerprints and task keys.
func (f *LazyFrame) Fingerprint() string { return f.plan.Fingerprint }

// Partitioned executes every task and returns the partitioned table.
func (f *LazyFrame) Partitioned(ctx context.Context) (*types.Partitioned, error) {
	return f.client.runner.ExecuteRead(ctx, f.client.store, f.plan)
}

// Compute executes every task and concatenates the result.
func (f *LazyFrame) Compute(ctx context.Context) (*types.Table, error) {
	pt, err := f.Partitioned(ctx)
	if err != nil {
		return nil, err
	}
	return pt.Compute()
}

// ComputePartition executes a single partition's task.
func (f *LazyFrame) ComputePartition(ctx context.Context, i int) (*types.Table, error) {
	return f.client.runner.ReadOne(ctx, f.client.store, f.plan, i)
}

// Prefetch pulls every data file the plan touches through the store with
// bounded parallelism. With a disk cache configured this warms it before
// Compute; remote reads then hit local disk. Returns the number of files
// fetched.
func (f *LazyFrame) Prefetch(ctx context.Context) (int, error) {
	paths := make([]string, len(f.plan.Tasks))
	for i, task := range f.plan.Tasks {
		paths[i] = path.Join(f.plan.Root, task.Path)
	}
	result, err := storage.Prefetch(ctx, f.client.store, paths, f.client.cfg.Workers)
	if err != nil {
		return 0, err
	}
	for p, perr := range result.Errors {
		return result.Fetched, daskerrors.NewStorageError(daskerrors.CodeReadFailed,
			"prefetch "+p, perr)
	}
	return result.Fetched, nil
}

// Categories returns the merged dictionary of a categorical column across
// all partitions. Deriving it would require reading every file at plan
// time, so it is a documented fail-fast limitation.
func (f *LazyFrame) Categories(column string) ([]string, error) {
	return nil, daskerrors.NewNotImplemented(
		"merged dictionary for column " + column + " is not known without reading the data")
}
