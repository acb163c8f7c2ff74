// Package planner builds write plans and read plans: descriptions of
// independent per-file work units plus the metadata aggregation or
// reassembly step that joins them. Planning performs no data IO beyond
// metadata discovery; execution is the caller's explicit step.
package planner

import (
	"github.com/sheppard/dask/internal/dataset"
	"github.com/sheppard/dask/internal/engine"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/pkg/types"
)

// WriteTask writes one data file. Tasks are independent: each targets a
// uniquely named file and shares no mutable state with its siblings.
type WriteTask struct {
	// Path is the target data file path relative to the dataset root.
	Path string

	// Fragment holds the rows, already in on-disk column order.
	Fragment *types.Table
}

// WritePlan is the full description of one write operation: the write
// tasks plus the deferred aggregation that commits `_metadata` after all
// of them succeed.
type WritePlan struct {
	Root   string
	Engine engine.Engine

	// Schema is the negotiated on-disk schema.
	Schema *types.Schema

	Tasks   []WriteTask
	Options file.WriterOptions

	// RowGroupRows caps rows per row group; 0 writes one row group per
	// task fragment.
	RowGroupRows int

	// Append carries the loaded existing index when extending a dataset.
	Append   bool
	Existing *dataset.Metadata

	PartitionScheme  string
	PartitionColumns []string
}

// ReadTask decodes one row group of one data file.
type ReadTask struct {
	// Key is the task's stable identity: the plan fingerprint plus the
	// task ordinal. Identical plan requests produce identical keys.
	Key string

	// Path is the data file path relative to the dataset root.
	Path string

	// RowGroup indexes into the file's row groups.
	RowGroup int

	// Columns are the physical columns to decode, in decode order.
	Columns []string

	// Categories are the columns kept dictionary-encoded.
	Categories []string

	// PartitionValues are reconstructed from the file's directory path.
	PartitionValues []partition.PathValue
}

// Reassembly describes how decoded fragments become the caller's table:
// final column order, index restoration and categorical attachment.
type Reassembly struct {
	// Columns is the output column order, partition columns included.
	Columns []string

	// Index is the resolved index column, empty when none.
	Index string

	// Categories are the columns surfaced dictionary-encoded.
	Categories []string
}

// ReadPlan is the full description of one read operation.
type ReadPlan struct {
	Root   string
	Engine engine.Engine

	// Schema is the output schema in final column order.
	Schema *types.Schema

	Tasks      []ReadTask
	Reassembly Reassembly

	// Divisions are the sort-key ranges across tasks, nil when unknown.
	Divisions []any

	// Fingerprint identifies the plan for task-graph deduplication.
	Fingerprint string

	// Snapshot is the metadata the plan was built against.
	Snapshot *dataset.Metadata
}
