package planner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/sheppard/dask/internal/dataset"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/engine"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

// WriteConfig controls write planning.
type WriteConfig struct {
	// Engine selects the file engine variant; empty means legacy.
	Engine string

	// WriteIndex materializes the index as the first physical column.
	WriteIndex bool

	// PartitionOn fans rows out into column=value directories. The named
	// columns move into the directory path and leave the stored schema.
	PartitionOn []string

	// Append extends an existing dataset instead of replacing it.
	Append bool

	// IgnoreDivisions accepts an append whose sort-key range overlaps the
	// existing data, at the cost of the merged divisions becoming unknown.
	IgnoreDivisions bool

	// Compression is the default chunk compression codec.
	Compression string

	// ColumnCompression overrides the codec per column.
	ColumnCompression map[string]string

	// TimeUnit overrides the storage precision of timestamp columns.
	TimeUnit types.TimeUnit

	// RowGroupRows caps rows per row group; 0 writes one row group per
	// source partition.
	RowGroupRows int

	// KeyValues is user metadata stored in every footer.
	KeyValues map[string]string
}

// PlanWrite validates a write request against the destination and expands
// it into per-file write tasks. All validation that can fail the write
// happens here, before a single data byte is written; executing the plan
// only then creates files and, last, commits the metadata index.
func PlanWrite(ctx context.Context, store storage.ObjectStore, pt *types.Partitioned, dest string, cfg WriteConfig) (*WritePlan, error) {
	if pt == nil || len(pt.Partitions) == 0 {
		return nil, daskerrors.New(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
			"nothing to write: no partitions")
	}
	eng, err := engine.ForName(cfg.Engine)
	if err != nil {
		return nil, err
	}

	base := pt.Partitions[0].Schema()
	for i, part := range pt.Partitions {
		if err := part.Validate(); err != nil {
			return nil, daskerrors.Wrap(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
				fmt.Sprintf("partition %d", i), err)
		}
		s := part.Schema()
		if !base.SameColumnSet(s) || len(base.DTypeConflicts(s)) > 0 {
			return nil, daskerrors.New(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
				fmt.Sprintf("partition %d schema differs from partition 0", i))
		}
	}

	schema, err := diskSchema(base, cfg)
	if err != nil {
		return nil, err
	}

	var scheme string
	if len(cfg.PartitionOn) > 0 {
		if !eng.Capabilities().Has(engine.CapHivePartitioning) {
			return nil, daskerrors.NewNotImplemented(fmt.Sprintf(
				"engine %q cannot write partitioned output", eng.Name()))
		}
		scheme = string(partition.SchemeHive)
		for _, name := range cfg.PartitionOn {
			if _, ok := schema.Lookup(name); !ok {
				return nil, daskerrors.NewUnknownColumn(name)
			}
			if name == schema.Index {
				return nil, daskerrors.New(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
					fmt.Sprintf("cannot partition on index column %q", name))
			}
		}
		// partition columns move into the directory path
		stored := &types.Schema{Index: schema.Index, KeyValues: schema.KeyValues}
		for _, def := range schema.Columns {
			if !contains(cfg.PartitionOn, def.Name) {
				stored.Columns = append(stored.Columns, def)
			}
		}
		schema = stored
	}
	schema = engine.NegotiateSchema(eng, schema)
	if err := schema.Validate(); err != nil {
		return nil, daskerrors.Wrap(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
			"on-disk schema", err)
	}

	plan := &WritePlan{
		Root:             dest,
		Engine:           eng,
		Schema:           schema,
		Append:           cfg.Append,
		PartitionScheme:  scheme,
		PartitionColumns: append([]string(nil), cfg.PartitionOn...),
		RowGroupRows:     cfg.RowGroupRows,
		Options: file.WriterOptions{
			Compression:       cfg.Compression,
			ColumnCompression: cfg.ColumnCompression,
			KeyValues:         cfg.KeyValues,
		},
	}

	seq := 0
	if cfg.Append {
		existing, err := dataset.LoadAggregate(ctx, store, dest)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, daskerrors.New(daskerrors.ErrCategoryMetadata, daskerrors.CodeNoDataFiles,
					fmt.Sprintf("append requested but %q holds no dataset", dest))
			}
			return nil, err
		}
		if existing.PartitionScheme != scheme || !sameStrings(existing.PartitionColumns, plan.PartitionColumns) {
			return nil, daskerrors.NewSchemaMismatch("Appended columns do not match")
		}
		var incomingDivs []any
		if cfg.WriteIndex && schema.Index != "" {
			incomingDivs = pt.Divisions
		}
		if _, err := dataset.ValidateAppend(existing, schema, incomingDivs, dataset.AppendOptions{
			WriteIndex:      cfg.WriteIndex,
			IgnoreDivisions: cfg.IgnoreDivisions,
		}); err != nil {
			return nil, err
		}
		plan.Existing = existing
		seq = len(existing.Files)
	} else {
		// A fresh write rebuilds the index from scratch; leftover data
		// files from a previous generation would leak into glob discovery
		// alongside the new ones.
		objects, err := store.List(ctx, dest)
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			if strings.HasSuffix(obj, dataset.DataFileSuffix) {
				return nil, daskerrors.New(daskerrors.ErrCategoryValidation, daskerrors.CodeDestinationNotEmpty,
					fmt.Sprintf("destination %q already holds data files; append to it or choose an empty root", dest))
			}
		}
	}

	names := schema.Names()
	for _, part := range pt.Partitions {
		frag := part
		if !cfg.WriteIndex && frag.Index != "" {
			frag = frag.DropColumn(frag.Index)
		}
		if len(cfg.PartitionOn) == 0 {
			sel, err := frag.Select(names)
			if err != nil {
				return nil, daskerrors.NewInternalError("arrange write fragment", err)
			}
			plan.Tasks = append(plan.Tasks, WriteTask{Path: dataFileName(seq), Fragment: sel})
			seq++
			continue
		}
		groups, err := partition.Split(frag, cfg.PartitionOn, partition.SchemeHive)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			sel, err := g.Table.Select(names)
			if err != nil {
				return nil, daskerrors.NewInternalError("arrange write fragment", err)
			}
			plan.Tasks = append(plan.Tasks, WriteTask{
				Path:     path.Join(g.Dir, dataFileName(seq)),
				Fragment: sel,
			})
			seq++
		}
	}
	return plan, nil
}

// diskSchema derives the on-disk schema from an in-memory one: the index
// becomes the first physical column when written, and disappears entirely
// when not.
func diskSchema(mem *types.Schema, cfg WriteConfig) (*types.Schema, error) {
	out := mem.Clone()
	if cfg.TimeUnit != "" {
		for i := range out.Columns {
			if out.Columns[i].Type == types.Timestamp {
				out.Columns[i].TimeUnit = cfg.TimeUnit
			}
		}
	}
	if out.Index == "" {
		return out, nil
	}
	if !cfg.WriteIndex {
		stored := &types.Schema{KeyValues: out.KeyValues}
		for _, def := range out.Columns {
			if def.Name != out.Index {
				stored.Columns = append(stored.Columns, def)
			}
		}
		return stored, nil
	}
	idx, ok := out.Lookup(out.Index)
	if !ok {
		return nil, daskerrors.New(daskerrors.ErrCategoryValidation, daskerrors.CodeInvalidSchema,
			fmt.Sprintf("index column %q not present", out.Index))
	}
	stored := &types.Schema{Index: out.Index, KeyValues: out.KeyValues}
	stored.Columns = append(stored.Columns, idx)
	for _, def := range out.Columns {
		if def.Name != out.Index {
			stored.Columns = append(stored.Columns, def)
		}
	}
	return stored, nil
}

// dataFileName builds a unique, order-preserving data file name. The
// zero-padded ordinal keeps lexical order aligned with partition order and
// the random suffix keeps concurrent writers from colliding.
func dataFileName(seq int) string {
	return fmt.Sprintf("part.%04d.%s%s", seq, uuid.New().String()[:8], dataset.DataFileSuffix)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
