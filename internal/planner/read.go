package planner

import (
	"context"
	"fmt"

	"github.com/sheppard/dask/internal/dataset"
	"github.com/sheppard/dask/internal/engine"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

// ReadConfig controls read planning.
type ReadConfig struct {
	// Engine selects the file engine variant; empty means legacy.
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

// PlanRead discovers a dataset and expands a read request into per-row-group
// tasks. Column, index, filter and category resolution all fail here, at
// plan time; surviving tasks only ever decode bytes.
func PlanRead(ctx context.Context, store storage.ObjectStore, location string, cfg ReadConfig) (*ReadPlan, error) {
	eng, err := engine.ForName(cfg.Engine)
	if err != nil {
		return nil, err
	}
	for _, f := range cfg.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	m, root, err := dataset.Discover(ctx, store, location)
	if err != nil {
		return nil, err
	}
	writer := ""
	if len(m.Files) > 0 {
		writer = m.Files[0].Footer.Engine
	}
	if err := engine.CheckReadable(eng, writer, m.PartitionScheme); err != nil {
		return nil, err
	}

	index, err := resolveIndex(m, cfg)
	if err != nil {
		return nil, err
	}
	output, err := resolveColumns(m, cfg, index)
	if err != nil {
		return nil, err
	}
	for _, f := range cfg.Filters {
		if !columnKnown(m, f.Column) {
			return nil, daskerrors.NewUnknownColumn(f.Column)
		}
	}

	physical := physicalColumns(m, output, index)
	categories, err := resolveCategories(m, cfg, physical)
	if err != nil {
		return nil, err
	}

	final := output
	if index != "" && !contains(output, index) {
		final = append([]string{index}, output...)
	}
	schema, err := outputSchema(m, final, index, categories)
	if err != nil {
		return nil, err
	}

	plan := &ReadPlan{
		Root:        root,
		Engine:      eng,
		Schema:      schema,
		Fingerprint: fingerprintRead(location, cfg),
		Snapshot:    m,
		Reassembly: Reassembly{
			Columns:    final,
			Index:      index,
			Categories: categories,
		},
	}

	scheme := partition.Scheme(m.PartitionScheme)
	for _, entry := range m.Files {
		var values []partition.PathValue
		if scheme != "" {
			values, err = partition.ParsePath(scheme, entry.Path)
			if err != nil {
				return nil, daskerrors.NewCorruptFile(entry.Path, err)
			}
			if err := partition.CheckCollisions(m.Schema, values); err != nil {
				return nil, err
			}
		}
		for gi, group := range entry.Footer.RowGroups {
			chunks := make(map[string]file.ChunkMeta, len(group.Chunks))
			for _, chunk := range group.Chunks {
				chunks[chunk.Column] = chunk
			}
			if !pruneRowGroup(chunks, values, cfg.Filters) {
				continue
			}
			plan.Tasks = append(plan.Tasks, ReadTask{
				Key:             fmt.Sprintf("%s-%04d", plan.Fingerprint, len(plan.Tasks)),
				Path:            entry.Path,
				RowGroup:        gi,
				Columns:         physical,
				Categories:      categories,
				PartitionValues: values,
			})
		}
	}

	if index != "" {
		plan.Divisions = taskDivisions(m, plan.Tasks, index)
	}
	return plan, nil
}

// resolveIndex picks the sort-key column for the read.
func resolveIndex(m *dataset.Metadata, cfg ReadConfig) (string, error) {
	if cfg.NoIndex {
		return "", nil
	}
	if cfg.Index != "" {
		if _, ok := m.Schema.Lookup(cfg.Index); !ok {
			return "", daskerrors.NewUnknownColumn(cfg.Index)
		}
		return cfg.Index, nil
	}
	return m.Schema.Index, nil
}

// resolveColumns expands and validates the output column selection,
// partition columns included. The index is not part of the selection
// unless explicitly requested.
func resolveColumns(m *dataset.Metadata, cfg ReadConfig, index string) ([]string, error) {
	if cfg.Columns == nil {
		var out []string
		for _, def := range m.Schema.Columns {
			if def.Name == index {
				continue
			}
			out = append(out, def.Name)
		}
		return append(out, m.PartitionColumns...), nil
	}
	for _, name := range cfg.Columns {
		if !columnKnown(m, name) {
			return nil, daskerrors.NewUnknownColumn(name)
		}
	}
	return append([]string(nil), cfg.Columns...), nil
}

// physicalColumns lists the stored columns a task decodes: the index first
// when set, then the selected stored columns in selection order.
func physicalColumns(m *dataset.Metadata, output []string, index string) []string {
	var phys []string
	if index != "" {
		phys = append(phys, index)
	}
	for _, name := range output {
		if name == index {
			continue
		}
		if _, ok := m.Schema.Lookup(name); ok {
			phys = append(phys, name)
		}
	}
	return phys
}

// resolveCategories validates the category request against the stored
// schema. Nil means every selected dictionary-encoded column.
func resolveCategories(m *dataset.Metadata, cfg ReadConfig, physical []string) ([]string, error) {
	if cfg.Categories == nil {
		var out []string
		for _, name := range physical {
			if def, ok := m.Schema.Lookup(name); ok && def.Type == types.Categorical {
				out = append(out, name)
			}
		}
		return out, nil
	}
	out := make([]string, 0, len(cfg.Categories))
	for _, name := range cfg.Categories {
		def, ok := m.Schema.Lookup(name)
		if !ok {
			if contains(m.PartitionColumns, name) {
				return nil, daskerrors.NewNotDictionaryEncoded(name)
			}
			return nil, daskerrors.NewUnknownColumn(name)
		}
		if def.Type != types.Categorical {
			return nil, daskerrors.NewNotDictionaryEncoded(name)
		}
		out = append(out, name)
	}
	return out, nil
}

// outputSchema builds the final schema over the reassembled column order.
// Partition columns surface as non-nullable strings.
func outputSchema(m *dataset.Metadata, final []string, index string, categories []string) (*types.Schema, error) {
	out := &types.Schema{Index: index, KeyValues: m.Schema.KeyValues}
	for _, name := range final {
		if def, ok := m.Schema.Lookup(name); ok {
			if def.Type == types.Categorical && !contains(categories, name) {
				def.Type = types.String
				def.Categorical = false
			}
			out.Columns = append(out.Columns, def)
			continue
		}
		if contains(m.PartitionColumns, name) {
			out.Columns = append(out.Columns, types.ColumnDef{Name: name, Type: types.String})
			continue
		}
		return nil, daskerrors.NewUnknownColumn(name)
	}
	return out, nil
}

// taskDivisions derives sort-key divisions across the planned tasks from
// index chunk statistics. Any missing statistic or ordering violation
// degrades to unknown; adjacent boundaries may touch.
func taskDivisions(m *dataset.Metadata, tasks []ReadTask, index string) []any {
	if len(tasks) == 0 {
		return nil
	}
	footers := make(map[string]int, len(m.Files))
	for i, entry := range m.Files {
		footers[entry.Path] = i
	}
	divs := make([]any, 0, len(tasks)+1)
	var prevMax any
	for _, task := range tasks {
		fi, ok := footers[task.Path]
		if !ok {
			return nil
		}
		chunk, found := m.Files[fi].Footer.Chunk(task.RowGroup, index)
		if !found || chunk.Stats.Min == nil || chunk.Stats.Max == nil {
			return nil
		}
		min, max := chunk.Stats.Min, chunk.Stats.Max
		if cmp, err := types.Compare(min, max); err != nil || cmp > 0 {
			return nil
		}
		if prevMax != nil {
			if cmp, err := types.Compare(min, prevMax); err != nil || cmp < 0 {
				return nil
			}
		}
		divs = append(divs, min)
		prevMax = max
	}
	return append(divs, prevMax)
}

func columnKnown(m *dataset.Metadata, name string) bool {
	if _, ok := m.Schema.Lookup(name); ok {
		return true
	}
	return contains(m.PartitionColumns, name)
}
