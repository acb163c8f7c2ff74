package engine

import (
	"bytes"
	"context"

	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/pkg/types"
)

// NameLegacy is the dictionary-preserving variant. It keeps categorical
// columns dictionary-encoded end to end, writes int96 timestamps on request
// and understands both hive and drill partition directories.
const NameLegacy = "legacy"

type legacyEngine struct{}

func (legacyEngine) Name() string { return NameLegacy }

func (legacyEngine) Capabilities() Capabilities {
	return Capabilities(CapDictionaryPreserving | CapInt96Write |
		CapDrillPartitioning | CapHivePartitioning |
		CapPerColumnCompression | CapRowGroupStatistics)
}

func (e legacyEngine) WriteFile(ctx context.Context, schema *types.Schema, fragments []*types.Table, opts file.WriterOptions) ([]byte, error) {
	opts.Engine = NameLegacy
	return writeFile(ctx, schema, fragments, opts)
}

func (legacyEngine) ReadRowGroup(ctx context.Context, data []byte, rowGroup int, columns, categories []string) (*types.Table, error) {
	fr, err := file.OpenReaderBytes(data)
	if err != nil {
		return nil, err
	}
	t, err := fr.ReadRowGroup(ctx, rowGroup, columns)
	if err != nil {
		return nil, err
	}
	// Dictionary-preserving: categorical columns come back encoded and are
	// materialized only when the resolved category list excludes them.
	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	for i := range t.Columns {
		col := &t.Columns[i]
		if col.Def.Type == types.Categorical && !wanted[col.Def.Name] {
			*col = col.Materialize()
		}
	}
	return t, nil
}

// writeFile runs the shared write loop for both variants.
func writeFile(ctx context.Context, schema *types.Schema, fragments []*types.Table, opts file.WriterOptions) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := file.NewWriter(&buf, schema, opts)
	if err != nil {
		return nil, err
	}
	for _, frag := range fragments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// A zero-row table keeps its schema in the footer alone.
		if frag.NumRows() == 0 {
			continue
		}
		if err := fw.WriteRowGroup(frag); err != nil {
			return nil, err
		}
	}
	if _, err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
