package engine

import (
	"context"

	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/pkg/types"
)

// NameColumnar is the standard-library-style variant. It reads int96 files
// but never writes them, understands only hive partition directories and
// does not guarantee dictionary preservation: categorical columns decode to
// plain strings unless explicitly requested.
const NameColumnar = "columnar"

type columnarEngine struct{}

func (columnarEngine) Name() string { return NameColumnar }

func (columnarEngine) Capabilities() Capabilities {
	return Capabilities(CapHivePartitioning | CapPerColumnCompression | CapRowGroupStatistics)
}

func (e columnarEngine) WriteFile(ctx context.Context, schema *types.Schema, fragments []*types.Table, opts file.WriterOptions) ([]byte, error) {
	opts.Engine = NameColumnar
	return writeFile(ctx, schema, fragments, opts)
}

func (columnarEngine) ReadRowGroup(ctx context.Context, data []byte, rowGroup int, columns, categories []string) (*types.Table, error) {
	fr, err := file.OpenReaderBytes(data)
	if err != nil {
		return nil, err
	}
	t, err := fr.ReadRowGroup(ctx, rowGroup, columns)
	if err != nil {
		return nil, err
	}
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
