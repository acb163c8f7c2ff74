// Package codec encodes and decodes single column chunks to and from their
// row-group byte layout, reporting per-chunk statistics on encode. The byte
// layout is deliberately narrow: a plain per-dtype encoding wrapped in a
// whole-chunk compression frame.
package codec

import (
	"fmt"

	"github.com/sheppard/dask/pkg/types"
)

// Stats are the per-chunk statistics reported on encode. Min and Max are
// nil for types without a usable ordering or for all-null chunks; they are
// used only for pruning and never assumed exact for raw-bytes columns.
type Stats struct {
	Min           any   `json:"min,omitempty"`
	Max           any   `json:"max,omitempty"`
	NullCount     int64 `json:"null_count"`
	DistinctCount int64 `json:"distinct_count,omitempty"`
}

// Codec encodes one column's values into a compressed chunk and back.
type Codec interface {
	// Encode serializes the column into a chunk, reporting statistics.
	Encode(col types.Column) ([]byte, Stats, error)

	// Decode rebuilds a column from a chunk using the given definition.
	Decode(chunk []byte, def types.ColumnDef) (types.Column, error)
}

// New returns a codec compressing chunks with the named compression:
// "snappy", "gzip", "zstd" or "" / "none" for uncompressed.
func New(compression string) (Codec, error) {
	comp, err := newCompressor(compression)
	if err != nil {
		return nil, err
	}
	return &plainCodec{comp: comp}, nil
}

// computeStats folds every non-null value of the column into chunk stats.
func computeStats(col types.Column) (Stats, error) {
	var stats Stats
	stats.NullCount = col.NullCount()
	if col.Def.Type == types.Categorical {
		stats.DistinctCount = int64(len(col.Dict))
	}
	if !col.Def.Type.Ordered() && col.Def.Type != types.Categorical {
		return stats, nil
	}
	var mm types.MinMax
	for i := 0; i < col.Len(); i++ {
		if err := mm.Update(col.Value(i)); err != nil {
			return stats, fmt.Errorf("codec: stats for column %q: %w", col.Def.Name, err)
		}
	}
	stats.Min, stats.Max = mm.Min, mm.Max
	return stats, nil
}
