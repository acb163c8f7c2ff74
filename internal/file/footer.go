// Package file implements the single-file row-group container: a header
// magic, one or more row groups of compressed column chunks, and a JSON
// footer carrying the schema, per-chunk statistics and user metadata.
package file

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/sheppard/dask/internal/codec"
	"github.com/sheppard/dask/pkg/types"
)

const (
	// Magic brackets every data file: it opens the file and closes the
	// footer so truncation is detectable from either end.
	Magic = "DSK1"

	// FormatVersion is bumped on incompatible layout changes.
	FormatVersion = 1
)

// ChunkMeta locates one column chunk inside the file and carries the
// statistics reported by the codec at encode time.
type ChunkMeta struct {
	Column      string      `json:"column"`
	Offset      int64       `json:"offset"`
	Length      int64       `json:"length"`
	Compression string      `json:"compression"`
	Stats       codec.Stats `json:"stats"`

	// Bloom is a serialized membership filter over the chunk's distinct
	// string values, present for utf8 and dictionary-encoded columns.
	// Equality filters prune on a negative lookup.
	Bloom string `json:"bloom,omitempty"`
}

// RowGroupMeta describes one row group.
type RowGroupMeta struct {
	NumRows int64       `json:"num_rows"`
	Chunks  []ChunkMeta `json:"chunks"`
}

// Footer is the file-level metadata written after the last row group.
type Footer struct {
	Version   int               `json:"version"`
	Engine    string            `json:"engine"`
	Schema    *types.Schema     `json:"schema"`
	RowGroups []RowGroupMeta    `json:"row_groups"`
	NumRows   int64             `json:"num_rows"`
	KeyValues map[string]string `json:"key_values,omitempty"`
}

// Chunk returns the chunk for the named column in row group i.
func (f *Footer) Chunk(i int, column string) (ChunkMeta, bool) {
	for _, c := range f.RowGroups[i].Chunks {
		if c.Column == column {
			return c, true
		}
	}
	return ChunkMeta{}, false
}

// Marshal serializes the footer to JSON.
func (f *Footer) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalFooter parses footer JSON and re-types chunk statistics to the
// column dtypes, which plain JSON decoding loses.
func UnmarshalFooter(data []byte) (*Footer, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Footer
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("file: parse footer: %w", err)
	}
	if f.Schema == nil {
		return nil, fmt.Errorf("file: footer missing schema")
	}
	for gi := range f.RowGroups {
		for ci := range f.RowGroups[gi].Chunks {
			chunk := &f.RowGroups[gi].Chunks[ci]
			def, ok := f.Schema.Lookup(chunk.Column)
			if !ok {
				return nil, fmt.Errorf("file: chunk for unknown column %q", chunk.Column)
			}
			var err error
			if chunk.Stats.Min, err = retypeStat(def, chunk.Stats.Min); err != nil {
				return nil, err
			}
			if chunk.Stats.Max, err = retypeStat(def, chunk.Stats.Max); err != nil {
				return nil, err
			}
		}
	}
	return &f, nil
}

// retypeStat converts a JSON-decoded statistic back into the column's value
// domain: integers to int64, byte strings back to []byte.
func retypeStat(def types.ColumnDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch def.Type {
	case types.Int32, types.Int64, types.Timestamp:
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("file: stat for %q is %T, want number", def.Name, v)
		}
		i, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("file: stat for %q: %w", def.Name, err)
		}
		return i, nil
	case types.Float64:
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("file: stat for %q is %T, want number", def.Name, v)
		}
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("file: stat for %q: %w", def.Name, err)
		}
		return f, nil
	case types.String, types.Categorical:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("file: stat for %q is %T, want string", def.Name, v)
		}
		return s, nil
	case types.Bytes:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("file: stat for %q is %T, want base64 string", def.Name, v)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("file: stat for %q: %w", def.Name, err)
		}
		return b, nil
	case types.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("file: stat for %q is %T, want bool", def.Name, v)
		}
		return b, nil
	}
	return nil, nil
}
