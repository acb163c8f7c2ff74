package file

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sheppard/dask/internal/bloom"
	"github.com/sheppard/dask/internal/codec"
	"github.com/sheppard/dask/pkg/types"
)

// WriterOptions configure how a data file is produced.
type WriterOptions struct {
	// Engine names the engine variant producing the file; recorded in the
	// footer for capability checks on read.
	Engine string

	// Compression is the default chunk compression.
	Compression string

	// ColumnCompression overrides compression per column.
	ColumnCompression map[string]string

	// KeyValues are user metadata stored in the footer.
	KeyValues map[string]string
}

func (o WriterOptions) compressionFor(column string) string {
	if c, ok := o.ColumnCompression[column]; ok {
		return c
	}
	return o.Compression
}

// Writer streams row groups of a fixed schema into one data file.
type Writer struct {
	w      io.Writer
	schema *types.Schema
	opts   WriterOptions
	offset int64
	footer Footer
	codecs map[string]codec.Codec
	closed bool
}

// NewWriter opens a file writer, emitting the header magic immediately.
func NewWriter(w io.Writer, schema *types.Schema, opts WriterOptions) (*Writer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	fw := &Writer{
		w:      w,
		schema: schema,
		opts:   opts,
		codecs: make(map[string]codec.Codec),
		footer: Footer{
			Version:   FormatVersion,
			Engine:    opts.Engine,
			Schema:    schema,
			KeyValues: opts.KeyValues,
		},
	}
	if _, err := w.Write([]byte(Magic)); err != nil {
		return nil, fmt.Errorf("file: write header: %w", err)
	}
	fw.offset = int64(len(Magic))
	return fw, nil
}

// WriteRowGroup encodes one table fragment as a row group. The table's
// columns must match the writer schema in order.
func (fw *Writer) WriteRowGroup(t *types.Table) error {
	if fw.closed {
		return fmt.Errorf("file: writer closed")
	}
	if len(t.Columns) != len(fw.schema.Columns) {
		return fmt.Errorf("file: row group has %d columns, schema has %d",
			len(t.Columns), len(fw.schema.Columns))
	}
	group := RowGroupMeta{NumRows: int64(t.NumRows())}
	for i := range t.Columns {
		col := t.Columns[i]
		def := fw.schema.Columns[i]
		if col.Def.Name != def.Name {
			return fmt.Errorf("file: column %d is %q, schema expects %q",
				i, col.Def.Name, def.Name)
		}
		compression := fw.opts.compressionFor(def.Name)
		cdc, err := fw.codecFor(compression)
		if err != nil {
			return err
		}
		// Encode with the on-disk definition so storage-only layouts
		// (int96 timestamps) apply regardless of the in-memory unit.
		// Values convert to the target precision first; relabeling alone
		// would shift every timestamp by the unit ratio.
		if def.Type == types.Timestamp && col.Def.TimeUnit != def.TimeUnit {
			col = rescaleTimestamps(col, col.Def.TimeUnit, def.TimeUnit)
		}
		col.Def = def
		chunk, stats, err := cdc.Encode(col)
		if err != nil {
			return fmt.Errorf("file: encode column %q: %w", def.Name, err)
		}
		if _, err := fw.w.Write(chunk); err != nil {
			return fmt.Errorf("file: write chunk %q: %w", def.Name, err)
		}
		group.Chunks = append(group.Chunks, ChunkMeta{
			Column:      def.Name,
			Offset:      fw.offset,
			Length:      int64(len(chunk)),
			Compression: compression,
			Stats:       stats,
			Bloom:       chunkBloom(&col),
		})
		fw.offset += int64(len(chunk))
	}
	fw.footer.RowGroups = append(fw.footer.RowGroups, group)
	fw.footer.NumRows += group.NumRows
	return nil
}

// Close writes the footer, its length and the trailing magic, and returns
// the finished footer for metadata aggregation.
func (fw *Writer) Close() (*Footer, error) {
	if fw.closed {
		return nil, fmt.Errorf("file: writer closed")
	}
	fw.closed = true
	data, err := fw.footer.Marshal()
	if err != nil {
		return nil, fmt.Errorf("file: marshal footer: %w", err)
	}
	if _, err := fw.w.Write(data); err != nil {
		return nil, fmt.Errorf("file: write footer: %w", err)
	}
	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[:4], uint32(len(data)))
	copy(tail[4:], Magic)
	if _, err := fw.w.Write(tail[:]); err != nil {
		return nil, fmt.Errorf("file: write footer length: %w", err)
	}
	return &fw.footer, nil
}

// unitScaleNS returns nanoseconds per tick of a storage precision. The
// int96 layout stores nanoseconds.
func unitScaleNS(u types.TimeUnit) int64 {
	switch u {
	case types.UnitUS:
		return 1_000
	case types.UnitMS:
		return 1_000_000
	default:
		return 1
	}
}

// rescaleTimestamps converts a timestamp column's values between storage
// precisions. The backing slice is copied, never modified in place;
// narrowing (ns to ms) truncates toward zero.
func rescaleTimestamps(col types.Column, from, to types.TimeUnit) types.Column {
	sf, st := unitScaleNS(from), unitScaleNS(to)
	if sf == st {
		return col
	}
	values, ok := col.Data.([]int64)
	if !ok {
		return col
	}
	out := make([]int64, len(values))
	if sf > st {
		f := sf / st
		for i, v := range values {
			out[i] = v * f
		}
	} else {
		f := st / sf
		for i, v := range values {
			out[i] = v / f
		}
	}
	col.Data = out
	return col
}

// chunkBloom builds a membership filter over a string-valued chunk's
// distinct non-null values. Other dtypes prune by min/max alone.
func chunkBloom(col *types.Column) string {
	var distinct map[string]struct{}
	switch col.Def.Type {
	case types.String:
		values, ok := col.Data.([]string)
		if !ok {
			return ""
		}
		distinct = make(map[string]struct{})
		for i, v := range values {
			if col.IsNull(i) {
				continue
			}
			distinct[v] = struct{}{}
		}
	case types.Categorical:
		distinct = make(map[string]struct{})
		for i, code := range col.Codes {
			if col.IsNull(i) || int(code) >= len(col.Dict) {
				continue
			}
			distinct[col.Dict[code]] = struct{}{}
		}
	default:
		return ""
	}
	if len(distinct) == 0 {
		return ""
	}
	f := bloom.NewWithEstimates(len(distinct), 0.01)
	for v := range distinct {
		f.AddString(v)
	}
	return f.MarshalBase64()
}

func (fw *Writer) codecFor(compression string) (codec.Codec, error) {
	if c, ok := fw.codecs[compression]; ok {
		return c, nil
	}
	c, err := codec.New(compression)
	if err != nil {
		return nil, err
	}
	fw.codecs[compression] = c
	return c, nil
}
