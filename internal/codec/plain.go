package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sheppard/dask/pkg/types"
)

const (
	nsPerDay       = int64(86400) * 1e9
	julianDayEpoch = int64(2440588) // Julian day number of 1970-01-01
)

// plainCodec implements the plain per-dtype encoding wrapped in one
// compression frame per chunk.
type plainCodec struct {
	comp compressor
}

// Encode serializes the column and reports its statistics.
func (c *plainCodec) Encode(col types.Column) ([]byte, Stats, error) {
	stats, err := computeStats(col)
	if err != nil {
		return nil, Stats{}, err
	}

	var buf bytes.Buffer
	n := col.Len()
	writeUint32(&buf, uint32(n))

	if col.Valid != nil {
		buf.WriteByte(1)
		for _, v := range col.Valid {
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	} else {
		buf.WriteByte(0)
	}

	switch col.Def.Type {
	case types.Int32:
		for _, v := range col.Data.([]int32) {
			writeUint32(&buf, uint32(v))
		}
	case types.Int64:
		for _, v := range col.Data.([]int64) {
			writeUint64(&buf, uint64(v))
		}
	case types.Float64:
		for _, v := range col.Data.([]float64) {
			writeUint64(&buf, floatBits(v))
		}
	case types.Bool:
		for _, v := range col.Data.([]bool) {
			if v {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	case types.String:
		for _, v := range col.Data.([]string) {
			writeUint32(&buf, uint32(len(v)))
			buf.WriteString(v)
		}
	case types.Bytes:
		for _, v := range col.Data.([][]byte) {
			writeUint32(&buf, uint32(len(v)))
			buf.Write(v)
		}
	case types.Timestamp:
		values := col.Data.([]int64)
		if col.Def.TimeUnit == types.UnitInt96 {
			for _, v := range values {
				writeInt96(&buf, v)
			}
		} else {
			for _, v := range values {
				writeUint64(&buf, uint64(v))
			}
		}
	case types.Categorical:
		writeUint32(&buf, uint32(len(col.Dict)))
		for _, v := range col.Dict {
			writeUint32(&buf, uint32(len(v)))
			buf.WriteString(v)
		}
		for _, code := range col.Codes {
			writeUint32(&buf, uint32(code))
		}
	default:
		return nil, Stats{}, fmt.Errorf("codec: unsupported dtype %q", col.Def.Type)
	}

	out, err := c.comp.Compress(buf.Bytes())
	if err != nil {
		return nil, Stats{}, err
	}
	return out, stats, nil
}

// Decode rebuilds a column from a chunk.
func (c *plainCodec) Decode(chunk []byte, def types.ColumnDef) (types.Column, error) {
	raw, err := c.comp.Decompress(chunk)
	if err != nil {
		return types.Column{}, err
	}
	r := &chunkReader{buf: raw}

	n := int(r.uint32())
	col := types.Column{Def: def}
	if r.byte() == 1 {
		col.Valid = make([]bool, n)
		for i := range col.Valid {
			col.Valid[i] = r.byte() == 1
		}
	}

	switch def.Type {
	case types.Int32:
		values := make([]int32, n)
		for i := range values {
			values[i] = int32(r.uint32())
		}
		col.Data = values
	case types.Int64:
		values := make([]int64, n)
		for i := range values {
			values[i] = int64(r.uint64())
		}
		col.Data = values
	case types.Float64:
		values := make([]float64, n)
		for i := range values {
			values[i] = floatFromBits(r.uint64())
		}
		col.Data = values
	case types.Bool:
		values := make([]bool, n)
		for i := range values {
			values[i] = r.byte() == 1
		}
		col.Data = values
	case types.String:
		values := make([]string, n)
		for i := range values {
			values[i] = string(r.bytes(int(r.uint32())))
		}
		col.Data = values
	case types.Bytes:
		values := make([][]byte, n)
		for i := range values {
			values[i] = append([]byte(nil), r.bytes(int(r.uint32()))...)
		}
		col.Data = values
	case types.Timestamp:
		values := make([]int64, n)
		if def.TimeUnit == types.UnitInt96 {
			for i := range values {
				values[i] = r.int96()
			}
		} else {
			for i := range values {
				values[i] = int64(r.uint64())
			}
		}
		col.Data = values
	case types.Categorical:
		dictLen := int(r.uint32())
		col.Dict = make([]string, dictLen)
		for i := range col.Dict {
			col.Dict[i] = string(r.bytes(int(r.uint32())))
		}
		col.Codes = make([]int32, n)
		for i := range col.Codes {
			col.Codes[i] = int32(r.uint32())
		}
	default:
		return types.Column{}, fmt.Errorf("codec: unsupported dtype %q", def.Type)
	}

	if r.err != nil {
		return types.Column{}, fmt.Errorf("codec: truncated chunk for column %q: %w", def.Name, r.err)
	}
	return col, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// writeInt96 stores a nanosecond epoch timestamp as the legacy 12-byte
// layout: nanos within the day then the Julian day number.
func writeInt96(buf *bytes.Buffer, ns int64) {
	day := ns / nsPerDay
	nanos := ns - day*nsPerDay
	if nanos < 0 {
		nanos += nsPerDay
		day--
	}
	writeUint64(buf, uint64(nanos))
	writeUint32(buf, uint32(day+julianDayEpoch))
}

func floatBits(v float64) uint64     { return math.Float64bits(v) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// chunkReader walks the decompressed chunk, latching the first bounds error.
type chunkReader struct {
	buf []byte
	off int
	err error
}

func (r *chunkReader) bytes(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		if r.err == nil {
			r.err = fmt.Errorf("need %d bytes at offset %d, have %d", n, r.off, len(r.buf))
		}
		return make([]byte, n)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *chunkReader) byte() byte     { return r.bytes(1)[0] }
func (r *chunkReader) uint32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }
func (r *chunkReader) uint64() uint64 { return binary.LittleEndian.Uint64(r.bytes(8)) }

func (r *chunkReader) int96() int64 {
	nanos := int64(r.uint64())
	day := int64(int32(r.uint32())) - julianDayEpoch
	return day*nsPerDay + nanos
}
