package file

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sheppard/dask/internal/codec"
	"github.com/sheppard/dask/pkg/types"
)

// Reader gives row-group access to one data file. Opening a reader parses
// only the footer; chunks are decoded on demand.
type Reader struct {
	r      io.ReaderAt
	size   int64
	footer *Footer
	codecs map[string]codec.Codec
}

// OpenReader parses the footer of a data file.
func OpenReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < int64(len(Magic))+8 {
		return nil, fmt.Errorf("file: %d bytes is too small for a data file", size)
	}
	head := make([]byte, len(Magic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, fmt.Errorf("file: read header: %w", err)
	}
	if !bytes.Equal(head, []byte(Magic)) {
		return nil, fmt.Errorf("file: bad header magic %q", head)
	}
	tail := make([]byte, 8)
	if _, err := r.ReadAt(tail, size-8); err != nil {
		return nil, fmt.Errorf("file: read footer length: %w", err)
	}
	if !bytes.Equal(tail[4:], []byte(Magic)) {
		return nil, fmt.Errorf("file: bad trailing magic %q", tail[4:])
	}
	footerLen := int64(binary.LittleEndian.Uint32(tail[:4]))
	if footerLen <= 0 || footerLen > size-8-int64(len(Magic)) {
		return nil, fmt.Errorf("file: footer length %d out of range", footerLen)
	}
	data := make([]byte, footerLen)
	if _, err := r.ReadAt(data, size-8-footerLen); err != nil {
		return nil, fmt.Errorf("file: read footer: %w", err)
	}
	footer, err := UnmarshalFooter(data)
	if err != nil {
		return nil, err
	}
	if footer.Version != FormatVersion {
		return nil, fmt.Errorf("file: unsupported format version %d", footer.Version)
	}
	return &Reader{r: r, size: size, footer: footer, codecs: make(map[string]codec.Codec)}, nil
}

// OpenReaderBytes opens an in-memory data file.
func OpenReaderBytes(data []byte) (*Reader, error) {
	return OpenReader(bytes.NewReader(data), int64(len(data)))
}

// Footer returns the parsed footer; callers use it for planning without
// decoding any chunk.
func (fr *Reader) Footer() *Footer { return fr.footer }

// Schema returns the on-disk schema.
func (fr *Reader) Schema() *types.Schema { return fr.footer.Schema }

// NumRowGroups returns the row-group count.
func (fr *Reader) NumRowGroups() int { return len(fr.footer.RowGroups) }

// ReadRowGroup decodes the requested columns of row group i, in the
// requested order. A nil column list reads the full schema order.
func (fr *Reader) ReadRowGroup(ctx context.Context, i int, columns []string) (*types.Table, error) {
	if i < 0 || i >= len(fr.footer.RowGroups) {
		return nil, fmt.Errorf("file: row group %d out of range [0,%d)", i, len(fr.footer.RowGroups))
	}
	if columns == nil {
		columns = fr.footer.Schema.Names()
	}
	t := &types.Table{Index: fr.footer.Schema.Index}
	for _, name := range columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		def, ok := fr.footer.Schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("file: column %q not in file schema", name)
		}
		meta, ok := fr.footer.Chunk(i, name)
		if !ok {
			return nil, fmt.Errorf("file: row group %d has no chunk for %q", i, name)
		}
		chunk := make([]byte, meta.Length)
		if _, err := fr.r.ReadAt(chunk, meta.Offset); err != nil {
			return nil, fmt.Errorf("file: read chunk %q: %w", name, err)
		}
		cdc, err := fr.codecFor(meta.Compression)
		if err != nil {
			return nil, err
		}
		col, err := cdc.Decode(chunk, def)
		if err != nil {
			return nil, fmt.Errorf("file: decode column %q: %w", name, err)
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}

func (fr *Reader) codecFor(compression string) (codec.Codec, error) {
	if c, ok := fr.codecs[compression]; ok {
		return c, nil
	}
	c, err := codec.New(compression)
	if err != nil {
		return nil, err
	}
	fr.codecs[compression] = c
	return c, nil
}
