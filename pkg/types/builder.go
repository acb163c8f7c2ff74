package types

import "fmt"

// TableBuilder accumulates row-oriented input into columnar storage for a
// fixed schema. Row ingestion paths (CSV import, tests) build tables with
// it instead of assembling backing slices by hand.
type TableBuilder struct {
	schema *Schema
	data   []any    // typed slices, parallel to schema.Columns
	valid  [][]bool // lazily allocated per column on the first null
	rows   int
}

// NewTableBuilder creates a builder for the schema.
func NewTableBuilder(schema *Schema) (*TableBuilder, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	b := &TableBuilder{
		schema: schema,
		data:   make([]any, len(schema.Columns)),
		valid:  make([][]bool, len(schema.Columns)),
	}
	for i, def := range schema.Columns {
		switch def.Type {
		case Int32:
			b.data[i] = []int32{}
		case Int64, Timestamp:
			b.data[i] = []int64{}
		case Float64:
			b.data[i] = []float64{}
		case Bool:
			b.data[i] = []bool{}
		case String, Categorical:
			b.data[i] = []string{}
		case Bytes:
			b.data[i] = [][]byte{}
		default:
			return nil, fmt.Errorf("types: builder cannot hold dtype %s", def.Type)
		}
	}
	return b, nil
}

// AppendRow appends one row of values in schema column order. A nil value
// is a null and requires the column to be nullable.
func (b *TableBuilder) AppendRow(values []any) error {
	if len(values) != len(b.schema.Columns) {
		return fmt.Errorf("types: row has %d values, schema has %d columns",
			len(values), len(b.schema.Columns))
	}
	for i, v := range values {
		def := b.schema.Columns[i]
		if v == nil {
			if !def.Nullable {
				return fmt.Errorf("types: null in non-nullable column %q", def.Name)
			}
			if b.valid[i] == nil {
				b.valid[i] = make([]bool, b.rows)
				for j := range b.valid[i] {
					b.valid[i][j] = true
				}
			}
			b.valid[i] = append(b.valid[i], false)
			b.appendZero(i, def)
			continue
		}
		if b.valid[i] != nil {
			b.valid[i] = append(b.valid[i], true)
		}
		if err := b.appendValue(i, def, v); err != nil {
			return err
		}
	}
	b.rows++
	return nil
}

func (b *TableBuilder) appendZero(i int, def ColumnDef) {
	switch def.Type {
	case Int32:
		b.data[i] = append(b.data[i].([]int32), 0)
	case Int64, Timestamp:
		b.data[i] = append(b.data[i].([]int64), 0)
	case Float64:
		b.data[i] = append(b.data[i].([]float64), 0)
	case Bool:
		b.data[i] = append(b.data[i].([]bool), false)
	case String, Categorical:
		b.data[i] = append(b.data[i].([]string), "")
	case Bytes:
		b.data[i] = append(b.data[i].([][]byte), nil)
	}
}

func (b *TableBuilder) appendValue(i int, def ColumnDef, v any) error {
	mismatch := func() error {
		return fmt.Errorf("types: column %q (%s) cannot hold %T", def.Name, def.Type, v)
	}
	switch def.Type {
	case Int32:
		t, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([]int32), t)
	case Int64, Timestamp:
		t, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([]int64), t)
	case Float64:
		t, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([]float64), t)
	case Bool:
		t, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([]bool), t)
	case String, Categorical:
		t, ok := v.(string)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([]string), t)
	case Bytes:
		t, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		b.data[i] = append(b.data[i].([][]byte), t)
	}
	return nil
}

// NumRows returns the number of appended rows.
func (b *TableBuilder) NumRows() int { return b.rows }

// Build assembles the accumulated rows into a table. Categorical columns
// dictionary-encode in first-seen order. The builder must not be reused.
func (b *TableBuilder) Build() (*Table, error) {
	t := &Table{Index: b.schema.Index}
	for i, def := range b.schema.Columns {
		var col Column
		if def.Type == Categorical {
			col = NewCategoricalColumn(def.Name, b.data[i].([]string))
			col.Def = def
		} else {
			col = Column{Def: def, Data: b.data[i]}
		}
		col.Valid = b.valid[i]
		t.Columns = append(t.Columns, col)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
