package types

import "fmt"

// Table is an ordered sequence of equally-sized named columns, with an
// optional designated sort-key column (the index).
type Table struct {
	// Columns holds the columns in order
	Columns []Column

	// Index is the name of the sort-key column, empty when none
	Index string
}

// NewTable builds a table and checks that all columns share one length.
func NewTable(columns []Column, index string) (*Table, error) {
	t := &Table{Columns: columns, Index: index}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Def.Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Schema derives the table's schema in column order.
func (t *Table) Schema() *Schema {
	s := &Schema{Index: t.Index}
	for _, c := range t.Columns {
		def := c.Def
		if c.Valid != nil {
			def.Nullable = true
		}
		s.Columns = append(s.Columns, def)
	}
	return s
}

// Validate checks that every column has the same length, names are unique
// and the index column exists when set.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	n := -1
	for i := range t.Columns {
		c := &t.Columns[i]
		if seen[c.Def.Name] {
			return fmt.Errorf("types: duplicate column %q", c.Def.Name)
		}
		seen[c.Def.Name] = true
		if n == -1 {
			n = c.Len()
		} else if c.Len() != n {
			return fmt.Errorf("types: column %q has %d rows, want %d", c.Def.Name, c.Len(), n)
		}
	}
	if t.Index != "" && !seen[t.Index] {
		return fmt.Errorf("types: index column %q not present", t.Index)
	}
	return nil
}

// Slice returns the rows [lo, hi) as a table sharing backing storage.
func (t *Table) Slice(lo, hi int) *Table {
	out := &Table{Index: t.Index}
	for i := range t.Columns {
		out.Columns = append(out.Columns, t.Columns[i].Slice(lo, hi))
	}
	return out
}

// Take returns a table holding the rows at the given indices, in order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{Index: t.Index}
	for i := range t.Columns {
		out.Columns = append(out.Columns, t.Columns[i].Take(rows))
	}
	return out
}

// Select returns a table with the named columns in the requested order.
func (t *Table) Select(names []string) (*Table, error) {
	out := &Table{Index: t.Index}
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("types: column %q not present", name)
		}
		out.Columns = append(out.Columns, *c)
	}
	return out, nil
}

// DropColumn returns a table without the named column.
func (t *Table) DropColumn(name string) *Table {
	out := &Table{Index: t.Index}
	if out.Index == name {
		out.Index = ""
	}
	for i := range t.Columns {
		if t.Columns[i].Def.Name == name {
			continue
		}
		out.Columns = append(out.Columns, t.Columns[i])
	}
	return out
}

// Concat joins tables with identical column layouts in order.
func Concat(tables []*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	out := &Table{Index: tables[0].Index}
	for ci := range tables[0].Columns {
		parts := make([]Column, 0, len(tables))
		for _, t := range tables {
			if len(t.Columns) != len(tables[0].Columns) {
				return nil, fmt.Errorf("types: concat column count mismatch")
			}
			parts = append(parts, t.Columns[ci])
		}
		col, err := concatColumns(parts)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}
