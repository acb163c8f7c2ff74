package types

import "fmt"

// Column is one named, typed column of values with an optional validity
// bitmap. The backing storage is a typed slice held in Data; categorical
// columns instead carry a dictionary plus per-row codes into it.
//
// Slicing and concatenation reuse or append backing slices without changing
// value semantics, per the tabular value contract.
type Column struct {
	// Def describes the column (name, dtype, nullability, encoding)
	Def ColumnDef

	// Valid marks non-null rows; nil means every row is valid
	Valid []bool

	// Data holds the typed values: []int32, []int64, []float64, []bool,
	// []string or [][]byte depending on Def.Type. Timestamp columns store
	// int64 epoch values at Def.TimeUnit precision (int96 is a storage
	// layout only; in memory it is nanoseconds). Nil for categorical.
	Data any

	// Dict and Codes back categorical columns: Dict lists the distinct
	// values in first-seen order and Codes indexes into it per row.
	Dict  []string
	Codes []int32
}

// NewInt64Column builds a non-null int64 column.
func NewInt64Column(name string, values []int64) Column {
	return Column{Def: ColumnDef{Name: name, Type: Int64}, Data: values}
}

// NewFloat64Column builds a non-null float64 column.
func NewFloat64Column(name string, values []float64) Column {
	return Column{Def: ColumnDef{Name: name, Type: Float64}, Data: values}
}

// NewStringColumn builds a non-null utf8 column.
func NewStringColumn(name string, values []string) Column {
	return Column{Def: ColumnDef{Name: name, Type: String}, Data: values}
}

// NewTimestampColumn builds a non-null timestamp column holding epoch values
// at the given precision.
func NewTimestampColumn(name string, unit TimeUnit, values []int64) Column {
	return Column{Def: ColumnDef{Name: name, Type: Timestamp, TimeUnit: unit}, Data: values}
}

// NewCategoricalColumn builds a dictionary-encoded column from plain string
// values, assigning codes in first-seen order.
func NewCategoricalColumn(name string, values []string) Column {
	col := Column{Def: ColumnDef{Name: name, Type: Categorical, Categorical: true}}
	seen := make(map[string]int32)
	for _, v := range values {
		code, ok := seen[v]
		if !ok {
			code = int32(len(col.Dict))
			seen[v] = code
			col.Dict = append(col.Dict, v)
		}
		col.Codes = append(col.Codes, code)
	}
	return col
}

// EmptyColumn builds a zero-row column for the definition.
func EmptyColumn(def ColumnDef) Column {
	col := Column{Def: def}
	switch def.Type {
	case Int32:
		col.Data = []int32{}
	case Int64, Timestamp:
		col.Data = []int64{}
	case Float64:
		col.Data = []float64{}
	case Bool:
		col.Data = []bool{}
	case String:
		col.Data = []string{}
	case Bytes:
		col.Data = [][]byte{}
	case Categorical:
		col.Codes = []int32{}
	}
	return col
}

// Name returns the column name.
func (c *Column) Name() string { return c.Def.Name }

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	if c.Def.Type == Categorical {
		return len(c.Codes)
	}
	switch v := c.Data.(type) {
	case []int32:
		return len(v)
	case []int64:
		return len(v)
	case []float64:
		return len(v)
	case []bool:
		return len(v)
	case []string:
		return len(v)
	case [][]byte:
		return len(v)
	case nil:
		return 0
	}
	panic(fmt.Sprintf("types: column %q has unsupported backing %T", c.Def.Name, c.Data))
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

// NullCount returns the number of null rows.
func (c *Column) NullCount() int64 {
	if c.Valid == nil {
		return 0
	}
	var n int64
	for _, v := range c.Valid {
		if !v {
			n++
		}
	}
	return n
}

// Value returns the value at row i, or nil for a null row. Categorical
// columns return the dictionary value.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	if c.Def.Type == Categorical {
		return c.Dict[c.Codes[i]]
	}
	switch v := c.Data.(type) {
	case []int32:
		return v[i]
	case []int64:
		return v[i]
	case []float64:
		return v[i]
	case []bool:
		return v[i]
	case []string:
		return v[i]
	case [][]byte:
		return v[i]
	}
	panic(fmt.Sprintf("types: column %q has unsupported backing %T", c.Def.Name, c.Data))
}

// Slice returns the rows [lo, hi) as a column sharing backing storage.
func (c *Column) Slice(lo, hi int) Column {
	out := Column{Def: c.Def, Dict: c.Dict}
	if c.Valid != nil {
		out.Valid = c.Valid[lo:hi]
	}
	if c.Def.Type == Categorical {
		out.Codes = c.Codes[lo:hi]
		return out
	}
	switch v := c.Data.(type) {
	case []int32:
		out.Data = v[lo:hi]
	case []int64:
		out.Data = v[lo:hi]
	case []float64:
		out.Data = v[lo:hi]
	case []bool:
		out.Data = v[lo:hi]
	case []string:
		out.Data = v[lo:hi]
	case [][]byte:
		out.Data = v[lo:hi]
	default:
		panic(fmt.Sprintf("types: column %q has unsupported backing %T", c.Def.Name, c.Data))
	}
	return out
}

// Take returns a column holding the rows at the given indices, in order.
func (c *Column) Take(rows []int) Column {
	out := Column{Def: c.Def, Dict: c.Dict}
	if c.Valid != nil {
		out.Valid = make([]bool, 0, len(rows))
		for _, r := range rows {
			out.Valid = append(out.Valid, c.Valid[r])
		}
	}
	if c.Def.Type == Categorical {
		out.Codes = make([]int32, 0, len(rows))
		for _, r := range rows {
			out.Codes = append(out.Codes, c.Codes[r])
		}
		return out
	}
	switch v := c.Data.(type) {
	case []int32:
		out.Data = takeSlice(v, rows)
	case []int64:
		out.Data = takeSlice(v, rows)
	case []float64:
		out.Data = takeSlice(v, rows)
	case []bool:
		out.Data = takeSlice(v, rows)
	case []string:
		out.Data = takeSlice(v, rows)
	case [][]byte:
		out.Data = takeSlice(v, rows)
	default:
		panic(fmt.Sprintf("types: column %q has unsupported backing %T", c.Def.Name, c.Data))
	}
	return out
}

func takeSlice[T any](src []T, rows []int) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, src[r])
	}
	return out
}

// Materialize decodes a categorical column into a plain utf8 column.
func (c *Column) Materialize() Column {
	if c.Def.Type != Categorical {
		return *c
	}
	values := make([]string, len(c.Codes))
	for i, code := range c.Codes {
		if !c.IsNull(i) {
			values[i] = c.Dict[code]
		}
	}
	def := c.Def
	def.Type = String
	def.Categorical = false
	return Column{Def: def, Valid: c.Valid, Data: values}
}

// concatColumns joins columns of identical definition in order. Categorical
// inputs are re-coded against a combined dictionary in first-seen order.
func concatColumns(cols []Column) (Column, error) {
	if len(cols) == 0 {
		return Column{}, fmt.Errorf("types: concat of zero columns")
	}
	out := Column{Def: cols[0].Def}
	total := 0
	hasNulls := false
	for _, c := range cols {
		if c.Def.Name != out.Def.Name || c.Def.Type != out.Def.Type {
			return Column{}, fmt.Errorf("types: concat mismatch on column %q", out.Def.Name)
		}
		total += c.Len()
		if c.Valid != nil {
			hasNulls = true
		}
	}
	if hasNulls {
		out.Valid = make([]bool, 0, total)
		for _, c := range cols {
			if c.Valid == nil {
				for i := 0; i < c.Len(); i++ {
					out.Valid = append(out.Valid, true)
				}
			} else {
				out.Valid = append(out.Valid, c.Valid...)
			}
		}
	}
	if out.Def.Type == Categorical {
		seen := make(map[string]int32)
		for _, c := range cols {
			remap := make([]int32, len(c.Dict))
			for i, v := range c.Dict {
				code, ok := seen[v]
				if !ok {
					code = int32(len(out.Dict))
					seen[v] = code
					out.Dict = append(out.Dict, v)
				}
				remap[i] = code
			}
			for _, code := range c.Codes {
				out.Codes = append(out.Codes, remap[code])
			}
		}
		return out, nil
	}
	switch cols[0].Data.(type) {
	case []int32:
		out.Data = concatSlices[int32](cols)
	case []int64:
		out.Data = concatSlices[int64](cols)
	case []float64:
		out.Data = concatSlices[float64](cols)
	case []bool:
		out.Data = concatSlices[bool](cols)
	case []string:
		out.Data = concatSlices[string](cols)
	case [][]byte:
		out.Data = concatSlices[[]byte](cols)
	default:
		return Column{}, fmt.Errorf("types: concat of unsupported backing %T", cols[0].Data)
	}
	return out, nil
}

func concatSlices[T any](cols []Column) []T {
	var out []T
	for _, c := range cols {
		out = append(out, c.Data.([]T)...)
	}
	return out
}
