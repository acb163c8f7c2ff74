package types

import (
	"fmt"
	"sort"
)

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the primitive type of the column
	Type DType `json:"type"`

	// Nullable indicates whether the column can contain null values
	Nullable bool `json:"nullable"`

	// Categorical indicates the column is stored dictionary-encoded
	Categorical bool `json:"categorical,omitempty"`

	// TimeUnit is the storage precision for Timestamp columns
	TimeUnit TimeUnit `json:"time_unit,omitempty"`
}

// Schema defines the structure of a dataset's rows: an ordered column set,
// an optional designated index column and free-form key-value metadata.
type Schema struct {
	// Columns defines the columns in physical (on-disk) order
	Columns []ColumnDef `json:"columns"`

	// Index is the name of the sort-key column materialized on disk,
	// empty when the dataset was written without an index
	Index string `json:"index,omitempty"`

	// KeyValues carries dataset-level user metadata
	KeyValues map[string]string `json:"key_values,omitempty"`
}

// Lookup returns the definition for a named column.
func (s *Schema) Lookup(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// Names returns the column names in physical order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// ValueColumns returns the column names in physical order with the index
// column removed.
func (s *Schema) ValueColumns() []string {
	var names []string
	for _, c := range s.Columns {
		if c.Name == s.Index {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// Equal reports whether two schemas have identical column sets, order and
// dtypes. Key-value metadata is not compared.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) || s.Index != other.Index {
		return false
	}
	for i, c := range s.Columns {
		o := other.Columns[i]
		if c.Name != o.Name || c.Type != o.Type || c.Categorical != o.Categorical {
			return false
		}
	}
	return true
}

// SameColumnSet reports whether both schemas expose the same column names,
// ignoring order.
func (s *Schema) SameColumnSet(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	a := s.Names()
	b := other.Names()
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DTypeConflicts returns the names of shared columns whose dtypes differ
// between the two schemas.
func (s *Schema) DTypeConflicts(other *Schema) []string {
	var conflicts []string
	for _, c := range s.Columns {
		o, ok := other.Lookup(c.Name)
		if !ok {
			continue
		}
		if c.Type != o.Type || c.Categorical != o.Categorical {
			conflicts = append(conflicts, c.Name)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

// Validate checks structural invariants: non-empty unique names, known
// dtypes, and an index column (when set) present in the column list.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("types: schema column with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("types: duplicate column %q in schema", c.Name)
		}
		seen[c.Name] = true
		if !c.Type.Valid() {
			return fmt.Errorf("types: column %q has unknown dtype %q", c.Name, c.Type)
		}
		if c.Type == Timestamp && c.TimeUnit == "" {
			return fmt.Errorf("types: timestamp column %q missing time unit", c.Name)
		}
	}
	if s.Index != "" && !seen[s.Index] {
		return fmt.Errorf("types: index column %q not present in schema", s.Index)
	}
	return nil
}

// Project returns a schema restricted to the given columns, in the given
// order. Unknown names are reported via the second return value.
func (s *Schema) Project(columns []string) (*Schema, []string) {
	out := &Schema{KeyValues: s.KeyValues}
	var missing []string
	for _, name := range columns {
		def, ok := s.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out.Columns = append(out.Columns, def)
	}
	return out, missing
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := &Schema{Index: s.Index}
	out.Columns = append([]ColumnDef(nil), s.Columns...)
	if s.KeyValues != nil {
		out.KeyValues = make(map[string]string, len(s.KeyValues))
		for k, v := range s.KeyValues {
			out.KeyValues[k] = v
		}
	}
	return out
}
