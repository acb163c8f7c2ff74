package types

import "testing"

func testSchema() *Schema {
	return &Schema{
		Index: "ts",
		Columns: []ColumnDef{
			{Name: "ts", Type: Int64},
			{Name: "amount", Type: Float64},
			{Name: "city", Type: Categorical, Categorical: true},
		},
	}
}

func TestSchema_Lookup(t *testing.T) {
	s := testSchema()

	def, ok := s.Lookup("amount")
	if !ok {
		t.Fatal("expected to find column amount")
	}
	if def.Type != Float64 {
		t.Errorf("amount dtype: got %s, want %s", def.Type, Float64)
	}

	if _, ok := s.Lookup("missing"); ok {
		t.Error("expected lookup of missing column to fail")
	}
}

func TestSchema_SameColumnSet(t *testing.T) {
	s := testSchema()

	reordered := &Schema{Columns: []ColumnDef{
		{Name: "city", Type: Categorical, Categorical: true},
		{Name: "ts", Type: Int64},
		{Name: "amount", Type: Float64},
	}}
	if !s.SameColumnSet(reordered) {
		t.Error("column set should ignore order")
	}

	renamed := &Schema{Columns: []ColumnDef{
		{Name: "ts", Type: Int64},
		{Name: "amount", Type: Float64},
		{Name: "town", Type: Categorical, Categorical: true},
	}}
	if s.SameColumnSet(renamed) {
		t.Error("renamed column should break the column set match")
	}
}

func TestSchema_DTypeConflicts(t *testing.T) {
	s := testSchema()

	other := testSchema()
	other.Columns[1].Type = Int64 // amount
	conflicts := s.DTypeConflicts(other)
	if len(conflicts) != 1 || conflicts[0] != "amount" {
		t.Errorf("conflicts: got %v, want [amount]", conflicts)
	}

	// a materialized categorical conflicts with the encoded one
	other = testSchema()
	other.Columns[2] = ColumnDef{Name: "city", Type: String}
	conflicts = s.DTypeConflicts(other)
	if len(conflicts) != 1 || conflicts[0] != "city" {
		t.Errorf("conflicts: got %v, want [city]", conflicts)
	}
}

func TestSchema_Validate(t *testing.T) {
	s := testSchema()
	if err := s.Validate(); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}

	dup := testSchema()
	dup.Columns = append(dup.Columns, ColumnDef{Name: "ts", Type: Int64})
	if err := dup.Validate(); err == nil {
		t.Error("expected duplicate column to fail validation")
	}

	badIndex := testSchema()
	badIndex.Index = "nope"
	if err := badIndex.Validate(); err == nil {
		t.Error("expected missing index column to fail validation")
	}

	noUnit := &Schema{Columns: []ColumnDef{{Name: "when", Type: Timestamp}}}
	if err := noUnit.Validate(); err == nil {
		t.Error("expected timestamp without time unit to fail validation")
	}
}

func TestSchema_Project(t *testing.T) {
	s := testSchema()

	proj, missing := s.Project([]string{"city", "ts"})
	if len(missing) != 0 {
		t.Fatalf("unexpected missing columns: %v", missing)
	}
	if got := proj.Names(); len(got) != 2 || got[0] != "city" || got[1] != "ts" {
		t.Errorf("projection order: got %v, want [city ts]", got)
	}

	_, missing = s.Project([]string{"ts", "ghost"})
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Errorf("missing: got %v, want [ghost]", missing)
	}
}

func TestSchema_ValueColumns(t *testing.T) {
	s := testSchema()
	got := s.ValueColumns()
	if len(got) != 2 || got[0] != "amount" || got[1] != "city" {
		t.Errorf("value columns: got %v, want [amount city]", got)
	}
}
