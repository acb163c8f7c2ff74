package types

import "fmt"

// Partitioned is an ordered sequence of disjoint table fragments. When the
// table is sorted by its index, Divisions delimits each partition's sort-key
// range: len(Divisions) == len(Partitions)+1, entry i is partition i's
// minimum and the final entry is the global maximum. Nil divisions mean the
// ordering is unknown.
type Partitioned struct {
	Partitions []*Table
	Divisions  []any
}

// NewPartitioned wraps table fragments into a partitioned table, validating
// the divisions invariant when divisions are supplied.
func NewPartitioned(partitions []*Table, divisions []any) (*Partitioned, error) {
	p := &Partitioned{Partitions: partitions, Divisions: divisions}
	if err := p.CheckDivisions(); err != nil {
		return nil, err
	}
	return p, nil
}

// NPartitions returns the partition count.
func (p *Partitioned) NPartitions() int { return len(p.Partitions) }

// NumRows returns the total row count across partitions.
func (p *Partitioned) NumRows() int {
	n := 0
	for _, t := range p.Partitions {
		n += t.NumRows()
	}
	return n
}

// KnownDivisions reports whether sort-key ranges are known.
func (p *Partitioned) KnownDivisions() bool { return len(p.Divisions) > 0 }

// Schema derives the schema from the first partition.
func (p *Partitioned) Schema() *Schema {
	if len(p.Partitions) == 0 {
		return &Schema{}
	}
	return p.Partitions[0].Schema()
}

// CheckDivisions validates that divisions, if present, have the right length
// and are non-decreasing.
func (p *Partitioned) CheckDivisions() error {
	if p.Divisions == nil {
		return nil
	}
	if len(p.Divisions) != len(p.Partitions)+1 {
		return fmt.Errorf("types: %d divisions for %d partitions", len(p.Divisions), len(p.Partitions))
	}
	for i := 1; i < len(p.Divisions); i++ {
		cmp, err := Compare(p.Divisions[i-1], p.Divisions[i])
		if err != nil {
			return fmt.Errorf("types: divisions not comparable: %w", err)
		}
		if cmp > 0 {
			return fmt.Errorf("types: divisions decrease at position %d", i)
		}
	}
	return nil
}

// ClearDivisions marks the partition ordering as unknown.
func (p *Partitioned) ClearDivisions() { p.Divisions = nil }

// Compute concatenates all partitions into a single table.
func (p *Partitioned) Compute() (*Table, error) {
	return Concat(p.Partitions)
}

// FromTable splits a table into npartitions roughly equal fragments,
// deriving divisions from the index column when the table is sorted by it.
func FromTable(t *Table, npartitions int) (*Partitioned, error) {
	if npartitions < 1 {
		return nil, fmt.Errorf("types: need at least one partition")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	n := t.NumRows()
	size := (n + npartitions - 1) / npartitions
	if size == 0 {
		size = 1
	}
	p := &Partitioned{}
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		p.Partitions = append(p.Partitions, t.Slice(lo, hi))
	}
	if len(p.Partitions) == 0 {
		// zero-row table keeps its schema as a single empty partition
		p.Partitions = append(p.Partitions, t.Slice(0, 0))
	}
	if t.Index != "" {
		p.Divisions = divisionsFromIndex(p.Partitions, t.Index)
	}
	return p, nil
}

// divisionsFromIndex derives divisions from per-partition index extremes.
// Returns nil unless the index is sorted within and across partitions.
func divisionsFromIndex(partitions []*Table, index string) []any {
	var divs []any
	var prev any
	for _, t := range partitions {
		col, ok := t.Column(index)
		if !ok || col.Len() == 0 {
			return nil
		}
		first := col.Value(0)
		last := col.Value(col.Len() - 1)
		for i := 1; i < col.Len(); i++ {
			if col.IsNull(i) || col.IsNull(i-1) {
				return nil
			}
			if cmp, err := Compare(col.Value(i-1), col.Value(i)); err != nil || cmp > 0 {
				return nil
			}
		}
		if prev != nil {
			if cmp, err := Compare(prev, first); err != nil || cmp > 0 {
				return nil
			}
		}
		divs = append(divs, first)
		prev = last
	}
	if prev == nil {
		return nil
	}
	divs = append(divs, prev)
	return divs
}
