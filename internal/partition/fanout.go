package partition

import (
	"fmt"

	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/pkg/types"
)

// Group is one fan-out unit: the rows of a source partition sharing a
// single partition-column value tuple, with the partition columns dropped.
type Group struct {
	// Dir is the nested directory path for the tuple, relative to the
	// dataset root.
	Dir string

	// Values is the tuple in partition-column order.
	Values []PathValue

	// Table holds the group's rows without the partition columns.
	Table *types.Table
}

// Split fans a table out by the distinct value tuples of the partition
// columns. Groups are emitted in first-seen order so output is stable for
// a given input ordering.
func Split(t *types.Table, on []string, scheme Scheme) ([]Group, error) {
	cols := make([]*types.Column, len(on))
	for i, name := range on {
		c, ok := t.Column(name)
		if !ok {
			return nil, daskerrors.NewUnknownColumn(name)
		}
		cols[i] = c
	}

	order := make([]string, 0)
	rowsByKey := make(map[string][]int)
	valuesByKey := make(map[string][]PathValue)
	for r := 0; r < t.NumRows(); r++ {
		values := make([]PathValue, len(on))
		for i, c := range cols {
			if c.IsNull(r) {
				return nil, fmt.Errorf("partition: null value in partition column %q at row %d", on[i], r)
			}
			values[i] = PathValue{Column: on[i], Value: FormatValue(c.Value(r))}
		}
		key := BuildPath(scheme, values)
		if _, ok := rowsByKey[key]; !ok {
			order = append(order, key)
			valuesByKey[key] = values
		}
		rowsByKey[key] = append(rowsByKey[key], r)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		sub := t.Take(rowsByKey[key])
		for _, name := range on {
			sub = sub.DropColumn(name)
		}
		groups = append(groups, Group{Dir: key, Values: valuesByKey[key], Table: sub})
	}
	return groups, nil
}

// FormatValue renders a partition column value as its path representation.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
