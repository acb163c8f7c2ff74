package planner

import (
	"fmt"
	"strconv"

	"github.com/sheppard/dask/internal/bloom"
	"github.com/sheppard/dask/internal/codec"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
	"github.com/sheppard/dask/pkg/types"
)

// Filter is one conjunct of a read predicate. Filters prune whole row
// groups from the plan using footer statistics; they never filter
// individual rows, so a surviving row group may still contain rows that
// fail the predicate.
type Filter struct {
	Column string
	Op     string
	Value  any
}

// Filter operators. In takes a []any value.
const (
	OpEQ = "=="
	OpNE = "!="
	OpLT = "<"
	OpLE = "<="
	OpGT = ">"
	OpGE = ">="
	OpIn = "in"
)

// Validate checks the operator and the value shape.
func (f Filter) Validate() error {
	switch f.Op {
	case OpEQ, OpNE, OpLT, OpLE, OpGT, OpGE:
		return nil
	case OpIn:
		if _, ok := f.Value.([]any); !ok {
			return daskerrors.New(daskerrors.ErrCategoryPlan, daskerrors.CodeUnexpected,
				fmt.Sprintf("filter %q on %q needs a list value", f.Op, f.Column))
		}
		return nil
	}
	return daskerrors.New(daskerrors.ErrCategoryPlan, daskerrors.CodeUnexpected,
		fmt.Sprintf("unknown filter operator %q", f.Op))
}

// keepByStats reports whether a chunk's [min, max] statistics admit rows
// matching the filter. Pruning is conservative: missing or incomparable
// statistics keep the row group.
func keepByStats(stats codec.Stats, f Filter) bool {
	if stats.Min == nil || stats.Max == nil {
		return true
	}
	switch f.Op {
	case OpEQ:
		lo, err1 := types.Compare(stats.Min, f.Value)
		hi, err2 := types.Compare(stats.Max, f.Value)
		if err1 != nil || err2 != nil {
			return true
		}
		return lo <= 0 && hi >= 0
	case OpNE:
		lo, err1 := types.Compare(stats.Min, f.Value)
		hi, err2 := types.Compare(stats.Max, f.Value)
		if err1 != nil || err2 != nil {
			return true
		}
		// only an all-equal, null-free chunk can be dropped
		return lo != 0 || hi != 0 || stats.NullCount > 0
	case OpLT:
		cmp, err := types.Compare(stats.Min, f.Value)
		return err != nil || cmp < 0
	case OpLE:
		cmp, err := types.Compare(stats.Min, f.Value)
		return err != nil || cmp <= 0
	case OpGT:
		cmp, err := types.Compare(stats.Max, f.Value)
		return err != nil || cmp > 0
	case OpGE:
		cmp, err := types.Compare(stats.Max, f.Value)
		return err != nil || cmp >= 0
	case OpIn:
		members, ok := f.Value.([]any)
		if !ok {
			return true
		}
		for _, v := range members {
			if keepByStats(stats, Filter{Column: f.Column, Op: OpEQ, Value: v}) {
				return true
			}
		}
		return false
	}
	return true
}

// matchPartitionValue evaluates a filter against a constant partition
// value reconstructed from the directory path. Partition values are
// strings; ordering operators compare numerically when both sides parse
// as numbers and lexically otherwise.
func matchPartitionValue(value string, f Filter) bool {
	switch f.Op {
	case OpEQ:
		return value == partition.FormatValue(f.Value)
	case OpNE:
		return value != partition.FormatValue(f.Value)
	case OpLT:
		return comparePathValues(value, f.Value) < 0
	case OpLE:
		return comparePathValues(value, f.Value) <= 0
	case OpGT:
		return comparePathValues(value, f.Value) > 0
	case OpGE:
		return comparePathValues(value, f.Value) >= 0
	case OpIn:
		members, ok := f.Value.([]any)
		if !ok {
			return true
		}
		for _, v := range members {
			if value == partition.FormatValue(v) {
				return true
			}
		}
		return false
	}
	return true
}

func comparePathValues(value string, against any) int {
	other := partition.FormatValue(against)
	a, errA := strconv.ParseFloat(value, 64)
	b, errB := strconv.ParseFloat(other, 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	switch {
	case value < other:
		return -1
	case value > other:
		return 1
	}
	return 0
}

// keepByBloom consults a chunk's membership filter for equality
// predicates over string values. Like keepByStats it is conservative: a
// missing or unreadable filter, or a non-string operand, keeps the group.
func keepByBloom(serialized string, f Filter) bool {
	if serialized == "" {
		return true
	}
	switch f.Op {
	case OpEQ:
		v, ok := f.Value.(string)
		if !ok {
			return true
		}
		bf, err := bloom.UnmarshalBase64(serialized)
		if err != nil {
			return true
		}
		return bf.ContainsString(v)
	case OpIn:
		members, ok := f.Value.([]any)
		if !ok {
			return true
		}
		bf, err := bloom.UnmarshalBase64(serialized)
		if err != nil {
			return true
		}
		for _, m := range members {
			v, ok := m.(string)
			if !ok {
				return true
			}
			if bf.ContainsString(v) {
				return true
			}
		}
		return false
	}
	return true
}

// pruneRowGroup decides whether one row group survives the conjunction of
// filters, consulting partition path values for partition columns and
// chunk statistics plus membership filters for stored columns. Filters on
// columns absent from both keep the row group.
func pruneRowGroup(chunks map[string]file.ChunkMeta, values []partition.PathValue, filters []Filter) bool {
	for _, f := range filters {
		matched := false
		for _, v := range values {
			if v.Column == f.Column {
				matched = true
				if !matchPartitionValue(v.Value, f) {
					return false
				}
				break
			}
		}
		if matched {
			continue
		}
		if c, ok := chunks[f.Column]; ok {
			if !keepByStats(c.Stats, f) {
				return false
			}
			if !keepByBloom(c.Bloom, f) {
				return false
			}
		}
	}
	return true
}
