package planner

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sheppard/dask/internal/bloom"
	"github.com/sheppard/dask/internal/codec"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/partition"
)

func stats(min, max any) codec.Stats {
	return codec.Stats{Min: min, Max: max}
}

func TestKeepByStats_Operators(t *testing.T) {
	s := stats(int64(10), int64(20))

	cases := []struct {
		op    string
		value any
		keep  bool
	}{
		{OpEQ, int64(15), true},
		{OpEQ, int64(10), true},
		{OpEQ, int64(9), false},
		{OpEQ, int64(21), false},
		{OpNE, int64(15), true},
		{OpLT, int64(10), false},
		{OpLT, int64(11), true},
		{OpLE, int64(10), true},
		{OpLE, int64(9), false},
		{OpGT, int64(20), false},
		{OpGT, int64(19), true},
		{OpGE, int64(20), true},
		{OpGE, int64(21), false},
		{OpIn, []any{int64(1), int64(2)}, false},
		{OpIn, []any{int64(1), int64(12)}, true},
	}
	for _, tc := range cases {
		got := keepByStats(s, Filter{Column: "x", Op: tc.op, Value: tc.value})
		if got != tc.keep {
			t.Errorf("op %s value %v: got keep=%v, want %v", tc.op, tc.value, got, tc.keep)
		}
	}
}

func TestKeepByStats_NotEqualAllEqualChunk(t *testing.T) {
	s := stats(int64(5), int64(5))
	if keepByStats(s, Filter{Column: "x", Op: OpNE, Value: int64(5)}) {
		t.Error("all-equal chunk should be pruned for !=")
	}
	// nulls never match the constant, so the chunk may still hold rows
	s.NullCount = 1
	if !keepByStats(s, Filter{Column: "x", Op: OpNE, Value: int64(5)}) {
		t.Error("chunk with nulls must be kept for !=")
	}
}

func TestKeepByStats_MissingStatsKeep(t *testing.T) {
	if !keepByStats(codec.Stats{}, Filter{Column: "x", Op: OpEQ, Value: int64(1)}) {
		t.Error("missing statistics must keep the row group")
	}
}

func TestKeepByStats_IncomparableKeep(t *testing.T) {
	s := stats(int64(10), int64(20))
	if !keepByStats(s, Filter{Column: "x", Op: OpEQ, Value: "ten"}) {
		t.Error("incomparable filter value must keep the row group")
	}
}

func TestFilter_Validate(t *testing.T) {
	if err := (Filter{Column: "x", Op: OpLT, Value: 1}).Validate(); err != nil {
		t.Errorf("valid filter rejected: %v", err)
	}
	if err := (Filter{Column: "x", Op: "~=", Value: 1}).Validate(); err == nil {
		t.Error("expected unknown operator to fail")
	}
	if err := (Filter{Column: "x", Op: OpIn, Value: 1}).Validate(); err == nil {
		t.Error("expected non-list in value to fail")
	}
	if err := (Filter{Column: "x", Op: OpIn, Value: []any{1, 2}}).Validate(); err != nil {
		t.Errorf("valid in filter rejected: %v", err)
	}
}

func TestMatchPartitionValue(t *testing.T) {
	cases := []struct {
		value string
		f     Filter
		keep  bool
	}{
		{"nyc", Filter{Op: OpEQ, Value: "nyc"}, true},
		{"nyc", Filter{Op: OpEQ, Value: "sf"}, false},
		{"nyc", Filter{Op: OpNE, Value: "sf"}, true},
		{"10", Filter{Op: OpLT, Value: int64(9)}, false},  // numeric, not lexical
		{"10", Filter{Op: OpGT, Value: int64(9)}, true},
		{"b", Filter{Op: OpGT, Value: "a"}, true},
		{"nyc", Filter{Op: OpIn, Value: []any{"sf", "nyc"}}, true},
		{"nyc", Filter{Op: OpIn, Value: []any{"sf", "la"}}, false},
	}
	for _, tc := range cases {
		if got := matchPartitionValue(tc.value, tc.f); got != tc.keep {
			t.Errorf("value %q op %s %v: got %v, want %v", tc.value, tc.f.Op, tc.f.Value, got, tc.keep)
		}
	}
}

func TestPruneRowGroup_Conjunction(t *testing.T) {
	chunks := map[string]file.ChunkMeta{
		"ts": {Column: "ts", Stats: stats(int64(10), int64(20))},
		"v":  {Column: "v", Stats: stats(1.0, 2.0)},
	}
	values := []partition.PathValue{{Column: "city", Value: "nyc"}}

	keep := pruneRowGroup(chunks, values, []Filter{
		{Column: "ts", Op: OpGE, Value: int64(15)},
		{Column: "city", Op: OpEQ, Value: "nyc"},
	})
	if !keep {
		t.Error("expected row group to survive satisfiable conjunction")
	}

	keep = pruneRowGroup(chunks, values, []Filter{
		{Column: "ts", Op: OpGE, Value: int64(15)},
		{Column: "city", Op: OpEQ, Value: "sf"},
	})
	if keep {
		t.Error("expected partition value filter to prune")
	}

	keep = pruneRowGroup(chunks, values, []Filter{
		{Column: "v", Op: OpGT, Value: 5.0},
	})
	if keep {
		t.Error("expected statistics filter to prune")
	}
}

func TestKeepByBloom(t *testing.T) {
	f := bloom.NewWithEstimates(10, 0.01)
	f.AddString("apple")
	f.AddString("zebra")
	serialized := f.MarshalBase64()

	if keepByBloom(serialized, Filter{Column: "x", Op: OpEQ, Value: "mango"}) {
		t.Error("absent value should prune")
	}
	if !keepByBloom(serialized, Filter{Column: "x", Op: OpEQ, Value: "apple"}) {
		t.Error("present value must keep")
	}
	if !keepByBloom("", Filter{Column: "x", Op: OpEQ, Value: "mango"}) {
		t.Error("missing filter must keep")
	}
	if !keepByBloom(serialized, Filter{Column: "x", Op: OpEQ, Value: int64(1)}) {
		t.Error("non-string operand must keep")
	}
	if keepByBloom(serialized, Filter{Column: "x", Op: OpIn, Value: []any{"mango", "kiwi"}}) {
		t.Error("all-absent in list should prune")
	}
	if !keepByBloom(serialized, Filter{Column: "x", Op: OpIn, Value: []any{"mango", "zebra"}}) {
		t.Error("one present member must keep")
	}
	if !keepByBloom(serialized, Filter{Column: "x", Op: OpNE, Value: "apple"}) {
		t.Error("non-equality operators never use the filter")
	}
}

func TestPruneRowGroup_Bloom(t *testing.T) {
	f := bloom.NewWithEstimates(10, 0.01)
	f.AddString("apple")
	f.AddString("zebra")
	chunks := map[string]file.ChunkMeta{
		// min/max straddle the probe value, only the membership filter
		// can prune
		"fruit": {Column: "fruit", Stats: stats("apple", "zebra"), Bloom: f.MarshalBase64()},
	}

	if pruneRowGroup(chunks, nil, []Filter{{Column: "fruit", Op: OpEQ, Value: "mango"}}) {
		t.Error("expected membership filter to prune")
	}
	if !pruneRowGroup(chunks, nil, []Filter{{Column: "fruit", Op: OpEQ, Value: "zebra"}}) {
		t.Error("expected present value to survive")
	}
}

// TestProperty_PruningNeverDropsMatches validates the conservation
// invariant: a row group whose values contain a match for the filter is
// never pruned by its own min/max statistics.
func TestProperty_PruningNeverDropsMatches(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ops := []string{OpEQ, OpNE, OpLT, OpLE, OpGT, OpGE}

	matches := func(v, target int64, op string) bool {
		switch op {
		case OpEQ:
			return v == target
		case OpNE:
			return v != target
		case OpLT:
			return v < target
		case OpLE:
			return v <= target
		case OpGT:
			return v > target
		case OpGE:
			return v >= target
		}
		return false
	}

	properties.Property("any matching value keeps the row group", prop.ForAll(
		func(values []int64, target int64, opIdx int) bool {
			if len(values) == 0 {
				return true
			}
			op := ops[opIdx%len(ops)]

			min, max := values[0], values[0]
			anyMatch := false
			for _, v := range values {
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
				if matches(v, target, op) {
					anyMatch = true
				}
			}
			kept := keepByStats(stats(min, max), Filter{Column: "x", Op: op, Value: target})
			// conservative: keeping a matchless group is fine, dropping a
			// group with matches is not
			if anyMatch && !kept {
				return false
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-100, 100)),
		gen.Int64Range(-100, 100),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
