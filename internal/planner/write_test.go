package planner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sheppard/dask/internal/dataset"
	daskerrors "github.com/sheppard/dask/internal/errors"
	"github.com/sheppard/dask/internal/file"
	"github.com/sheppard/dask/internal/storage"
	"github.com/sheppard/dask/pkg/types"
)

func newStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local store: %v", err)
	}
	return store
}

func samplePartitioned(t *testing.T) *types.Partitioned {
	t.Helper()
	tab := &types.Table{
		Index: "ts",
		Columns: []types.Column{
			types.NewFloat64Column("amount", []float64{1, 2, 3, 4}),
			types.NewInt64Column("ts", []int64{1, 2, 3, 4}),
			types.NewStringColumn("city", []string{"nyc", "sf", "nyc", "sf"}),
		},
	}
	pt, err := types.FromTable(tab, 2)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}
	return pt
}

// seedDataset commits a small flat dataset so append planning has
// something to validate against.
func seedDataset(t *testing.T, store storage.ObjectStore, root string, schema *types.Schema, ts []int64) {
	t.Helper()
	ctx := context.Background()
	var buf bytes.Buffer
	fw, err := file.NewWriter(&buf, schema, file.WriterOptions{Engine: "legacy", Compression: "none"})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	cols := make([]types.Column, 0, len(schema.Columns))
	for _, def := range schema.Columns {
		switch def.Type {
		case types.Int64:
			cols = append(cols, types.NewInt64Column(def.Name, ts))
		case types.Float64:
			cols = append(cols, types.NewFloat64Column(def.Name, make([]float64, len(ts))))
		case types.String:
			cols = append(cols, types.NewStringColumn(def.Name, make([]string, len(ts))))
		default:
			t.Fatalf("unsupported seed dtype %s", def.Type)
		}
	}
	if err := fw.WriteRowGroup(&types.Table{Index: schema.Index, Columns: cols}); err != nil {
		t.Fatalf("WriteRowGroup failed: %v", err)
	}
	footer, err := fw.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Put(ctx, root+"/part.0000.seed.dsk", buf.Bytes()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	m, err := dataset.Merge([]dataset.FileEntry{{Path: "part.0000.seed.dsk", Footer: footer}}, "", nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := dataset.Commit(ctx, store, root, m); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func diskSchemaForSample() *types.Schema {
	return &types.Schema{
		Index: "ts",
		Columns: []types.ColumnDef{
			{Name: "ts", Type: types.Int64},
			{Name: "amount", Type: types.Float64},
			{Name: "city", Type: types.String},
		},
	}
}

func TestPlanWrite_IndexFirst(t *testing.T) {
	plan, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "ds",
		WriteConfig{WriteIndex: true})
	if err != nil {
		t.Fatalf("PlanWrite failed: %v", err)
	}
	names := plan.Schema.Names()
	if names[0] != "ts" {
		t.Errorf("index not first: %v", names)
	}
	if plan.Schema.Index != "ts" {
		t.Errorf("schema index: got %q", plan.Schema.Index)
	}
	if len(plan.Tasks) != 2 {
		t.Fatalf("tasks: got %d, want 2", len(plan.Tasks))
	}
	for _, task := range plan.Tasks {
		if !strings.HasSuffix(task.Path, dataset.DataFileSuffix) {
			t.Errorf("task path %q missing data suffix", task.Path)
		}
		got := task.Fragment.Schema().Names()
		for i, name := range names {
			if got[i] != name {
				t.Fatalf("fragment order %v, want %v", got, names)
			}
		}
	}
	if plan.Tasks[0].Path == plan.Tasks[1].Path {
		t.Error("task paths must be unique")
	}
}

func TestPlanWrite_DestinationNotEmpty(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, "ds/part.0000.deadbeef"+dataset.DataFileSuffix, []byte("old")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, err := PlanWrite(ctx, store, samplePartitioned(t), "ds", WriteConfig{WriteIndex: true})
	if !daskerrors.IsDestinationNotEmpty(err) {
		t.Fatalf("expected destination-not-empty, got %v", err)
	}

	// sidecars and foreign files do not block a fresh write
	if err := store.Put(ctx, "other/_metadata", []byte("{}")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := PlanWrite(ctx, store, samplePartitioned(t), "other", WriteConfig{WriteIndex: true}); err != nil {
		t.Errorf("empty destination must plan: %v", err)
	}
}

func TestPlanWrite_NoIndexDropsColumn(t *testing.T) {
	plan, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "ds",
		WriteConfig{WriteIndex: false})
	if err != nil {
		t.Fatalf("PlanWrite failed: %v", err)
	}
	if plan.Schema.Index != "" {
		t.Errorf("expected no index, got %q", plan.Schema.Index)
	}
	if _, ok := plan.Schema.Lookup("ts"); ok {
		t.Error("expected index column to be dropped from the on-disk schema")
	}
}

func TestPlanWrite_PartitionOn(t *testing.T) {
	plan, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "ds",
		WriteConfig{WriteIndex: true, PartitionOn: []string{"city"}})
	if err != nil {
		t.Fatalf("PlanWrite failed: %v", err)
	}
	if plan.PartitionScheme != "hive" {
		t.Errorf("scheme: got %q, want hive", plan.PartitionScheme)
	}
	if _, ok := plan.Schema.Lookup("city"); ok {
		t.Error("partition column must leave the stored schema")
	}
	// each source partition has both cities
	if len(plan.Tasks) != 4 {
		t.Fatalf("tasks: got %d, want 4", len(plan.Tasks))
	}
	seen := map[string]bool{}
	for _, task := range plan.Tasks {
		dir := task.Path[:strings.Index(task.Path, "/")]
		seen[dir] = true
	}
	if !seen["city=nyc"] || !seen["city=sf"] {
		t.Errorf("directories: %v", seen)
	}
}

func TestPlanWrite_PartitionOnIndexRejected(t *testing.T) {
	_, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "ds",
		WriteConfig{WriteIndex: true, PartitionOn: []string{"ts"}})
	if err == nil {
		t.Error("expected partitioning on the index to fail")
	}
}

func TestPlanWrite_PartitionOnUnknownColumn(t *testing.T) {
	_, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "ds",
		WriteConfig{WriteIndex: true, PartitionOn: []string{"ghost"}})
	if !daskerrors.IsUnknownColumn(err) {
		t.Errorf("expected unknown column, got %v", err)
	}
}

func TestPlanWrite_Int96DegradesForColumnar(t *testing.T) {
	tab := &types.Table{Columns: []types.Column{
		types.NewTimestampColumn("when", types.UnitNS, []int64{1, 2}),
	}}
	pt, err := types.FromTable(tab, 1)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}

	plan, err := PlanWrite(context.Background(), newStore(t), pt, "ds",
		WriteConfig{Engine: "columnar", TimeUnit: types.UnitInt96})
	if err != nil {
		t.Fatalf("PlanWrite failed: %v", err)
	}
	def, _ := plan.Schema.Lookup("when")
	if def.TimeUnit != types.UnitNS {
		t.Errorf("time unit: got %s, want ns degrade", def.TimeUnit)
	}

	plan, err = PlanWrite(context.Background(), newStore(t), pt, "ds",
		WriteConfig{Engine: "legacy", TimeUnit: types.UnitInt96})
	if err != nil {
		t.Fatalf("PlanWrite failed: %v", err)
	}
	def, _ = plan.Schema.Lookup("when")
	if def.TimeUnit != types.UnitInt96 {
		t.Errorf("time unit: got %s, want int96", def.TimeUnit)
	}
}

func TestPlanWrite_AppendSchemaMismatch(t *testing.T) {
	store := newStore(t)
	seedDataset(t, store, "ds", diskSchemaForSample(), []int64{1, 2})

	// incoming data is missing the city column
	tab := &types.Table{
		Index: "ts",
		Columns: []types.Column{
			types.NewInt64Column("ts", []int64{10, 11}),
			types.NewFloat64Column("amount", []float64{0, 0}),
		},
	}
	pt, err := types.FromTable(tab, 1)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}
	_, err = PlanWrite(context.Background(), store, pt, "ds",
		WriteConfig{WriteIndex: true, Append: true})
	if !daskerrors.IsSchemaMismatch(err) {
		t.Errorf("expected schema mismatch, got %v", err)
	}
}

func TestPlanWrite_AppendDivisionOverlap(t *testing.T) {
	store := newStore(t)
	seedDataset(t, store, "ds", diskSchemaForSample(), []int64{1, 10})

	tab := &types.Table{
		Index: "ts",
		Columns: []types.Column{
			types.NewInt64Column("ts", []int64{5, 20}),
			types.NewFloat64Column("amount", []float64{0, 0}),
			types.NewStringColumn("city", []string{"a", "b"}),
		},
	}
	pt, err := types.FromTable(tab, 1)
	if err != nil {
		t.Fatalf("FromTable failed: %v", err)
	}
	_, err = PlanWrite(context.Background(), store, pt, "ds",
		WriteConfig{WriteIndex: true, Append: true})
	if !daskerrors.IsDivisionOverlap(err) {
		t.Errorf("expected division overlap, got %v", err)
	}

	// ignore_divisions accepts the same write
	plan, err := PlanWrite(context.Background(), store, pt, "ds",
		WriteConfig{WriteIndex: true, Append: true, IgnoreDivisions: true})
	if err != nil {
		t.Fatalf("expected overlap to be accepted: %v", err)
	}
	if !plan.Append || plan.Existing == nil {
		t.Error("append plan must carry the existing index")
	}
}

func TestPlanWrite_AppendToMissingDataset(t *testing.T) {
	_, err := PlanWrite(context.Background(), newStore(t), samplePartitioned(t), "nowhere",
		WriteConfig{WriteIndex: true, Append: true})
	if err == nil {
		t.Error("expected append to missing dataset to fail")
	}
}

func TestPlanWrite_EmptyInput(t *testing.T) {
	if _, err := PlanWrite(context.Background(), newStore(t), nil, "ds", WriteConfig{}); err == nil {
		t.Error("expected nil input to fail")
	}
}
