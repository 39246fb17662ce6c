package planner

import (
	"testing"

	"github.com/geeqodb/geeqodb/pkg/index"
	"github.com/geeqodb/geeqodb/pkg/stats"
	"github.com/geeqodb/geeqodb/pkg/types"
)

type fakeSchema map[string]types.Schema

func (f fakeSchema) Table(name string) (types.Schema, error) {
	s, ok := f[name]
	if !ok {
		return types.Schema{}, &notFoundErr{name}
	}
	return s, nil
}

type notFoundErr struct{ name string }

func (e *notFoundErr) Error() string { return "table not found: " + e.name }

func peopleSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger},
		{Name: "name", Type: types.TypeText},
		{Name: "age", Type: types.TypeInteger},
	}}
}

func TestTableScanWhenNoIndexAvailable(t *testing.T) {
	schemas := fakeSchema{"people": peopleSchema()}
	statsCat := stats.NewCatalog()
	statsCat.AddTableStatistics("people", 1000)
	p := New(schemas, index.NewRegistry(), statsCat)

	phys, err := p.Plan(planFilterScan("people", Equal("age", types.IntKey(30))))
	if err != nil {
		t.Fatal(err)
	}
	if phys.AccessMethod != AccessTableScan {
		t.Fatalf("expected TableScan without an index, got %s", phys.AccessMethod)
	}
}

func TestIndexSeekChosenOverTableScanForEquality(t *testing.T) {
	schemas := fakeSchema{"people": peopleSchema()}
	reg := index.NewRegistry()
	if _, err := reg.Create("people_age_idx", "people", "age", index.ShapeBTree, false); err != nil {
		t.Fatal(err)
	}
	statsCat := stats.NewCatalog()
	statsCat.AddTableStatistics("people", 100000)
	statsCat.AddIndexStatistics("people_age_idx", 100000, 50)

	p := New(schemas, reg, statsCat)
	phys, err := p.Plan(planFilterScan("people", Equal("age", types.IntKey(30))))
	if err != nil {
		t.Fatal(err)
	}
	if phys.AccessMethod != AccessIndexSeek {
		t.Fatalf("expected IndexSeek, got %s", phys.AccessMethod)
	}
	if phys.IndexInfo.Name != "people_age_idx" {
		t.Fatalf("expected people_age_idx, got %s", phys.IndexInfo.Name)
	}
}

func TestColumnNotFoundIsReported(t *testing.T) {
	schemas := fakeSchema{"people": peopleSchema()}
	p := New(schemas, index.NewRegistry(), stats.NewCatalog())

	_, err := p.Plan(planFilterScan("people", Equal("nonexistent", types.IntKey(1))))
	if err == nil {
		t.Fatal("expected ColumnNotFoundError")
	}
}

func TestTableNotFoundIsReported(t *testing.T) {
	schemas := fakeSchema{}
	p := New(schemas, index.NewRegistry(), stats.NewCatalog())

	_, err := p.Plan(Scan("ghost"))
	if err == nil {
		t.Fatal("expected table-not-found error")
	}
}

func TestHashJoinBuildsOnSmallerInput(t *testing.T) {
	schemas := fakeSchema{
		"people": peopleSchema(),
		"orders": {Columns: []types.Column{{Name: "person_id", Type: types.TypeInteger}}},
	}
	statsCat := stats.NewCatalog()
	statsCat.AddTableStatistics("people", 10)
	statsCat.AddTableStatistics("orders", 100000)

	p := New(schemas, index.NewRegistry(), statsCat)
	logical := Join(Scan("people"), Scan("orders"), JoinCondition{LeftColumn: "id", RightColumn: "person_id"})
	phys, err := p.Plan(logical)
	if err != nil {
		t.Fatal(err)
	}
	if phys.AccessMethod != AccessHashJoin {
		t.Fatalf("expected HashJoin, got %s", phys.AccessMethod)
	}
	if phys.Children[0].EstimatedRows > phys.Children[1].EstimatedRows {
		t.Fatal("expected smaller input first (build side)")
	}
}

func TestAcceleratorHintAppliesAboveThreshold(t *testing.T) {
	schemas := fakeSchema{"people": peopleSchema()}
	statsCat := stats.NewCatalog()
	statsCat.AddTableStatistics("people", 2_000_000)

	p := New(schemas, index.NewRegistry(), statsCat)
	phys, err := p.Plan(Scan("people"))
	if err != nil {
		t.Fatal(err)
	}
	if !phys.UseAccelerator || phys.ParallelDegree <= 1 {
		t.Fatalf("expected accelerator hint above threshold, got %+v", phys)
	}
}

func planFilterScan(table string, preds ...Predicate) *LogicalNode {
	return Filter(Scan(table), preds...)
}
