package executor

import (
	"testing"

	"github.com/geeqodb/geeqodb/pkg/catalog"
	"github.com/geeqodb/geeqodb/pkg/index"
	"github.com/geeqodb/geeqodb/pkg/planner"
	"github.com/geeqodb/geeqodb/pkg/stats"
	"github.com/geeqodb/geeqodb/pkg/txn"
	"github.com/geeqodb/geeqodb/pkg/types"
)

func peopleSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger},
		{Name: "name", Type: types.TypeText},
		{Name: "age", Type: types.TypeInteger},
	}}
}

func openExecutor(t *testing.T) (*Executor, *catalog.Catalog) {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	return New(cat), cat
}

func TestInsertAndTableScan(t *testing.T) {
	ex, cat := openExecutor(t)

	if _, err := ex.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice"), types.IntKey(30)}); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("people", types.Row{types.IntKey(2), types.VarcharKey("bob"), types.IntKey(40)}); err != nil {
		t.Fatal(err)
	}

	statsCat := stats.NewCatalog()
	p := planner.New(cat, cat.Indexes(), statsCat)
	phys, err := p.Plan(planner.Scan("people"))
	if err != nil {
		t.Fatal(err)
	}

	rs, err := ex.Execute(phys, cat.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if rs.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", rs.RowCount)
	}
}

func TestIndexSeekExecutesThroughExecutor(t *testing.T) {
	ex, cat := openExecutor(t)

	if _, err := ex.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Indexes().Create("people_age_idx", "people", "age", index.ShapeBTree, false); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice"), types.IntKey(30)}); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("people", types.Row{types.IntKey(2), types.VarcharKey("bob"), types.IntKey(40)}); err != nil {
		t.Fatal(err)
	}

	statsCat := stats.NewCatalog()
	statsCat.AddTableStatistics("people", 2)
	statsCat.AddIndexStatistics("people_age_idx", 2, 2)
	p := planner.New(cat, cat.Indexes(), statsCat)
	phys, err := p.Plan(planner.Filter(planner.Scan("people"), planner.Equal("age", types.IntKey(40))))
	if err != nil {
		t.Fatal(err)
	}
	if phys.AccessMethod != planner.AccessIndexSeek {
		t.Fatalf("expected IndexSeek plan, got %s", phys.AccessMethod)
	}

	rs, err := ex.Execute(phys, cat.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if rs.RowCount != 1 || rs.Rows[0][1] != types.VarcharKey("bob") {
		t.Fatalf("expected bob, got %+v", rs.Rows)
	}
}

func TestHashJoinAcrossTwoTables(t *testing.T) {
	ex, cat := openExecutor(t)

	if _, err := ex.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	orderSchema := types.Schema{Columns: []types.Column{
		{Name: "order_id", Type: types.TypeInteger},
		{Name: "person_id", Type: types.TypeInteger},
	}}
	if _, err := ex.CreateTable("orders", orderSchema); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice"), types.IntKey(30)}); err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Insert("orders", types.Row{types.IntKey(100), types.IntKey(1)}); err != nil {
		t.Fatal(err)
	}

	statsCat := stats.NewCatalog()
	p := planner.New(cat, cat.Indexes(), statsCat)
	logical := planner.Join(planner.Scan("people"), planner.Scan("orders"),
		planner.JoinCondition{LeftColumn: "id", RightColumn: "person_id"})
	phys, err := p.Plan(logical)
	if err != nil {
		t.Fatal(err)
	}

	rs, err := ex.Execute(phys, cat.CurrentPosition())
	if err != nil {
		t.Fatal(err)
	}
	if rs.RowCount != 1 {
		t.Fatalf("expected 1 joined row, got %d: %+v", rs.RowCount, rs.Rows)
	}
}

func TestTransactionCommitAndAbort(t *testing.T) {
	ex, _ := openExecutor(t)
	mgr := txn.NewManager()

	if _, err := ex.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}

	tx := ex.Begin(mgr, txn.ReadCommitted)
	if _, err := ex.Commit(mgr, tx.ID); err != nil {
		t.Fatal(err)
	}

	tx2 := ex.Begin(mgr, txn.ReadCommitted)
	if _, err := ex.Abort(mgr, tx2.ID); err != nil {
		t.Fatal(err)
	}
}

func TestMutationsReturnRowCountWithNoColumns(t *testing.T) {
	ex, _ := openExecutor(t)
	if _, err := ex.CreateTable("people", peopleSchema()); err != nil {
		t.Fatal(err)
	}
	rs, err := ex.Insert("people", types.Row{types.IntKey(1), types.VarcharKey("alice"), types.IntKey(30)})
	if err != nil {
		t.Fatal(err)
	}
	if rs.RowCount != 1 || rs.Columns != nil {
		t.Fatalf("expected RowCount=1 and nil Columns, got %+v", rs)
	}
}
