package executor

import (
	"github.com/geeqodb/geeqodb/pkg/txn"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// Mutations return RowCount with no Columns, per spec 4.7.

// CreateTable executes CREATE TABLE, itself a WAL SchemaChange record
// inside the catalog.
func (e *Executor) CreateTable(name string, schema types.Schema) (*ResultSet, error) {
	if err := e.catalog.CreateTable(name, schema); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 0}, nil
}

// DropTable executes DROP TABLE, removing the table, its indexes and
// its row heap.
func (e *Executor) DropTable(name string) (*ResultSet, error) {
	if err := e.catalog.DropTable(name); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 0}, nil
}

// Insert executes INSERT, returning the affected row count (always 1).
func (e *Executor) Insert(table string, row types.Row) (*ResultSet, error) {
	if _, err := e.catalog.Insert(table, row); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 1}, nil
}

// Update executes UPDATE against one previously located row id.
func (e *Executor) Update(table string, rowID types.RowID, newRow types.Row) (*ResultSet, error) {
	if err := e.catalog.Update(table, rowID, newRow); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 1}, nil
}

// Delete executes DELETE against one previously located row id.
func (e *Executor) Delete(table string, rowID types.RowID) (*ResultSet, error) {
	if err := e.catalog.Delete(table, rowID); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 1}, nil
}

// Begin starts a new transaction via mgr, snapshotting the catalog's
// current WAL position as its visibility point.
func (e *Executor) Begin(mgr *txn.Manager, iso txn.IsolationLevel) *txn.Txn {
	return mgr.Begin(iso, e.catalog.CurrentPosition())
}

// Commit finishes a transaction via mgr.
func (e *Executor) Commit(mgr *txn.Manager, id uint64) (*ResultSet, error) {
	if err := mgr.Commit(id); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 0}, nil
}

// Abort finishes a transaction via mgr without applying its writes.
func (e *Executor) Abort(mgr *txn.Manager, id uint64) (*ResultSet, error) {
	if err := mgr.Abort(id); err != nil {
		return nil, err
	}
	return &ResultSet{RowCount: 0}, nil
}
