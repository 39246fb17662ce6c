// Package catalog owns the durable schema registry and row store: the
// table/column definitions, the physical row heaps, and the secondary
// indexes that stay in sync with them. Every mutation is WAL-logged
// before it is applied, and a reopen replays the log forward from the
// last checkpoint so the row store and the WAL never disagree about
// what happened.
package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
	"github.com/geeqodb/geeqodb/pkg/dblog"
	"github.com/geeqodb/geeqodb/pkg/heap"
	"github.com/geeqodb/geeqodb/pkg/index"
	"github.com/geeqodb/geeqodb/pkg/types"
	"github.com/geeqodb/geeqodb/pkg/wal"
)

var log = dblog.WithComponent("catalog")

// Catalog is the database's single owner of tables, row storage and
// secondary indexes.
type Catalog struct {
	dataDir string
	wal     *wal.WAL
	indexes *index.Registry

	mu     sync.RWMutex
	tables map[string]*table
	closed bool
}

// Open opens (or creates) a catalog rooted at dataDir, replaying the WAL
// forward from the last checkpoint. The database is not safe to serve
// traffic until Open returns.
func Open(dataDir string) (*Catalog, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	img, err := loadCatalogImage(dataDir)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		dataDir: dataDir,
		indexes: index.NewRegistry(),
		tables:  make(map[string]*table),
	}

	for _, pt := range img.Tables {
		if err := c.openTableHeap(pt.Name, types.Schema{Columns: pt.Columns}); err != nil {
			return nil, err
		}
	}
	for _, pi := range img.Indexes {
		if _, err := c.indexes.Create(pi.Name, pi.Table, pi.Column, pi.Shape, pi.Unique); err != nil {
			return nil, err
		}
	}

	w, err := wal.Open(filepath.Join(dataDir, "wal.log"), wal.DefaultOptions())
	if err != nil {
		return nil, err
	}
	c.wal = w

	if err := w.Recover(c.applyRecord); err != nil {
		return nil, err
	}

	if err := c.rebuildIndexes(); err != nil {
		return nil, err
	}

	pos := w.GetPosition()
	if err := w.Checkpoint(pos); err != nil {
		return nil, err
	}

	if err := c.persist(); err != nil {
		return nil, err
	}

	log.Info().Str("data_dir", dataDir).Int("tables", len(c.tables)).Msg("catalog opened")
	return c, nil
}

func (c *Catalog) openTableHeap(name string, schema types.Schema) error {
	h, err := heap.Open(filepath.Join(c.dataDir, "heap_"+name))
	if err != nil {
		return err
	}
	t := &table{name: name, schema: schema, heap: h, rowOffsets: make(map[types.RowID]int64)}

	it, err := h.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()
	for {
		_, hdr, offset, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		t.rowOffsets[types.RowID(hdr.RowID)] = offset
		if hdr.RowID+1 > t.nextRowID {
			t.nextRowID = hdr.RowID + 1
		}
	}
	if t.nextRowID == 0 {
		t.nextRowID = 1
	}

	c.tables[name] = t
	return nil
}

// applyRecord redoes one post-checkpoint WAL record against the row
// store during Recover. Index maintenance is deferred to rebuildIndexes,
// since replay can create/insert/delete in any order and recomputing
// indexes once from final state is simpler than threading old values
// through replay.
func (c *Catalog) applyRecord(rec wal.Record) error {
	switch rec.Kind {
	case wal.KindSchemaChange:
		op, name, schema, err := decodeSchemaChange(rec.Payload)
		if err != nil {
			return err
		}
		switch op {
		case schemaOpCreate:
			if _, exists := c.tables[name]; !exists {
				return c.openTableHeap(name, schema)
			}
		case schemaOpDrop:
			if t, exists := c.tables[name]; exists {
				t.heap.Close()
				delete(c.tables, name)
			}
		}
		return nil

	case wal.KindInsert, wal.KindUpdate:
		tableName, rowID, row, err := decodeMutation(rec.Payload)
		if err != nil {
			return err
		}
		t, ok := c.tables[tableName]
		if !ok {
			return &dberrors.TableNotFoundError{Name: tableName}
		}
		bytes, err := rowToBSON(t.schema, row)
		if err != nil {
			return err
		}
		prev, existed := t.rowOffsets[types.RowID(rowID)]
		if !existed {
			prev = -1
		}
		offset, err := t.heap.Write(bytes, rowID, uint64(rec.Pos), prev)
		if err != nil {
			return err
		}
		t.rowOffsets[types.RowID(rowID)] = offset
		if rowID+1 > t.nextRowID {
			t.nextRowID = rowID + 1
		}
		return nil

	case wal.KindDelete:
		tableName, rowID, err := decodeDelete(rec.Payload)
		if err != nil {
			return err
		}
		t, ok := c.tables[tableName]
		if !ok {
			return &dberrors.TableNotFoundError{Name: tableName}
		}
		if offset, ok := t.rowOffsets[types.RowID(rowID)]; ok {
			return t.heap.Delete(offset, uint64(rec.Pos))
		}
		return nil
	}
	return nil
}

// rebuildIndexes recomputes every registered index from each table's
// current row-offset map, the step that follows WAL replay at Open.
func (c *Catalog) rebuildIndexes() error {
	for name, t := range c.tables {
		descriptors := c.indexes.ForTable(name)
		if len(descriptors) == 0 {
			continue
		}
		for rowID, offset := range t.rowOffsets {
			doc, hdr, err := t.heap.Read(offset)
			if err != nil {
				return err
			}
			if !hdr.Valid {
				continue
			}
			row, err := bsonToRow(t.schema, doc)
			if err != nil {
				return err
			}
			for _, d := range descriptors {
				idx, err := c.indexes.Get(d.Name)
				if err != nil {
					return err
				}
				col := t.columnIndex(d.Column)
				if col < 0 {
					continue
				}
				if err := idx.Insert(row[col], rowID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Catalog) persist() error {
	img := catalogImage{}
	for _, t := range c.tables {
		img.Tables = append(img.Tables, persistedTable{Name: t.name, Columns: t.schema.Columns})
	}
	for _, d := range c.indexes.All() {
		img.Indexes = append(img.Indexes, persistedIndex{
			Name: d.Name, Table: d.Table, Column: d.Column, Shape: d.Shape, Unique: d.Unique,
		})
	}
	return saveCatalogImage(c.dataDir, img)
}

// CreateTable registers a new table with schema.
func (c *Catalog) CreateTable(name string, schema types.Schema) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &dberrors.DatabaseClosedError{}
	}
	if _, exists := c.tables[name]; exists {
		return &dberrors.TableAlreadyExistsError{Name: name}
	}

	if _, err := c.wal.Append(wal.KindSchemaChange, encodeSchemaChange(schemaOpCreate, name, schema)); err != nil {
		return err
	}
	if err := c.wal.Sync(); err != nil {
		return err
	}
	if err := c.openTableHeap(name, schema); err != nil {
		return err
	}
	log.Info().Str("table", name).Msg("table created")
	return c.persist()
}

// DropTable removes a table, its row heap and every index on it.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &dberrors.DatabaseClosedError{}
	}
	t, ok := c.tables[name]
	if !ok {
		return &dberrors.TableNotFoundError{Name: name}
	}

	if _, err := c.wal.Append(wal.KindSchemaChange, encodeSchemaChange(schemaOpDrop, name, t.schema)); err != nil {
		return err
	}
	if err := c.wal.Sync(); err != nil {
		return err
	}

	t.heap.Close()
	delete(c.tables, name)
	c.indexes.DropTable(name)
	return c.persist()
}

// Table returns the schema of an open table.
func (c *Catalog) Table(name string) (types.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return types.Schema{}, &dberrors.TableNotFoundError{Name: name}
	}
	return t.schema, nil
}

// Indexes exposes the index registry for the planner/executor.
func (c *Catalog) Indexes() *index.Registry { return c.indexes }

func (c *Catalog) validateRow(t *table, row types.Row) error {
	if len(row) != len(t.schema.Columns) {
		return &dberrors.ColumnCountMismatchError{Table: t.name, Expected: len(t.schema.Columns), Got: len(row)}
	}
	for i, col := range t.schema.Columns {
		got := types.TypeOf(row[i])
		if got != types.TypeNull && got != col.Type {
			return &dberrors.TypeMismatchError{Table: t.name, Column: col.Name, Want: col.Type.String(), Got: got.String()}
		}
	}
	return nil
}

// Insert appends a new row version and returns its row-id.
func (c *Catalog) Insert(tableName string, row types.Row) (types.RowID, error) {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return 0, &dberrors.DatabaseClosedError{}
	}
	if !ok {
		return 0, &dberrors.TableNotFoundError{Name: tableName}
	}
	if err := c.validateRow(t, row); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rowID := types.RowID(t.nextRowID)

	payload, err := encodeMutation(tableName, uint64(rowID), row)
	if err != nil {
		return 0, err
	}
	pos, err := c.wal.Append(wal.KindInsert, payload)
	if err != nil {
		return 0, err
	}

	doc, err := rowToBSON(t.schema, row)
	if err != nil {
		return 0, err
	}
	offset, err := t.heap.Write(doc, uint64(rowID), uint64(pos), -1)
	if err != nil {
		return 0, err
	}

	t.rowOffsets[rowID] = offset
	t.nextRowID++

	c.updateIndexesOnInsert(tableName, t, row, rowID)
	return rowID, nil
}

func (c *Catalog) updateIndexesOnInsert(tableName string, t *table, row types.Row, rowID types.RowID) {
	for _, d := range c.indexes.ForTable(tableName) {
		idx, err := c.indexes.Get(d.Name)
		if err != nil {
			continue
		}
		col := t.columnIndex(d.Column)
		if col < 0 {
			continue
		}
		idx.Insert(row[col], rowID)
	}
}

// Update replaces the row's current version.
func (c *Catalog) Update(tableName string, rowID types.RowID, newRow types.Row) error {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return &dberrors.DatabaseClosedError{}
	}
	if !ok {
		return &dberrors.TableNotFoundError{Name: tableName}
	}
	if err := c.validateRow(t, newRow); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prevOffset, ok := t.rowOffsets[rowID]
	if !ok {
		return fmt.Errorf("catalog: row %d not found in table %s", rowID, tableName)
	}
	oldDoc, _, err := t.heap.Read(prevOffset)
	if err != nil {
		return err
	}
	oldRow, err := bsonToRow(t.schema, oldDoc)
	if err != nil {
		return err
	}

	payload, err := encodeMutation(tableName, uint64(rowID), newRow)
	if err != nil {
		return err
	}
	pos, err := c.wal.Append(wal.KindUpdate, payload)
	if err != nil {
		return err
	}

	newDoc, err := rowToBSON(t.schema, newRow)
	if err != nil {
		return err
	}
	offset, err := t.heap.Write(newDoc, uint64(rowID), uint64(pos), prevOffset)
	if err != nil {
		return err
	}
	t.rowOffsets[rowID] = offset

	for _, d := range c.indexes.ForTable(tableName) {
		idx, err := c.indexes.Get(d.Name)
		if err != nil {
			continue
		}
		col := t.columnIndex(d.Column)
		if col < 0 {
			continue
		}
		idx.Remove(oldRow[col], rowID)
		idx.Insert(newRow[col], rowID)
	}
	return nil
}

// Delete marks the row's current version as deleted.
func (c *Catalog) Delete(tableName string, rowID types.RowID) error {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return &dberrors.DatabaseClosedError{}
	}
	if !ok {
		return &dberrors.TableNotFoundError{Name: tableName}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	offset, ok := t.rowOffsets[rowID]
	if !ok {
		return fmt.Errorf("catalog: row %d not found in table %s", rowID, tableName)
	}
	doc, _, err := t.heap.Read(offset)
	if err != nil {
		return err
	}
	row, err := bsonToRow(t.schema, doc)
	if err != nil {
		return err
	}

	payload := encodeDelete(tableName, uint64(rowID))
	pos, err := c.wal.Append(wal.KindDelete, payload)
	if err != nil {
		return err
	}
	if err := t.heap.Delete(offset, uint64(pos)); err != nil {
		return err
	}

	for _, d := range c.indexes.ForTable(tableName) {
		idx, err := c.indexes.Get(d.Name)
		if err != nil {
			continue
		}
		col := t.columnIndex(d.Column)
		if col < 0 {
			continue
		}
		idx.Remove(row[col], rowID)
	}
	return nil
}

// visibleVersion walks a row's version chain to find the one visible as
// of snapshotLSN: createLSN must be no later than the snapshot, and the
// version must either still be live or have been deleted after the
// snapshot was taken.
func (t *table) visibleVersion(offset int64, snapshotLSN uint64) (types.Row, bool, error) {
	for offset != -1 {
		doc, hdr, err := t.heap.Read(offset)
		if err != nil {
			return nil, false, err
		}
		if hdr.CreateLSN <= snapshotLSN && (hdr.Valid || hdr.DeleteLSN > snapshotLSN) {
			row, err := bsonToRow(t.schema, doc)
			return row, true, err
		}
		offset = hdr.PrevOffset
	}
	return nil, false, nil
}

// Scan returns every row in tableName visible as of snapshotLSN.
func (c *Catalog) Scan(tableName string, snapshotLSN uint64) ([]types.RowID, []types.Row, error) {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	c.mu.RUnlock()
	if !ok {
		return nil, nil, &dberrors.TableNotFoundError{Name: tableName}
	}

	t.mu.RLock()
	offsets := make(map[types.RowID]int64, len(t.rowOffsets))
	for k, v := range t.rowOffsets {
		offsets[k] = v
	}
	t.mu.RUnlock()

	var ids []types.RowID
	var rows []types.Row
	for rowID, offset := range offsets {
		row, visible, err := t.visibleVersion(offset, snapshotLSN)
		if err != nil {
			return nil, nil, err
		}
		if visible {
			ids = append(ids, rowID)
			rows = append(rows, row)
		}
	}
	return ids, rows, nil
}

// Lookup returns the rows matching key on indexName, visible as of
// snapshotLSN.
func (c *Catalog) Lookup(tableName, indexName string, key types.Comparable, snapshotLSN uint64) ([]types.Row, error) {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	c.mu.RUnlock()
	if !ok {
		return nil, &dberrors.TableNotFoundError{Name: tableName}
	}

	idx, err := c.indexes.Get(indexName)
	if err != nil {
		return nil, err
	}

	var rows []types.Row
	it := idx.Range(key, key)
	defer it.Close()
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		t.mu.RLock()
		offset, exists := t.rowOffsets[e.RowID]
		t.mu.RUnlock()
		if !exists {
			continue
		}
		row, visible, err := t.visibleVersion(offset, snapshotLSN)
		if err != nil {
			return nil, err
		}
		if visible {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Range returns rows whose index key falls in [lo, hi], visible as of
// snapshotLSN.
func (c *Catalog) Range(tableName, indexName string, lo, hi types.Comparable, snapshotLSN uint64) ([]types.Row, error) {
	c.mu.RLock()
	t, ok := c.tables[tableName]
	c.mu.RUnlock()
	if !ok {
		return nil, &dberrors.TableNotFoundError{Name: tableName}
	}
	idx, err := c.indexes.Get(indexName)
	if err != nil {
		return nil, err
	}

	var rows []types.Row
	it := idx.Range(lo, hi)
	defer it.Close()
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		t.mu.RLock()
		offset, exists := t.rowOffsets[e.RowID]
		t.mu.RUnlock()
		if !exists {
			continue
		}
		row, visible, err := t.visibleVersion(offset, snapshotLSN)
		if err != nil {
			return nil, err
		}
		if visible {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// CurrentPosition returns the WAL's current tail, used as the
// linearization point for a new transaction's snapshot LSN.
func (c *Catalog) CurrentPosition() uint64 {
	return uint64(c.wal.GetPosition())
}

// Checkpoint persists that every mutation up to the WAL's current tail
// is durable, letting future recovery skip straight past it.
func (c *Catalog) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos := c.wal.GetPosition()
	if err := c.wal.Checkpoint(pos); err != nil {
		return err
	}
	return c.persist()
}

// Close rewrites catalog.json (so indexes registered since the last
// rewrite survive a reopen), then closes every open table heap and the
// WAL.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.persist(); err != nil {
		firstErr = err
	}
	for _, t := range c.tables {
		if err := t.heap.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
