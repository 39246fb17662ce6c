package catalog

import (
	"sync"

	"github.com/geeqodb/geeqodb/pkg/heap"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// table is one open table: its schema, its physical row heap, and the
// in-memory row-id-to-offset map that lets readers find the latest
// version of a row without scanning the whole heap.
type table struct {
	name   string
	schema types.Schema
	heap   *heap.RowHeap

	mu         sync.RWMutex
	rowOffsets map[types.RowID]int64
	nextRowID  uint64
}

func (t *table) columnIndex(name string) int {
	return t.schema.IndexOf(name)
}
