// Package index implements the two ordered secondary-index shapes
// (B-tree and skip-list) behind a single shared contract, plus the
// registry that lets the planner choose between them by name.
package index

import "github.com/geeqodb/geeqodb/pkg/types"

// Shape names an index's underlying data structure.
type Shape int

const (
	ShapeBTree Shape = iota
	ShapeSkipList
)

func (s Shape) String() string {
	if s == ShapeSkipList {
		return "SkipList"
	}
	return "BTree"
}

// Entry is one (key, row-id) pair produced by a range iteration.
type Entry struct {
	Key   types.Comparable
	RowID types.RowID
}

// RangeIterator walks entries in ascending key order. Entries with equal
// keys are not ordered by row-id; their relative order is not defined.
type RangeIterator interface {
	Next() (Entry, bool)
	Close()
}

// Index is the contract shared by both BTree and SkipList. `create` from
// spec 4.4 is modeled as the constructors (NewBTree/NewSkipList) plus
// Registry.Create; every other operation is a method here.
type Index interface {
	// Insert adds (key, rowID). Non-unique indexes accumulate multiple
	// row-ids per key; unique indexes reject a second insert of the
	// same key with DuplicateKeyError.
	Insert(key types.Comparable, rowID types.RowID) error
	// Remove deletes the (key, rowID) pair. If rowID is the zero value,
	// all entries for key are removed. Reports whether anything was
	// removed.
	Remove(key types.Comparable, rowID types.RowID) bool
	// Get returns one row-id for key (useful for unique/primary
	// indexes); for non-unique indexes it returns the first match in
	// key order.
	Get(key types.Comparable) (types.RowID, bool)
	// Range iterates [lo, hi] inclusive; a nil bound is open-ended.
	Range(lo, hi types.Comparable) RangeIterator
	Count() int
	Clear()
	Unique() bool
}

// Descriptor is the registry's metadata record for one index.
type Descriptor struct {
	Name          string
	Table         string
	Column        string
	Shape         Shape
	Unique        bool
	EstimatedRows int64
	DistinctCount int64
}
