package index

import (
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// Registry maps index name to its descriptor and live handle. Registering
// an existing name fails IndexAlreadyExistsError; lookup of an unknown
// name fails IndexNotFoundError. Dropping a table removes all of its
// indexes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	descriptor Descriptor
	index      Index
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Create registers a new index with the given shape and returns its live
// handle.
func (r *Registry) Create(name, table, column string, shape Shape, unique bool) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return nil, &dberrors.IndexAlreadyExistsError{Name: name}
	}

	var idx Index
	switch shape {
	case ShapeSkipList:
		idx = NewSkipList(unique)
	default:
		idx = NewBTree(unique)
	}

	r.entries[name] = &registryEntry{
		descriptor: Descriptor{Name: name, Table: table, Column: column, Shape: shape, Unique: unique},
		index:      idx,
	}
	return idx, nil
}

// Get returns the live handle for name.
func (r *Registry) Get(name string) (Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, &dberrors.IndexNotFoundError{Name: name}
	}
	return e.index, nil
}

// Descriptor returns the metadata record for name.
func (r *Registry) Descriptor(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, &dberrors.IndexNotFoundError{Name: name}
	}
	return e.descriptor, nil
}

// ForTable returns the descriptors of every index registered on table.
func (r *Registry) ForTable(table string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, e := range r.entries {
		if e.descriptor.Table == table {
			out = append(out, e.descriptor)
		}
	}
	return out
}

// ForColumn returns the descriptor of an index on (table, column), if any.
func (r *Registry) ForColumn(table, column string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.descriptor.Table == table && e.descriptor.Column == column {
			return e.descriptor, true
		}
	}
	return Descriptor{}, false
}

// Drop removes a single index by name.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return &dberrors.IndexNotFoundError{Name: name}
	}
	delete(r.entries, name)
	return nil
}

// DropTable removes every index registered against table, used by
// DROP TABLE to invalidate all of a table's indexes.
func (r *Registry) DropTable(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if e.descriptor.Table == table {
			delete(r.entries, name)
		}
	}
}

// All returns every registered index's descriptor, used when persisting
// the catalog image.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	return out
}

// UpdateStatistics refreshes a descriptor's estimated row and
// distinct-value counts.
func (r *Registry) UpdateStatistics(name string, estimatedRows, distinctCount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return &dberrors.IndexNotFoundError{Name: name}
	}
	e.descriptor.EstimatedRows = estimatedRows
	e.descriptor.DistinctCount = distinctCount
	return nil
}
