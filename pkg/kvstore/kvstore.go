// Package kvstore adapts a pebble LSM-tree as the engine's low-level
// key-value backend: a disk-resident sorted map used wherever a
// component needs raw put/get/delete/iterate without the row-heap and
// WAL machinery in pkg/catalog. It is the storage substrate spec
// section 4.1's KV adapter describes.
package kvstore

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// Store wraps a pebble database, serializing close against in-flight
// operations the same way pkg/wal guards its file handle.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
}

// Open opens (or creates) a pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying pebble database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put writes key/value durably; the caller controls durability via
// sync, matching pebble's own WriteOptions split.
func (s *Store) Put(key, value []byte, sync bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &dberrors.DatabaseClosedError{}
	}
	return s.db.Set(key, value, writeOpts(sync))
}

// Get returns the value stored at key. The returned bool is false when
// the key is absent.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, &dberrors.DatabaseClosedError{}
	}
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), value...)
	closer.Close()
	return out, true, nil
}

// Delete removes key, a no-op if it is already absent.
func (s *Store) Delete(key []byte, sync bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &dberrors.DatabaseClosedError{}
	}
	return s.db.Delete(key, writeOpts(sync))
}

// Entry is one key/value pair yielded by Iterate.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterate calls fn for every key in [lo, hi) in ascending order,
// stopping early if fn returns false.
func (s *Store) Iterate(lo, hi []byte, fn func(Entry) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &dberrors.DatabaseClosedError{}
	}
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		entry := Entry{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		}
		if !fn(entry) {
			break
		}
	}
	return it.Error()
}

// Batch accumulates a set of puts and deletes for atomic commit.
type Batch struct {
	store *Store
	b     *pebble.Batch
}

// NewBatch opens a batch against the store. Writes staged on it are
// invisible until Commit.
func (s *Store) NewBatch() (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &dberrors.DatabaseClosedError{}
	}
	return &Batch{store: s, b: s.db.NewBatch()}, nil
}

// Put stages a write in the batch.
func (b *Batch) Put(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

// Delete stages a deletion in the batch.
func (b *Batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

// Commit applies every staged write atomically.
func (b *Batch) Commit(sync bool) error {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return &dberrors.DatabaseClosedError{}
	}
	return b.b.Commit(writeOpts(sync))
}

func writeOpts(sync bool) *pebble.WriteOptions {
	if sync {
		return pebble.Sync
	}
	return pebble.NoSync
}
