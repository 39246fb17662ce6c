// Package txn tracks transaction identity and isolation, generalizing
// the teacher's single write-transaction buffer into the spec's active
// set of concurrently open transactions across four isolation levels.
package txn

import (
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// IsolationLevel is a transaction's declared isolation.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

// Status is a transaction's lifecycle state. Active is the only state a
// transaction starts in; it moves to exactly one of Committed or
// Aborted, never back.
type Status int

const (
	Active Status = iota
	Committed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// writeKey is one entry of a transaction's write set, a (table, row key)
// pair, used for Serializable conflict checking at commit.
type writeKey struct {
	table string
	key   string
}

// Txn is one transaction's identity and accumulated write set.
type Txn struct {
	ID         uint64
	Isolation  IsolationLevel
	Status     Status
	SnapshotLSN uint64

	mu       sync.Mutex
	writeSet map[writeKey]struct{}

	// committedAtBegin is len(Manager.committed) when Begin ran; only
	// entries from that index on committed after this transaction began.
	committedAtBegin int
}

// RecordWrite adds (table, key) to the transaction's write set, used by
// Serializable transactions to detect write-write conflicts at commit.
func (t *Txn) RecordWrite(table, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeSet == nil {
		t.writeSet = make(map[writeKey]struct{})
	}
	t.writeSet[writeKey{table, key}] = struct{}{}
}

func (t *Txn) writes() map[writeKey]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[writeKey]struct{}, len(t.writeSet))
	for k := range t.writeSet {
		out[k] = struct{}{}
	}
	return out
}

// Manager is the active set of open transactions, keyed by id. A single
// RW lock guards the active set, matching the spec's concurrency model
// of one lock over catalog metadata, the index registry and the active
// set; per-index concurrency is each index's own responsibility.
type Manager struct {
	mu        sync.RWMutex
	nextID    uint64
	active    map[uint64]*Txn
	committed []*Txn // committed Serializable transactions, for conflict checks
}

// NewManager returns an empty transaction manager. Ids are assigned
// starting at 1; 0 is never a valid transaction id.
func NewManager() *Manager {
	return &Manager{nextID: 1, active: make(map[uint64]*Txn)}
}

// Begin starts a new transaction at isolation level iso, snapshotting
// commitLSN as its visibility point for RepeatableRead and Serializable.
// Returns a transaction with a monotonically increasing id >= 1.
func (m *Manager) Begin(iso IsolationLevel, commitLSN uint64) *Txn {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &Txn{
		ID:          m.nextID,
		Isolation:   iso,
		Status:      Active,
		SnapshotLSN: commitLSN,
	}
	t.committedAtBegin = len(m.committed)
	m.nextID++
	m.active[t.ID] = t
	return t
}

// Get returns the active transaction for id, or ReplicaNotFound-style
// TransactionNotActiveError if it is unknown or already finished.
func (m *Manager) Get(id uint64) (*Txn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.active[id]
	if !ok {
		return nil, &dberrors.TransactionNotActiveError{TxnID: id}
	}
	return t, nil
}

// Commit transitions a transaction from Active to Committed. Serializable
// transactions are checked against every other Serializable transaction
// that committed after this one began: if any committed write set
// intersects this transaction's write set, the commit is rejected with
// SerializationConflict and the transaction is left Active so the caller
// can retry or abort explicitly.
func (m *Manager) Commit(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.active[id]
	if !ok || t.Status != Active {
		return &dberrors.TransactionNotActiveError{TxnID: id}
	}

	if t.Isolation == Serializable {
		mine := t.writes()
		for _, other := range m.committed[t.committedAtBegin:] {
			for k := range other.writes() {
				if _, clash := mine[k]; clash {
					return &dberrors.SerializationConflictError{TxnID: id, Conflict: k.table + "/" + k.key}
				}
			}
		}
		m.committed = append(m.committed, t)
	}

	t.Status = Committed
	delete(m.active, id)
	return nil
}

// Abort transitions a transaction from Active to Aborted.
func (m *Manager) Abort(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.active[id]
	if !ok || t.Status != Active {
		return &dberrors.TransactionNotActiveError{TxnID: id}
	}
	t.Status = Aborted
	delete(m.active, id)
	return nil
}

// ActiveIDs returns the ids of every currently active transaction, used
// to compute the oldest open snapshot for garbage collection.
func (m *Manager) ActiveIDs() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint64, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}
