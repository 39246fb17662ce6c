// Package replicate implements a Viewstamped-Replication-style
// replicated log: a primary/backup state machine with quorum-gated
// commit and deterministic view changes. It depends on nothing but a
// logical clock and a message send/deliver fabric, so it can be driven
// both by a real network and by the deterministic Simulation in this
// package's tests.
package replicate

import (
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// Role is a replica's current position in the VR state machine.
type Role int

const (
	RoleBackup Role = iota
	RolePrimary
	RoleViewChange
	RoleRecovering
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "Primary"
	case RoleViewChange:
		return "ViewChange"
	case RoleRecovering:
		return "Recovering"
	default:
		return "Backup"
	}
}

// Entry is one position in the replicated log.
type Entry struct {
	View     uint64
	OpNumber uint64
	Payload  []byte
}

// Replica holds one node's VR state: its view, its log and the
// commit-point up to which that log is durable on a quorum.
type Replica struct {
	mu sync.Mutex

	nodeID      string
	quorumSize  int // f+1 out of 2f+1
	view        uint64
	role        Role
	log         []Entry
	commitPoint uint64

	acks map[uint64]map[string]bool // opNumber -> set of acking node ids

	startViewChangeVotes map[uint64]map[string]bool  // view -> set of voting node ids
	doViewChangeVotes    map[uint64]map[string]Message // view -> node id -> DoViewChange message

	// newPrimaryFunc picks the deterministic new primary for a proposed
	// view: the lowest-id live replica, per spec.
	newPrimaryFunc func(view uint64) string

	send func(target string, msg Message)
}

// NewReplica constructs a replica. quorumSize is f+1 for a 2f+1-replica
// group, the number of distinct acknowledgements (including the
// primary itself) needed to advance the commit-point. newPrimary picks
// the deterministic new primary for a proposed view.
func NewReplica(nodeID string, quorumSize int, role Role, send func(string, Message), newPrimary func(uint64) string) *Replica {
	return &Replica{
		nodeID:               nodeID,
		quorumSize:           quorumSize,
		role:                 role,
		acks:                 make(map[uint64]map[string]bool),
		startViewChangeVotes: make(map[uint64]map[string]bool),
		doViewChangeVotes:    make(map[uint64]map[string]Message),
		newPrimaryFunc:       newPrimary,
		send:                 send,
	}
}

func (r *Replica) View() uint64        { r.mu.Lock(); defer r.mu.Unlock(); return r.view }
func (r *Replica) Role() Role          { r.mu.Lock(); defer r.mu.Unlock(); return r.role }
func (r *Replica) CommitPoint() uint64 { r.mu.Lock(); defer r.mu.Unlock(); return r.commitPoint }

func (r *Replica) opNumber() uint64 {
	return uint64(len(r.log))
}

// Log returns a copy of the replica's current log, for test assertions
// and for DoViewChange's highest-(v,n) comparison.
func (r *Replica) Log() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.log))
	copy(out, r.log)
	return out
}

// Append is the client entry point on the primary: it assigns the next
// op-number, persists the entry locally, and broadcasts Prepare to
// every backup named in peers.
func (r *Replica) Append(payload []byte, peers []string) (uint64, error) {
	r.mu.Lock()
	if r.role != RolePrimary {
		primary := ""
		r.mu.Unlock()
		return 0, &dberrors.NotPrimaryError{NodeID: r.nodeID, Primary: primary}
	}

	n := r.opNumber() + 1
	entry := Entry{View: r.view, OpNumber: n, Payload: payload}
	r.log = append(r.log, entry)
	r.ackLocked(n, r.nodeID)
	view := r.view
	commit := r.commitPoint
	r.mu.Unlock()

	for _, p := range peers {
		r.send(p, Message{Kind: MsgPrepare, View: view, OpNumber: n, Entry: entry, CommitPoint: commit, From: r.nodeID})
	}
	return n, nil
}

// ackLocked records that nodeID has acknowledged opNumber n and, if a
// quorum has now been reached, advances the commit-point. Must be
// called with r.mu held.
func (r *Replica) ackLocked(n uint64, nodeID string) {
	set, ok := r.acks[n]
	if !ok {
		set = make(map[string]bool)
		r.acks[n] = set
	}
	set[nodeID] = true
	if len(set) >= r.quorumSize && n > r.commitPoint {
		r.commitPoint = n
	}
}
