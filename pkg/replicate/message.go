package replicate

import "github.com/geeqodb/geeqodb/pkg/dberrors"

// MessageKind distinguishes the VR protocol messages a replica can
// send or receive.
type MessageKind int

const (
	MsgPrepare MessageKind = iota
	MsgPrepareOK
	MsgStateRequest
	MsgStartViewChange
	MsgDoViewChange
	MsgStartView
)

// Message is the wire shape for every VR protocol exchange; Simulation
// delivers these between replicas.
type Message struct {
	Kind        MessageKind
	View        uint64
	OpNumber    uint64
	Entry       Entry
	Log         []Entry
	CommitPoint uint64
	From        string
}

// Deliver dispatches an inbound message to the right handler, the
// single entry point Simulation calls on message delivery.
func (r *Replica) Deliver(msg Message) error {
	switch msg.Kind {
	case MsgPrepare:
		return r.handlePrepare(msg)
	case MsgPrepareOK:
		return r.handlePrepareOK(msg)
	case MsgStateRequest:
		return r.handleStateRequest(msg)
	case MsgStartViewChange:
		return r.handleStartViewChange(msg)
	case MsgDoViewChange:
		return r.handleDoViewChange(msg)
	case MsgStartView:
		return r.handleStartView(msg)
	}
	return nil
}

// handlePrepare is the backup's reaction to a primary's Prepare: accept
// only an in-view, in-order entry, persist it, and reply PrepareOK. A
// gap triggers a StateRequest instead of silently dropping the
// message.
func (r *Replica) handlePrepare(msg Message) error {
	r.mu.Lock()
	if msg.View != r.view {
		r.mu.Unlock()
		return nil
	}
	localNext := r.opNumber() + 1
	if msg.OpNumber > localNext {
		r.mu.Unlock()
		r.send(msg.From, Message{Kind: MsgStateRequest, View: r.view, OpNumber: localNext, From: r.nodeID})
		return nil
	}
	if msg.OpNumber < localNext {
		// Already have this entry; re-ack so a lost PrepareOK doesn't
		// stall the primary's quorum.
		r.mu.Unlock()
		r.send(msg.From, Message{Kind: MsgPrepareOK, View: r.view, OpNumber: msg.OpNumber, From: r.nodeID})
		return nil
	}
	r.log = append(r.log, msg.Entry)
	if msg.CommitPoint > r.commitPoint {
		r.commitPoint = msg.CommitPoint
	}
	r.mu.Unlock()

	r.send(msg.From, Message{Kind: MsgPrepareOK, View: msg.View, OpNumber: msg.OpNumber, From: r.nodeID})
	return nil
}

// handlePrepareOK is the primary's reaction to a backup's
// acknowledgement: record it and advance the commit-point once a
// quorum is reached.
func (r *Replica) handlePrepareOK(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.role != RolePrimary || msg.View != r.view {
		return nil
	}
	r.ackLocked(msg.OpNumber, msg.From)
	return nil
}

// handleStateRequest lets a primary answer a backup's gap report by
// resending the missing entry.
func (r *Replica) handleStateRequest(msg Message) error {
	r.mu.Lock()
	if r.role != RolePrimary || int(msg.OpNumber) > len(r.log) {
		r.mu.Unlock()
		return nil
	}
	entry := r.log[msg.OpNumber-1]
	view := r.view
	commit := r.commitPoint
	r.mu.Unlock()
	r.send(msg.From, Message{Kind: MsgPrepare, View: view, OpNumber: msg.OpNumber, Entry: entry, CommitPoint: commit, From: r.nodeID})
	return nil
}

// AllowedTransition reports whether moving from one role to another is
// part of the permitted VR state machine.
func AllowedTransition(from, to Role) bool {
	switch from {
	case RoleBackup:
		return to == RoleViewChange || to == RoleRecovering
	case RoleViewChange:
		return to == RolePrimary || to == RoleBackup
	case RolePrimary:
		return to == RoleViewChange || to == RoleRecovering
	case RoleRecovering:
		return to == RoleBackup
	}
	return false
}

func (r *Replica) transition(to Role) error {
	if !AllowedTransition(r.role, to) {
		return &dberrors.InvalidStateTransitionError{From: r.role.String(), To: to.String()}
	}
	r.role = to
	return nil
}
