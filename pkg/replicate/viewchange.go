package replicate

import "github.com/geeqodb/geeqodb/pkg/dblog"

// BeginViewChange is called when a backup times out waiting on its
// primary: it moves to ViewChange, bumps the view, and broadcasts
// StartViewChange to every peer.
func (r *Replica) BeginViewChange(peers []string) error {
	r.mu.Lock()
	if err := r.transition(RoleViewChange); err != nil {
		r.mu.Unlock()
		return err
	}
	r.view++
	view := r.view
	r.mu.Unlock()

	dblog.WithReplica(r.nodeID).Warn().Uint64("view", view).Msg("beginning view change")
	for _, p := range peers {
		r.send(p, Message{Kind: MsgStartViewChange, View: view, From: r.nodeID})
	}
	return nil
}

// handleStartViewChange is every replica's reaction to a peer's
// proposed view bump: once f+1 matching StartViewChange messages are
// seen, the replica sends DoViewChange to the deterministic new
// primary (lowest-id live replica).
func (r *Replica) handleStartViewChange(msg Message) error {
	r.mu.Lock()
	if msg.View <= r.view {
		r.mu.Unlock()
		return nil
	}
	set, ok := r.startViewChangeVotes[msg.View]
	if !ok {
		set = make(map[string]bool)
		r.startViewChangeVotes[msg.View] = set
	}
	set[msg.From] = true
	if len(set) < r.quorumSize {
		r.mu.Unlock()
		return nil
	}
	r.view = msg.View
	log := append([]Entry(nil), r.log...)
	commit := r.commitPoint
	if err := r.transition(RoleViewChange); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	newPrimary := r.newPrimaryFunc(msg.View)
	r.send(newPrimary, Message{Kind: MsgDoViewChange, View: msg.View, Log: log, OpNumber: uint64(len(log)), CommitPoint: commit, From: r.nodeID})
	return nil
}

// handleDoViewChange is the proposed new primary's reaction: it
// collects DoViewChange messages, and once a quorum has arrived,
// installs the log with the highest (view, op-number), becomes
// Primary, and broadcasts StartView.
func (r *Replica) handleDoViewChange(msg Message) error {
	r.mu.Lock()
	votes, ok := r.doViewChangeVotes[msg.View]
	if !ok {
		votes = make(map[string]Message)
		r.doViewChangeVotes[msg.View] = votes
	}
	votes[msg.From] = msg
	votes[r.nodeID] = Message{View: r.view, Log: r.log, OpNumber: uint64(len(r.log)), CommitPoint: r.commitPoint, From: r.nodeID}
	if len(votes) < r.quorumSize {
		r.mu.Unlock()
		return nil
	}

	best := votes[r.nodeID]
	for _, v := range votes {
		if v.View > best.View || (v.View == best.View && v.OpNumber > best.OpNumber) {
			best = v
		}
	}

	r.view = msg.View
	r.log = append([]Entry(nil), best.Log...)
	r.commitPoint = best.CommitPoint
	if err := r.transition(RolePrimary); err != nil {
		r.mu.Unlock()
		return err
	}
	view := r.view
	log := append([]Entry(nil), r.log...)
	n := uint64(len(log))
	commit := r.commitPoint
	r.mu.Unlock()

	for peer := range votes {
		if peer == r.nodeID {
			continue
		}
		r.send(peer, Message{Kind: MsgStartView, View: view, Log: log, OpNumber: n, CommitPoint: commit, From: r.nodeID})
	}
	return nil
}

// handleStartView installs the new primary's view and log on every
// other backup; entries with op-number greater than the new
// commit-point are left to be re-proposed under the new view.
func (r *Replica) handleStartView(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = msg.View
	r.log = append([]Entry(nil), msg.Log...)
	r.commitPoint = msg.CommitPoint
	return r.transition(RoleBackup)
}
