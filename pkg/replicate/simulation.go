package replicate

import "sort"

// Simulation is a deterministic message fabric: messages sent during
// one Tick are queued and delivered on the next Tick in the order they
// were enqueued; the seed does not affect that order. It is the
// single-threaded simulated scheduler the
// replicated log assumes for testing. A real network is out of scope;
// this exists only to drive Replica deterministically in tests.
type Simulation struct {
	seed     int64
	replicas map[string]*Replica
	inbox    []pendingMessage
	clock    uint64
}

type pendingMessage struct {
	target string
	msg    Message
	order  uint64
}

// NewSimulation builds a simulation that stores seed; delivery order is
// reproducible because it follows enqueue order alone. Registered
// replicas' send callbacks should call sim.Enqueue.
func NewSimulation(seed int64) *Simulation {
	return &Simulation{seed: seed, replicas: make(map[string]*Replica)}
}

// Register adds a replica to the simulation under nodeID.
func (s *Simulation) Register(nodeID string, r *Replica) {
	s.replicas[nodeID] = r
}

// Enqueue stages a message for delivery on the next Tick. The logical
// clock, not real time, orders concurrently enqueued messages.
func (s *Simulation) Enqueue(target string, msg Message) {
	s.clock++
	s.inbox = append(s.inbox, pendingMessage{target: target, msg: msg, order: s.clock})
}

// Tick delivers every currently queued message to its target replica,
// in logical-clock order, and returns how many were delivered. Handler
// execution may itself enqueue further messages (e.g. PrepareOK after
// Prepare), which are delivered on a subsequent Tick.
func (s *Simulation) Tick() (int, error) {
	batch := s.inbox
	s.inbox = nil
	sort.Slice(batch, func(i, j int) bool { return batch[i].order < batch[j].order })

	for _, pm := range batch {
		target, ok := s.replicas[pm.target]
		if !ok {
			continue
		}
		if err := target.Deliver(pm.msg); err != nil {
			return 0, err
		}
	}
	return len(batch), nil
}

// Run ticks until the inbox drains or maxTicks is reached, the usual
// way a test lets a round of Prepare/PrepareOK settle to a fixed
// point.
func (s *Simulation) Run(maxTicks int) error {
	for i := 0; i < maxTicks; i++ {
		n, err := s.Tick()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}
