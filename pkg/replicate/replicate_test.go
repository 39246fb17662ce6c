package replicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// threeNodeGroup wires up a 3-replica (f=1, quorum=2) simulation with
// n1 as the initial primary, the canonical VR setup spec scenario S5
// exercises.
func threeNodeGroup(t *testing.T) (*Simulation, map[string]*Replica) {
	t.Helper()
	sim := NewSimulation(1)
	newPrimary := func(uint64) string { return "n1" }

	n1 := NewReplica("n1", 2, RolePrimary, sim.Enqueue, newPrimary)
	n2 := NewReplica("n2", 2, RoleBackup, sim.Enqueue, newPrimary)
	n3 := NewReplica("n3", 2, RoleBackup, sim.Enqueue, newPrimary)

	sim.Register("n1", n1)
	sim.Register("n2", n2)
	sim.Register("n3", n3)

	return sim, map[string]*Replica{"n1": n1, "n2": n2, "n3": n3}
}

func TestAppendReachesCommitPointAfterQuorumAck(t *testing.T) {
	sim, nodes := threeNodeGroup(t)
	n1 := nodes["n1"]

	_, err := n1.Append([]byte("op-1"), []string{"n2", "n3"})
	require.NoError(t, err)

	require.NoError(t, sim.Run(10))

	require.Equal(t, uint64(1), n1.CommitPoint())
	require.Equal(t, uint64(1), nodes["n2"].CommitPoint())
}

func TestAppendOnBackupFailsNotPrimary(t *testing.T) {
	_, nodes := threeNodeGroup(t)
	_, err := nodes["n2"].Append([]byte("op"), nil)
	require.Error(t, err)
}

func TestMultipleAppendsAdvanceCommitPointMonotonically(t *testing.T) {
	sim, nodes := threeNodeGroup(t)
	n1 := nodes["n1"]

	for _, op := range []string{"op-1", "op-2", "op-3"} {
		_, err := n1.Append([]byte(op), []string{"n2", "n3"})
		require.NoError(t, err)
		require.NoError(t, sim.Run(10))
	}

	require.Equal(t, uint64(3), n1.CommitPoint())
	require.Equal(t, uint64(3), nodes["n3"].CommitPoint())
}

func TestViewChangeElectsLowestIDReplicaAsNewPrimary(t *testing.T) {
	sim, nodes := threeNodeGroup(t)
	n1, n2, n3 := nodes["n1"], nodes["n2"], nodes["n3"]

	_, err := n1.Append([]byte("op-1"), []string{"n2", "n3"})
	require.NoError(t, err)
	require.NoError(t, sim.Run(10))
	require.Equal(t, uint64(1), n1.CommitPoint())

	// n2 times out waiting on the (now unresponsive) primary and
	// starts a view change; with quorum 2, n2 and n3's votes are
	// enough to elect n1 (the deterministic lowest-id replica) in the
	// new view.
	require.NoError(t, n2.BeginViewChange([]string{"n1", "n3"}))
	require.NoError(t, sim.Run(10))

	require.Equal(t, RolePrimary, n1.Role())
	require.Equal(t, uint64(2), n1.View())
}

func TestInvalidStateTransitionIsRejected(t *testing.T) {
	_, nodes := threeNodeGroup(t)
	n2 := nodes["n2"]
	// A Backup may move to ViewChange or Recovering, never straight to
	// Primary.
	err := n2.transition(RolePrimary)
	require.Error(t, err)
}

func TestRegistryRejectsSecondPrimary(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("n1", RolePrimary))
	err := reg.Register("n2", RolePrimary)
	require.Error(t, err)
	require.Equal(t, "n1", reg.Primary())
}

func TestRegistryAllowsRemovingPrimary(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("n1", RolePrimary))
	reg.Remove("n1")
	require.Equal(t, "", reg.Primary())

	require.NoError(t, reg.Register("n2", RolePrimary))
	require.Equal(t, "n2", reg.Primary())
}

func TestRegistryReportsReplicaNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RoleOf("ghost")
	require.Error(t, err)
}
