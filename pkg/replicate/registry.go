package replicate

import (
	"sync"

	"github.com/geeqodb/geeqodb/pkg/dberrors"
)

// Registry tracks node-id to role across a replica group, the
// bookkeeping layer views and clients use to find the current primary
// without asking every replica.
type Registry struct {
	mu      sync.RWMutex
	roles   map[string]Role
	primary string
}

// NewRegistry returns an empty replica registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]Role)}
}

// Register records nodeID's role. Registering a second Primary fails
// PrimaryAlreadyExists; removing a Primary (registering it as anything
// else, or dropping it) is allowed, modeling a crash.
func (reg *Registry) Register(nodeID string, role Role) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if role == RolePrimary && reg.primary != "" && reg.primary != nodeID {
		return &dberrors.PrimaryAlreadyExistsError{Current: reg.primary}
	}
	reg.roles[nodeID] = role
	if role == RolePrimary {
		reg.primary = nodeID
	} else if reg.primary == nodeID {
		reg.primary = ""
	}
	return nil
}

// Remove drops nodeID from the registry, modeling a crash. If nodeID
// was the primary, the registry reports no primary until a new one
// registers.
func (reg *Registry) Remove(nodeID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.roles, nodeID)
	if reg.primary == nodeID {
		reg.primary = ""
	}
}

// RoleOf returns nodeID's registered role.
func (reg *Registry) RoleOf(nodeID string) (Role, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	role, ok := reg.roles[nodeID]
	if !ok {
		return 0, &dberrors.ReplicaNotFoundError{NodeID: nodeID}
	}
	return role, nil
}

// Primary returns the current primary's node id, or "" if none is
// registered.
func (reg *Registry) Primary() string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.primary
}
