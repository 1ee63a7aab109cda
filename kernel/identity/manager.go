// Package identity implements the Entity registry: registration, revocation
// and lookup. The error style (sentinel errors wrapped with context) and
// the defensive-copy-on-read discipline follow the teacher's alias registry
// in core/identity/alias.go.
package identity

import (
	"errors"
	"fmt"
	"sync"

	"governancekernel/kernel/ontology"
)

var (
	// ErrDuplicateEntity is returned by Register when the id is already known.
	ErrDuplicateEntity = errors.New("identity: duplicate entity")
	// ErrEntityNotFound is returned by operations on an unknown entity id.
	ErrEntityNotFound = errors.New("identity: entity not found")
	// ErrAlreadyTerminal is returned when attempting to move a REVOKED or
	// DISSOLVED entity back toward ACTIVE.
	ErrAlreadyTerminal = errors.New("identity: entity is in a terminal status")
)

// Manager is the authoritative Entity registry. It is safe for concurrent
// use; all mutations hold a single mutex, mirroring the kernel's
// single-writer discipline for shared collaborators.
type Manager struct {
	mu       sync.RWMutex
	entities map[string]*ontology.Entity
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{entities: make(map[string]*ontology.Entity)}
}

// Register adds a new entity. It fails with ErrDuplicateEntity if the ID is
// already known.
func (m *Manager) Register(e *ontology.Entity) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("identity: register: %w: empty id", ErrEntityNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entities[e.ID]; exists {
		return fmt.Errorf("identity: register %q: %w", e.ID, ErrDuplicateEntity)
	}
	m.entities[e.ID] = e.Clone()
	return nil
}

// Revoke transitions the entity to REVOKED and records the revocation
// timestamp. Revoking an already-terminal entity is a no-op error.
func (m *Manager) Revoke(id string, at ontology.LogicalTimestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("identity: revoke %q: %w", id, ErrEntityNotFound)
	}
	if !e.CanTransitionTo(ontology.EntityRevoked) {
		return fmt.Errorf("identity: revoke %q: %w", id, ErrAlreadyTerminal)
	}
	e.Status = ontology.EntityRevoked
	e.RevokedAt = at
	return nil
}

// Suspend transitions an active entity to SUSPENDED.
func (m *Manager) Suspend(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("identity: suspend %q: %w", id, ErrEntityNotFound)
	}
	if !e.CanTransitionTo(ontology.EntitySuspended) {
		return fmt.Errorf("identity: suspend %q: %w", id, ErrAlreadyTerminal)
	}
	e.Status = ontology.EntitySuspended
	return nil
}

// Reinstate transitions a SUSPENDED entity back to ACTIVE. It is rejected
// for any other starting status, including REVOKED/DISSOLVED.
func (m *Manager) Reinstate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("identity: reinstate %q: %w", id, ErrEntityNotFound)
	}
	if e.Status != ontology.EntitySuspended {
		return fmt.Errorf("identity: reinstate %q: entity not suspended", id)
	}
	e.Status = ontology.EntityActive
	return nil
}

// Get returns a defensive copy of the entity, or (nil, false) if unknown.
func (m *Manager) Get(id string) (*ontology.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// All returns defensive copies of every registered entity, for replay and
// projection bootstrap.
func (m *Manager) All() []*ontology.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ontology.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e.Clone())
	}
	return out
}
