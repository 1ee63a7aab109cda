// Package eventstore defines the narrow durable-persistence port the
// audit log mirrors appended evidence to, plus reference adapters over
// SQL (kernel/eventstore/sqlstore) and LevelDB
// (kernel/eventstore/leveldbstore). Durability and ordering guarantees
// beyond "append what you're given, return it back in order" are
// delegated entirely to the adapter.
package eventstore

import (
	"context"

	"governancekernel/kernel/ontology"
)

// Port is the interface an AuditLog is optionally constructed with. A nil
// Port makes the log purely in-memory.
type Port interface {
	// Append persists evidence. It must preserve append order for Load.
	Append(ctx context.Context, evidence *ontology.Evidence) error
	// Load returns every persisted Evidence in append order, used at boot
	// to repopulate an AuditLog from durable storage before replay.
	Load(ctx context.Context) ([]*ontology.Evidence, error)
}
