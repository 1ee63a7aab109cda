// Package audit implements the Merkle-chained evidence log: one immutable,
// hash-linked entry per Attempt outcome. The append-then-mirror-to-store
// discipline and the deep-freeze-by-clone pattern are grounded on the
// teacher's core/identity/alias.go registry style and
// observability/events.go's append-only event stream.
package audit

import (
	"context"
	"fmt"
	"sync"

	"governancekernel/kernel/eventstore"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

// Log is the append-only, hash-linked evidence chain.
type Log struct {
	mu    sync.RWMutex
	chain []*ontology.Evidence
	store eventstore.Port
}

// NewLog constructs an empty Log, optionally bound to a durable store.
func NewLog(store eventstore.Port) *Log {
	return &Log{store: store}
}

// LoadFromStore replaces the in-memory chain with whatever the bound store
// returns, used during kernel boot/replay rather than at genesis.
func (l *Log) LoadFromStore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("audit: load from store: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chain = entries
	return nil
}

// Append computes the next evidenceId from the canonical composition of
// (previousEvidenceId, action, status, metadata), appends the resulting
// Evidence to the in-memory chain, mirrors it to the bound store, and
// returns a defensive clone. The in-memory chain always advances before
// the store append is attempted, matching the suspension contract: a
// failed store append must be observable by the caller (which is
// responsible for transitioning the kernel to VIOLATED) without losing
// the in-memory record of what was just witnessed.
func (l *Log) Append(ctx context.Context, action *ontology.Action, status ontology.EvidenceStatus, metadata map[string]string) (*ontology.Evidence, error) {
	l.mu.Lock()
	previous := primitives.ZeroDigest.Hex()
	sequence := uint64(0)
	if n := len(l.chain); n > 0 {
		previous = l.chain[n-1].EvidenceID
		sequence = l.chain[n-1].Sequence + 1
	}

	evidenceID, err := computeEvidenceID(previous, action, status, metadata)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("audit: compute evidence id: %w", err)
	}

	timestamp := ontology.Zero
	if action != nil {
		timestamp = action.Timestamp
	}

	entry := &ontology.Evidence{
		EvidenceID:         evidenceID,
		PreviousEvidenceID: previous,
		Sequence:           sequence,
		Action:             action.Clone(),
		Status:             status,
		Timestamp:          timestamp,
		Metadata:           cloneMetadata(metadata),
	}
	l.chain = append(l.chain, entry)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Append(ctx, entry.Clone()); err != nil {
			return entry.Clone(), fmt.Errorf("audit: store append: %w", err)
		}
	}
	return entry.Clone(), nil
}

// PreviewNextID computes the evidenceId the next Append with these exact
// arguments would produce, without mutating the chain. Callers that need
// to stamp a dependent record (e.g. a StateSnapshot's MetricValue) with
// the evidenceId before the evidence itself is appended — while still
// honoring the ordering guarantee that evidence is appended strictly
// after the snapshot it witnesses — compute the id here first, and then
// call Append with identical arguments once the snapshot is in place.
// Both calls resolve against the same chain tip because the kernel holds
// its single-writer commit lock across the whole sequence.
func (l *Log) PreviewNextID(action *ontology.Action, status ontology.EvidenceStatus, metadata map[string]string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	previous := primitives.ZeroDigest.Hex()
	if n := len(l.chain); n > 0 {
		previous = l.chain[n-1].EvidenceID
	}
	return computeEvidenceID(previous, action, status, metadata)
}

// GetHistory returns the full chain in append order.
func (l *Log) GetHistory() []*ontology.Evidence {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*ontology.Evidence, len(l.chain))
	for i, e := range l.chain {
		out[i] = e.Clone()
	}
	return out
}

// GetTip returns the most recently appended entry, or nil if empty.
func (l *Log) GetTip() *ontology.Evidence {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.chain) == 0 {
		return nil
	}
	return l.chain[len(l.chain)-1].Clone()
}

// GetLatest is an alias for GetTip matching the read-model naming used
// elsewhere in the spec's interface list.
func (l *Log) GetLatest() *ontology.Evidence {
	return l.GetTip()
}

// VerifyIntegrity recomputes every evidenceId from its recorded fields and
// validates previousEvidenceId linkage across the whole chain.
func (l *Log) VerifyIntegrity() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	previous := primitives.ZeroDigest.Hex()
	for _, e := range l.chain {
		if e.PreviousEvidenceID != previous {
			return false
		}
		recomputed, err := computeEvidenceID(previous, e.Action, e.Status, e.Metadata)
		if err != nil || recomputed != e.EvidenceID {
			return false
		}
		previous = e.EvidenceID
	}
	return true
}

func computeEvidenceID(previousEvidenceID string, action *ontology.Action, status ontology.EvidenceStatus, metadata map[string]string) (string, error) {
	view := struct {
		PreviousEvidenceID string
		Action             *ontology.Action
		Status             ontology.EvidenceStatus
		Metadata           map[string]string
	}{previousEvidenceID, action, status, metadata}
	digest, err := primitives.HashCanonical(view)
	if err != nil {
		return "", err
	}
	return digest.Hex(), nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
