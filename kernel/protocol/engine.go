// Package protocol implements the Protocol lifecycle state machine, signed
// bundle loading with conflict detection, and side-effect evaluation. The
// lifecycle-gated mutation pattern is grounded on native/governance/engine.go's
// proposal admission pipeline, generalized from proposal voting to
// protocol activation.
package protocol

import (
	"encoding/hex"
	"fmt"
	"sync"

	"governancekernel/kernel/metrics"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
	"governancekernel/kernel/statemodel"
)

// Engine owns the Protocol catalog and evaluates which ACTIVE protocols
// fire their side-effect mutations for a given primary mutation.
type Engine struct {
	registry *metrics.Registry
	model    *statemodel.Model

	mu        sync.RWMutex
	protocols map[string]*ontology.Protocol
}

// NewEngine constructs an empty protocol catalog bound to the metric
// registry (for execution-mode resolution) and the state model (for
// precondition evaluation against current values).
func NewEngine(registry *metrics.Registry, model *statemodel.Model) *Engine {
	return &Engine{
		registry:  registry,
		model:     model,
		protocols: make(map[string]*ontology.Protocol),
	}
}

// Propose registers p in PROPOSED lifecycle, rejecting a missing ID or a
// duplicate.
func (e *Engine) Propose(p *ontology.Protocol) *ontology.Violation {
	if p.ID == "" {
		return ontology.NewViolation(ontology.CodeInvalidIDFormat, "protocol id is required", nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.protocols[p.ID]; exists {
		return ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("protocol %q already proposed", p.ID), nil)
	}
	clone := p.Clone()
	clone.Lifecycle = ontology.ProtocolProposed
	e.protocols[p.ID] = clone
	return nil
}

// Ratify verifies a governance signature over the protocol id and
// transitions PROPOSED -> RATIFIED.
func (e *Engine) Ratify(id string, governanceSignature []byte, governanceKey []byte) *ontology.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.protocols[id]
	if !ok {
		return ontology.NewViolation(ontology.CodeProtocolNotFound, fmt.Sprintf("protocol %q not found", id), nil)
	}
	if !primitives.VerifySignature([]byte(id), governanceSignature, governanceKey) {
		return ontology.NewViolation(ontology.CodeProtocolViolation, "governance signature invalid", nil)
	}
	if !p.Lifecycle.CanTransitionTo(ontology.ProtocolRatified) {
		return ontology.NewViolation(ontology.CodeStateTransitionError, fmt.Sprintf("protocol %q cannot move from %s to RATIFIED", id, p.Lifecycle), nil)
	}
	p.Lifecycle = ontology.ProtocolRatified
	return nil
}

// Activate transitions RATIFIED -> ACTIVE.
func (e *Engine) Activate(id string) *ontology.Violation {
	return e.transition(id, ontology.ProtocolActive)
}

// Deprecate transitions ACTIVE -> DEPRECATED.
func (e *Engine) Deprecate(id string) *ontology.Violation {
	return e.transition(id, ontology.ProtocolDeprecated)
}

// Revoke transitions ACTIVE -> REVOKED.
func (e *Engine) Revoke(id string) *ontology.Violation {
	return e.transition(id, ontology.ProtocolRevoked)
}

func (e *Engine) transition(id string, next ontology.ProtocolLifecycle) *ontology.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.protocols[id]
	if !ok {
		return ontology.NewViolation(ontology.CodeProtocolNotFound, fmt.Sprintf("protocol %q not found", id), nil)
	}
	if !p.Lifecycle.CanTransitionTo(next) {
		return ontology.NewViolation(ontology.CodeStateTransitionError, fmt.Sprintf("protocol %q cannot move from %s to %s", id, p.Lifecycle, next), nil)
	}
	p.Lifecycle = next
	return nil
}

// IsRegistered reports whether id names a known protocol.
func (e *Engine) IsRegistered(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.protocols[id]
	return ok
}

// Get returns a defensive copy of the protocol named id.
func (e *Engine) Get(id string) (*ontology.Protocol, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.protocols[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// LoadBundle verifies bundle integrity and owner signature, checks for
// execution-target conflicts against currently ACTIVE protocols, and
// registers every contained protocol atomically. The caller is responsible
// for checking the actor's GOVERNANCE capability before calling this —
// LoadBundle itself only validates the bundle's own cryptographic claims.
func (e *Engine) LoadBundle(bundle *ontology.Bundle) *ontology.Violation {
	recomputed, err := primitives.HashCanonical(bundle.IDView())
	if err != nil {
		return ontology.NewViolation(ontology.CodeBundleIDMismatch, fmt.Sprintf("canonicalize bundle: %v", err), nil)
	}
	if recomputed.Hex() != bundle.BundleID {
		return ontology.NewViolation(ontology.CodeBundleIDMismatch, "recomputed bundleId does not match", nil)
	}

	ownerKey, err := hex.DecodeString(bundle.Owner.PublicKey)
	if err != nil {
		return ontology.NewViolation(ontology.CodeBundleSignatureBad, "owner public key is not valid hex", nil)
	}
	signature, err := decodeBundleSignature(bundle.Signature)
	if err != nil {
		return ontology.NewViolation(ontology.CodeBundleSignatureBad, err.Error(), nil)
	}
	if !primitives.VerifySignature([]byte(bundle.BundleID), signature, ownerKey) {
		return ontology.NewViolation(ontology.CodeBundleSignatureBad, "owner signature verification failed", nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	activeMutated := make(map[string]string) // metricId -> owning active protocol id
	for _, p := range e.protocols {
		if p.Lifecycle != ontology.ProtocolActive {
			continue
		}
		for metricID := range p.MutatedMetrics() {
			activeMutated[metricID] = p.ID
		}
	}
	for _, p := range bundle.Protocols {
		for metricID := range p.MutatedMetrics() {
			if owner, conflict := activeMutated[metricID]; conflict && owner != p.ID {
				return ontology.NewViolation(ontology.CodeBundleConflict, fmt.Sprintf("protocol %q and active protocol %q both mutate metric %q", p.ID, owner, metricID), nil)
			}
		}
	}

	for _, p := range bundle.Protocols {
		e.protocols[p.ID] = p.Clone()
	}
	return nil
}

func decodeBundleSignature(signature string) ([]byte, error) {
	const prefix = "ed25519:"
	s := signature
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		s = s[len(prefix):]
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("protocol: signature is not valid hex: %w", err)
	}
	return decoded, nil
}

// Evaluate returns the side-effect mutations declared by every ACTIVE
// protocol whose preconditions hold once primary is treated as already
// applied. Two ACTIVE protocols (or a protocol and the primary mutation
// itself) targeting the same metric fails PROTOCOL_VIOLATION.
func (e *Engine) Evaluate(now ontology.LogicalTimestamp, primary ontology.Mutation) ([]ontology.Mutation, *ontology.Violation) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	touched := map[string]struct{}{primary.MetricID: {}}
	var sideEffects []ontology.Mutation

	for _, p := range e.protocols {
		if p.Lifecycle != ontology.ProtocolActive {
			continue
		}
		if !e.preconditionsHold(p, now, primary) {
			continue
		}
		for _, exec := range p.Execution {
			if exec.Kind != ontology.ExecutionMutateMetric {
				continue
			}
			if _, conflict := touched[exec.MetricID]; conflict {
				return nil, ontology.NewViolation(ontology.CodeProtocolViolation, fmt.Sprintf("more than one protocol declares an execution against metric %q", exec.MetricID), nil)
			}
			touched[exec.MetricID] = struct{}{}

			mode := ontology.MutationIncrement
			def, ok := e.registry.Get(exec.MetricID)
			if ok && def.Type == ontology.MetricGauge && exec.Explicit {
				mode = ontology.MutationSet
			}
			if ok && def.Type == ontology.MetricBoolean {
				mode = ontology.MutationSet
			}
			sideEffects = append(sideEffects, ontology.Mutation{
				MetricID: exec.MetricID,
				Value:    exec.Mutation,
				Mode:     mode,
			})
		}
	}
	return sideEffects, nil
}

// preconditionsHold evaluates p's precondition list against current state,
// overlaying primary's declared value on its own metric so a protocol can
// gate on the mutation about to be committed rather than only the
// pre-commit value.
func (e *Engine) preconditionsHold(p *ontology.Protocol, now ontology.LogicalTimestamp, primary ontology.Mutation) bool {
	for _, pre := range p.Preconditions {
		switch pre.Kind {
		case ontology.PreconditionAlways:
			continue
		case ontology.PreconditionTimeWindow:
			if !pre.Start.IsZero() && now.Before(pre.Start) {
				return false
			}
			if !pre.End.IsZero() && now.After(pre.End) {
				return false
			}
		case ontology.PreconditionMetricThreshold:
			value := e.effectiveValue(pre.MetricID, primary)
			if !compareThreshold(value, pre.Operator, pre.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (e *Engine) effectiveValue(metricID string, primary ontology.Mutation) float64 {
	if metricID == primary.MetricID {
		if v, ok := asFloat(primary.Value); ok {
			return v
		}
	}
	if current, ok := e.model.Get(metricID); ok {
		if v, ok := asFloat(current); ok {
			return v
		}
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func compareThreshold(value float64, op ontology.ThresholdOperator, threshold float64) bool {
	switch op {
	case ontology.OpLess:
		return value < threshold
	case ontology.OpLessOrEqual:
		return value <= threshold
	case ontology.OpEqual:
		return value == threshold
	case ontology.OpGreaterOrEqual:
		return value >= threshold
	case ontology.OpGreater:
		return value > threshold
	default:
		return false
	}
}
