// Package replay rebuilds kernel state and read-model projections purely
// from an ordered evidence log. The registry-of-handlers pattern for
// ProjectionEngine is grounded on observability/events.go's subscriber
// dispatch, generalized from event notification to deterministic
// state-folding.
package replay

import (
	"fmt"

	"governancekernel/kernel/engine"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/protocol"
	"governancekernel/kernel/statemodel"
)

// Projection is a named read-model derived purely and deterministically
// from the audit log. Apply must be idempotent under ordered
// re-application from genesis.
type Projection interface {
	Name() string
	Reset()
	Apply(evidence *ontology.Evidence) error
	GetState() any
}

// ProjectionEngine fans a replayed evidence stream out to every
// registered projection. A single projection's error is caught and
// reported to Errf without halting the others or the replay itself.
type ProjectionEngine struct {
	projections []Projection
	Errf        func(projection string, err error)
}

// NewProjectionEngine constructs an engine with no projections registered.
func NewProjectionEngine() *ProjectionEngine {
	return &ProjectionEngine{Errf: func(string, error) {}}
}

// Register adds a projection to the fan-out set.
func (e *ProjectionEngine) Register(p Projection) {
	e.projections = append(e.projections, p)
}

// Reset resets every registered projection.
func (e *ProjectionEngine) Reset() {
	for _, p := range e.projections {
		p.Reset()
	}
}

// Apply feeds evidence to every registered projection.
func (e *ProjectionEngine) Apply(evidence *ontology.Evidence) {
	for _, p := range e.projections {
		if err := p.Apply(evidence); err != nil {
			e.Errf(p.Name(), err)
		}
	}
}

// Engine rebuilds a kernel's state model and seen-actions memory, and
// optionally drives a ProjectionEngine, purely from an ordered Evidence
// sequence. Protocols must already be loaded into the same lifecycle
// (PROPOSED/RATIFIED/ACTIVE/...) the original kernel had at each point in
// the log — scenario 6's "boot fresh kernel B with same registries"
// language means identity, authority, the metric registry and the
// protocol catalog are bootstrapped out of band (e.g. from genesis),
// and only the metric state itself is reconstructed by replaying
// evidence. Evidence deliberately does not carry the protocol
// side-effect mutations themselves (§3's Evidence shape references only
// the primary Action) — replay recomputes them by re-running the same
// deterministic protocol evaluation the original commit used, against
// protocols already in the same state B was given.
type Engine struct {
	Model       *statemodel.Model
	Kernel      *engine.Kernel
	Protocols   *protocol.Engine
	Projections *ProjectionEngine
}

// Replay folds every evidence in log, in order, into the Engine's model
// and kernel: projections are fed first, actionId is registered into the
// kernel's seenActions regardless of outcome, and SUCCESS entries are
// applied to the state model bypassing guards (the entry was already
// validated when first written). A final parity check compares the
// replayed tip's actionId against the actionId of the log's last
// EvidenceSuccess entry — the log's raw tail may be a REJECT or ABORTED
// entry that never advanced the state tip.
func (e *Engine) Replay(log []*ontology.Evidence) error {
	if e.Projections != nil {
		e.Projections.Reset()
	}
	for _, evidence := range log {
		if e.Projections != nil {
			e.Projections.Apply(evidence)
		}
		if e.Kernel != nil && evidence.Action != nil {
			e.Kernel.MarkSeenForReplay(evidence.Action.ActionID, evidence.Timestamp)
		}
		if evidence.Status != ontology.EvidenceSuccess {
			continue
		}

		primary := ontology.Mutation{
			MetricID: evidence.Action.Payload.MetricID,
			Value:    evidence.Action.Payload.Value,
			Mode:     ontology.MutationSet,
		}
		mutations := []ontology.Mutation{primary}
		if e.Protocols != nil {
			sideEffects, violation := e.Protocols.Evaluate(evidence.Timestamp, primary)
			if violation != nil {
				return fmt.Errorf("replay: re-evaluate protocols for evidence %q: %s", evidence.EvidenceID, violation.Message)
			}
			mutations = append(mutations, sideEffects...)
		}

		if _, violation := e.Model.ApplyTrusted(mutations, evidence.Timestamp, evidence.Action.Initiator, evidence.Action.ActionID, evidence.EvidenceID); violation != nil {
			return fmt.Errorf("replay: apply evidence %q: %s", evidence.EvidenceID, violation.Message)
		}
	}

	var lastSuccess *ontology.Evidence
	for _, evidence := range log {
		if evidence.Status == ontology.EvidenceSuccess {
			lastSuccess = evidence
		}
	}
	if lastSuccess == nil || lastSuccess.Action == nil {
		return nil
	}
	tip := e.Model.GetTip()
	if tip.ActionID != lastSuccess.Action.ActionID {
		return fmt.Errorf("%s: replayed tip actionId %q does not match last committed actionId %q", ontology.CodeReplayFailure, tip.ActionID, lastSuccess.Action.ActionID)
	}
	return nil
}
