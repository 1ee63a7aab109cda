// Package engine implements the Kernel: the two-phase submit/guard/commit
// pipeline and process-wide lifecycle that ties together identity,
// authority, the metric state model, the protocol engine, and the audit
// log. The narrow-interface composition and single-writer critical
// section are grounded on core/state_transition.go's build-then-apply
// discipline and native/governance/engine.go's constructor-injected
// collaborator style.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"governancekernel/kernel/audit"
	"governancekernel/kernel/authority"
	"governancekernel/kernel/guards"
	"governancekernel/kernel/identity"
	"governancekernel/kernel/metrics"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
	"governancekernel/kernel/protocol"
	"governancekernel/kernel/ratelimit"
	"governancekernel/kernel/statemodel"
	obsmetrics "governancekernel/observability/metrics"
)

var tracer = otel.Tracer("governancekernel/kernel/engine")

// CommitReceipt is returned by a successful commit.
type CommitReceipt struct {
	AttemptID    string
	Timestamp    ontology.LogicalTimestamp
	NewStateHash string
	Status       ontology.AttemptStatus
}

// GuardOutcome is the result of running the guard pipeline over an Attempt.
type GuardOutcome struct {
	Status    ontology.AttemptStatus // AttemptAccepted or AttemptRejected
	Violation *ontology.Violation
}

// Config bundles the shared collaborators a Kernel is constructed with.
// All fields except SubmitLimiter are required; the Kernel holds non-owning references to
// each, matching the ownership note in spec.md §3.
type Config struct {
	Identity   *identity.Manager
	Authority  *authority.Engine
	Registry   *metrics.Registry
	Model      *statemodel.Model
	Protocols  *protocol.Engine
	AuditLog   *audit.Log
	SigningKey *primitives.KeyPair // signs governance evidence actions

	// SubmitLimiter optionally throttles Submit per actor. A nil limiter
	// (the zero value of *ratelimit.Limiter) leaves Submit unthrottled.
	SubmitLimiter *ratelimit.Limiter
}

// Kernel is the unit of process-wide kernel state: its Attempt map, seen-
// actions set, and lifecycle are private; everything else is a shared
// reference owned by the caller that constructed the Config.
type Kernel struct {
	lifecycleMu sync.RWMutex
	lifecycle   Lifecycle

	identity   *identity.Manager
	authority  *authority.Engine
	registry   *metrics.Registry
	model      *statemodel.Model
	protocols  *protocol.Engine
	auditLog   *audit.Log
	signingKey *primitives.KeyPair
	submitRate *ratelimit.Limiter

	clock *ontology.Clock

	// commitMu is the single-writer lock: guard and commit run to
	// completion under it without yielding to another commit.
	commitMu sync.Mutex
	lastSeen ontology.LogicalTimestamp

	attemptsMu  sync.Mutex
	attempts    map[string]*ontology.Attempt
	seenActions map[string]struct{}
}

// NewKernel constructs a freshly CONSTITUTED Kernel. Call Boot to begin
// serving the pipeline.
func NewKernel(cfg Config) *Kernel {
	return &Kernel{
		lifecycle:   LifecycleConstituted,
		identity:    cfg.Identity,
		authority:   cfg.Authority,
		registry:    cfg.Registry,
		model:       cfg.Model,
		protocols:   cfg.Protocols,
		auditLog:    cfg.AuditLog,
		signingKey:  cfg.SigningKey,
		submitRate:  cfg.SubmitLimiter,
		clock:       ontology.NewClock(),
		attempts:    make(map[string]*ontology.Attempt),
		seenActions: make(map[string]struct{}),
	}
}

// Submit creates a PENDING Attempt for action, failing if an Attempt with
// the same id already exists.
func (k *Kernel) Submit(actor string, protocolID string, action *ontology.Action, cost uint64) (string, *ontology.Violation) {
	if v := k.requireActive(); v != nil {
		return "", v
	}
	if !k.submitRate.Allow(actor) {
		return "", ontology.NewViolation(ontology.CodeRateLimited, fmt.Sprintf("actor %q exceeded submission rate", actor), nil)
	}
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	if _, exists := k.attempts[action.ActionID]; exists {
		return "", ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("attempt %q already exists", action.ActionID), nil)
	}
	k.attempts[action.ActionID] = &ontology.Attempt{
		ID:         action.ActionID,
		Actor:      actor,
		ProtocolID: protocolID,
		Intent:     action.Clone(),
		Cost:       cost,
		Timestamp:  action.Timestamp,
		Status:     ontology.AttemptPending,
	}
	return action.ActionID, nil
}

// Guard runs the ordered guard pipeline over a PENDING Attempt: Signature,
// Invariant, Replay, Time, Scope, then the protocol-registered check. The
// first failure rejects the Attempt and records a REJECT evidence entry.
func (k *Kernel) Guard(ctx context.Context, attemptID string) (GuardOutcome, *ontology.Violation) {
	ctx, span := tracer.Start(ctx, "kernel.Guard", trace.WithAttributes(attribute.String("attempt_id", attemptID)))
	defer span.End()

	if v := k.requireActive(); v != nil {
		return GuardOutcome{}, v
	}
	attempt, v := k.getPendingAttempt(attemptID)
	if v != nil {
		return GuardOutcome{}, v
	}
	action := attempt.Intent

	entity, _ := k.identity.Get(action.Initiator)
	violation := guards.Signature(guards.SignatureInput{Action: action, Entity: entity})
	if violation == nil {
		violation = guards.Invariant(guards.InvariantInput{Action: action})
	}
	if violation == nil {
		violation = guards.Replay(guards.ReplayInput{ActionID: action.ActionID, Seen: k.hasSeen})
	}
	if violation == nil {
		violation = guards.Time(guards.TimeInput{Action: action, LastSeen: k.currentLastSeen()})
	}
	if violation == nil {
		violation = guards.Scope(guards.ScopeInput{
			Authority: k.authority,
			Actor:     attempt.Actor,
			MetricID:  action.Payload.MetricID,
			Now:       action.Timestamp,
		})
	}
	if violation == nil {
		violation = k.protocolRegisteredGuard(attempt.ProtocolID)
	}

	if violation != nil {
		k.transitionAttempt(attempt, ontology.AttemptRejected)
		metadata := map[string]string{"code": string(violation.Code), "violation": violation.Message}
		if _, err := k.auditLog.Append(ctx, action, ontology.EvidenceReject, metadata); err != nil {
			k.violate()
		}
		obsmetrics.Kernel().ObserveGuardRejection(string(violation.Code))
		obsmetrics.Kernel().ObserveAttempt(string(ontology.AttemptRejected))
		span.SetAttributes(attribute.String("violation_code", string(violation.Code)))
		return GuardOutcome{Status: ontology.AttemptRejected, Violation: violation}, nil
	}

	k.transitionAttempt(attempt, ontology.AttemptAccepted)
	k.observeTimestamp(action.Timestamp)
	obsmetrics.Kernel().ObserveAttempt(string(ontology.AttemptAccepted))
	return GuardOutcome{Status: ontology.AttemptAccepted}, nil
}

func (k *Kernel) protocolRegisteredGuard(protocolID string) *ontology.Violation {
	if protocolID == "" {
		return nil
	}
	p, ok := k.protocols.Get(protocolID)
	if !ok {
		return ontology.NewViolation(ontology.CodeProtocolNotFound, fmt.Sprintf("protocol %q not found", protocolID), nil)
	}
	if p.Lifecycle != ontology.ProtocolActive {
		return ontology.NewViolation(ontology.CodeProtocolNotActive, fmt.Sprintf("protocol %q is %s, not ACTIVE", protocolID, p.Lifecycle), nil)
	}
	return nil
}

// Commit performs the two-phase-committed state transition for an
// ACCEPTED Attempt: budget check, protocol side-effect evaluation,
// mutation dry-run, budget consumption, atomic snapshot apply, and
// SUCCESS evidence append — all under the single-writer commit lock.
func (k *Kernel) Commit(ctx context.Context, attemptID string, budget *primitives.Budget) (CommitReceipt, *ontology.Violation) {
	ctx, span := tracer.Start(ctx, "kernel.Commit", trace.WithAttributes(attribute.String("attempt_id", attemptID)))
	defer span.End()
	started := time.Now()
	defer func() { obsmetrics.Kernel().ObserveCommitDuration(time.Since(started).Seconds()) }()

	if v := k.requireActive(); v != nil {
		return CommitReceipt{}, v
	}

	k.commitMu.Lock()
	defer k.commitMu.Unlock()

	attempt, v := k.getAttemptByStatus(attemptID, ontology.AttemptAccepted)
	if v != nil {
		return CommitReceipt{}, v
	}
	action := attempt.Intent

	if violation := (guards.BudgetGuard(guards.BudgetInput{Budget: budget, Cost: attempt.Cost})); violation != nil {
		return CommitReceipt{}, violation
	}

	primary := ontology.Mutation{
		MetricID: action.Payload.MetricID,
		Value:    action.Payload.Value,
		Mode:     ontology.MutationSet,
	}
	sideEffects, violation := k.protocols.Evaluate(action.Timestamp, primary)
	if violation != nil {
		return k.abort(ctx, attempt, violation)
	}
	mutations := append([]ontology.Mutation{primary}, sideEffects...)

	if violation := guards.Conflict(guards.ConflictInput{Mutations: mutations}); violation != nil {
		return k.abort(ctx, attempt, violation)
	}
	for _, mut := range mutations {
		if violation := k.model.ValidateMutation(mut); violation != nil {
			return k.abort(ctx, attempt, violation)
		}
	}

	budget.Consume(attempt.Cost)

	evidenceID, err := k.auditLog.PreviewNextID(action, ontology.EvidenceSuccess, nil)
	if err != nil {
		k.violate()
		return CommitReceipt{}, ontology.NewViolation(ontology.CodeIntegrityBreach, fmt.Sprintf("preview evidence id: %v", err), nil)
	}

	snapshot, violation := k.model.ApplyTrusted(mutations, action.Timestamp, attempt.Actor, attempt.ID, evidenceID)
	if violation != nil {
		k.violate()
		return CommitReceipt{}, ontology.NewViolation(ontology.CodeIntegrityBreach, fmt.Sprintf("apply mutations after a passing dry run: %s", violation.Message), nil)
	}

	k.markSeen(action.ActionID)

	entry, err := k.auditLog.Append(ctx, action, ontology.EvidenceSuccess, nil)
	if err != nil {
		k.violate()
		return CommitReceipt{}, ontology.NewViolation(ontology.CodeIntegrityBreach, fmt.Sprintf("append success evidence: %v", err), nil)
	}
	if entry.EvidenceID != evidenceID {
		k.violate()
		return CommitReceipt{}, ontology.NewViolation(ontology.CodeIntegrityBreach, "committed evidence id diverged from the previewed id", nil)
	}

	k.transitionAttempt(attempt, ontology.AttemptCommitted)
	obsmetrics.Kernel().ObserveAttempt(string(ontology.AttemptCommitted))
	obsmetrics.Kernel().SetAuditChainLength(len(k.auditLog.GetHistory()))
	for _, side := range sideEffects {
		obsmetrics.Kernel().ObserveProtocolSideEffect(side.MetricID)
	}
	return CommitReceipt{
		AttemptID:    attempt.ID,
		Timestamp:    action.Timestamp,
		NewStateHash: snapshot.Hash,
		Status:       ontology.AttemptCommitted,
	}, nil
}

func (k *Kernel) abort(ctx context.Context, attempt *ontology.Attempt, cause *ontology.Violation) (CommitReceipt, *ontology.Violation) {
	k.transitionAttempt(attempt, ontology.AttemptAborted)
	metadata := map[string]string{"code": string(cause.Code), "violation": cause.Message}
	if _, err := k.auditLog.Append(ctx, attempt.Intent, ontology.EvidenceAborted, metadata); err != nil {
		k.violate()
	}
	obsmetrics.Kernel().ObserveAttempt(string(ontology.AttemptAborted))
	return CommitReceipt{}, ontology.NewViolation(ontology.CodeCommitFailed, cause.Message, map[string]string{"cause": string(cause.Code)})
}

// Execute is the submit + guard + commit convenience entry point.
func (k *Kernel) Execute(ctx context.Context, actor string, protocolID string, action *ontology.Action, cost uint64, budget *primitives.Budget) (CommitReceipt, *ontology.Violation) {
	attemptID, violation := k.Submit(actor, protocolID, action, cost)
	if violation != nil {
		return CommitReceipt{}, violation
	}
	outcome, violation := k.Guard(ctx, attemptID)
	if violation != nil {
		return CommitReceipt{}, violation
	}
	if outcome.Status == ontology.AttemptRejected {
		return CommitReceipt{}, outcome.Violation
	}
	return k.Commit(ctx, attemptID, budget)
}

func (k *Kernel) getPendingAttempt(id string) (*ontology.Attempt, *ontology.Violation) {
	return k.getAttemptByStatus(id, ontology.AttemptPending)
}

func (k *Kernel) getAttemptByStatus(id string, want ontology.AttemptStatus) (*ontology.Attempt, *ontology.Violation) {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	attempt, ok := k.attempts[id]
	if !ok {
		return nil, ontology.NewViolation(ontology.CodeAttemptNotFound, fmt.Sprintf("attempt %q not found", id), nil)
	}
	if attempt.Status != want {
		return nil, ontology.NewViolation(ontology.CodeAttemptNotFound, fmt.Sprintf("attempt %q is %s, not %s", id, attempt.Status, want), nil)
	}
	return attempt, nil
}

func (k *Kernel) transitionAttempt(attempt *ontology.Attempt, next ontology.AttemptStatus) {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	if attempt.Status.CanTransitionTo(next) {
		attempt.Status = next
	}
}

func (k *Kernel) hasSeen(actionID string) bool {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	_, ok := k.seenActions[actionID]
	return ok
}

func (k *Kernel) markSeen(actionID string) {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	k.seenActions[actionID] = struct{}{}
}

func (k *Kernel) currentLastSeen() ontology.LogicalTimestamp {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	return k.lastSeen
}

func (k *Kernel) observeTimestamp(t ontology.LogicalTimestamp) {
	k.attemptsMu.Lock()
	defer k.attemptsMu.Unlock()
	if t.After(k.lastSeen) {
		k.lastSeen = t
	}
	k.clock.Observe(t)
}

// MarkSeenForReplay registers actionID into the seen-actions set without
// touching any other state, used by the replay engine to restore replay
// memory for both committed and non-committed attempts.
func (k *Kernel) MarkSeenForReplay(actionID string, t ontology.LogicalTimestamp) {
	k.markSeen(actionID)
	k.observeTimestamp(t)
}

// State returns the bound state model, for read-only callers (state.get).
func (k *Kernel) State() *statemodel.Model { return k.model }

// Audit returns the bound audit log, for read-only callers (audit.getHistory).
func (k *Kernel) Audit() *audit.Log { return k.auditLog }
