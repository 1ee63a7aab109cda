// Package guards implements the kernel's pure validators. Per the ordered-
// sum-type design note, each guard is a typed input struct plus a function
// returning a *ontology.Violation (nil on success) rather than a dynamic-
// dispatch validator object — the Kernel evaluates them in a fixed order
// and carries no dependency on any guard's internals beyond its input
// struct. The narrow-input-per-check style is grounded on
// native/governance/engine.go's per-operation validation helpers.
package guards

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"governancekernel/kernel/authority"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

// actionIDPattern constrains actionId to 1-64 hex digits of either case, the
// INVALID_ID_FORMAT check named in spec §4.5's Invariant guard row.
var actionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{1,64}$`)

// MaxPayloadBytes bounds the canonical encoding of an Action's payload.
// PAYLOAD_OVERSIZE is raised above this limit.
const MaxPayloadBytes = 16 * 1024

// SignatureInput carries everything the Signature guard needs to decide
// admissibility without touching the identity registry itself.
type SignatureInput struct {
	Action           *ontology.Action
	Entity           *ontology.Entity // nil when the initiator is unknown
	SystemPrivileged bool             // true only for internal callers (replay, genesis)
}

// Signature verifies the initiator exists, is not REVOKED, and either
// carries a verified cryptographic signature or the internal TRUSTED
// bypass from a system-privileged caller.
func Signature(in SignatureInput) *ontology.Violation {
	if in.Entity == nil {
		return ontology.NewViolation(ontology.CodeUnknownEntity, fmt.Sprintf("initiator %q is not registered", in.Action.Initiator), nil)
	}
	if in.Entity.Status == ontology.EntityRevoked {
		return ontology.NewViolation(ontology.CodeRevokedEntity, fmt.Sprintf("initiator %q is revoked", in.Action.Initiator), nil)
	}
	if in.Entity.Status == ontology.EntitySuspended {
		return ontology.NewViolation(ontology.CodeRevokedEntity, fmt.Sprintf("initiator %q is suspended", in.Action.Initiator), nil)
	}
	if in.Action.Signature == ontology.TrustedSignature {
		if in.SystemPrivileged {
			return nil
		}
		return ontology.NewViolation(ontology.CodeSignatureInvalid, "TRUSTED signature is not honored for externally submitted actions", nil)
	}
	message, err := in.Action.SignedMessage()
	if err != nil {
		return ontology.NewViolation(ontology.CodeSignatureInvalid, fmt.Sprintf("build signed message: %v", err), nil)
	}
	sig, err := hex.DecodeString(in.Action.Signature)
	if err != nil {
		return ontology.NewViolation(ontology.CodeSignatureInvalid, "signature is not valid hex", nil)
	}
	if !primitives.VerifySignature([]byte(message), sig, in.Entity.PublicKey) {
		return ontology.NewViolation(ontology.CodeSignatureInvalid, "signature verification failed", nil)
	}
	return nil
}

// InvariantInput carries the structural checks independent of registries.
type InvariantInput struct {
	Action *ontology.Action
}

// Invariant enforces actionId format and payload size bounds.
func Invariant(in InvariantInput) *ontology.Violation {
	if !actionIDPattern.MatchString(in.Action.ActionID) {
		return ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("actionId %q is not a valid hex identifier", in.Action.ActionID), nil)
	}
	if in.Action.Payload.MetricID == "" {
		return ontology.NewViolation(ontology.CodeMissingMetricID, "payload.metricId is required", nil)
	}
	payload, err := primitives.Canonical(in.Action.Payload)
	if err != nil {
		return ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("canonicalize payload: %v", err), nil)
	}
	if len(payload) > MaxPayloadBytes {
		return ontology.NewViolation(ontology.CodePayloadOversize, fmt.Sprintf("payload exceeds %d bytes", MaxPayloadBytes), nil)
	}
	if in.Action.Expired(in.Action.Timestamp) {
		return ontology.NewViolation(ontology.CodeTemporalParadox, "action is already expired as of its own timestamp", nil)
	}
	return nil
}

// ReplayInput carries the seen-actions membership test.
type ReplayInput struct {
	ActionID string
	Seen     func(actionID string) bool
}

// Replay rejects re-submission of a previously seen actionId.
func Replay(in ReplayInput) *ontology.Violation {
	if in.Seen(in.ActionID) {
		return ontology.NewViolation(ontology.CodeReplayDetected, fmt.Sprintf("actionId %q has already been seen", in.ActionID), nil)
	}
	return nil
}

// TimeInput carries the monotonicity check.
type TimeInput struct {
	Action   *ontology.Action
	LastSeen ontology.LogicalTimestamp
}

// Time rejects an action whose timestamp moves backward relative to the
// last timestamp the kernel has observed.
func Time(in TimeInput) *ontology.Violation {
	if in.Action.Timestamp.Before(in.LastSeen) {
		return ontology.NewViolation(ontology.CodeTemporalParadox, fmt.Sprintf("action timestamp %s precedes last seen timestamp %s", in.Action.Timestamp, in.LastSeen), nil)
	}
	return nil
}

// ScopeInput carries the capability authorization check.
type ScopeInput struct {
	Authority    *authority.Engine
	Actor        string
	MetricID     string
	Jurisdiction string
	Now          ontology.LogicalTimestamp
}

// Scope requires the actor hold METRIC.WRITE over the target metric.
func Scope(in ScopeInput) *ontology.Violation {
	capability := ontology.Capability(fmt.Sprintf("METRIC.WRITE:%s", in.MetricID))
	if !in.Authority.Authorized(in.Actor, capability, in.Jurisdiction, in.Now, nil) {
		return ontology.NewViolation(ontology.CodeOverscopeAttempt, fmt.Sprintf("actor %q lacks %s", in.Actor, capability), nil)
	}
	return nil
}

// BudgetInput carries the commit-time spending check.
type BudgetInput struct {
	Budget *primitives.Budget
	Cost   uint64
}

// BudgetGuard rejects a commit that would exceed the caller's budget.
func BudgetGuard(in BudgetInput) *ontology.Violation {
	if !in.Budget.CanAfford(in.Cost) {
		return ontology.NewViolation(ontology.CodeBudgetExceeded, fmt.Sprintf("cost %d exceeds remaining budget %d", in.Cost, in.Budget.Remaining()), nil)
	}
	return nil
}

// ConflictInput carries the per-metric protocol conflict check evaluated
// over the mutations a commit is about to apply.
type ConflictInput struct {
	Mutations []ontology.Mutation
}

// Conflict rejects a mutation set that targets the same metric more than
// once, which can only arise from two ACTIVE protocols (or a protocol and
// the primary mutation) both declaring an execution against it.
func Conflict(in ConflictInput) *ontology.Violation {
	seen := make(map[string]struct{}, len(in.Mutations))
	for _, mut := range in.Mutations {
		if _, ok := seen[mut.MetricID]; ok {
			return ontology.NewViolation(ontology.CodeProtocolViolation, fmt.Sprintf("metric %q is targeted by more than one mutation in this commit", mut.MetricID), nil)
		}
		seen[mut.MetricID] = struct{}{}
	}
	return nil
}
