package ontology

import (
	"fmt"

	"governancekernel/kernel/primitives"
)

// ActionPayload is the mutation intent carried by an Action.
type ActionPayload struct {
	MetricID   string `json:"metricId"`
	Value      any    `json:"value"`
	ProtocolID string `json:"protocolId,omitempty"`
}

// TrustedSignature is the sentinel signature value honored only for
// internally-originated Actions (replay, genesis seeding). Any externally
// submitted Action carrying this value must fail signature verification —
// enforced by the Signature guard, not here.
const TrustedSignature = "TRUSTED"

// Action is the canonical signed input to the kernel.
type Action struct {
	ActionID  string        `json:"actionId"`
	Initiator string        `json:"initiator"`
	Payload   ActionPayload `json:"payload"`
	Timestamp LogicalTimestamp
	ExpiresAt LogicalTimestamp
	Signature string `json:"signature"`
}

// SignedMessage returns the canonical string that Signature must be
// verified against: "actionId:initiator:canonical(payload):timestamp:expiresAt".
func (a *Action) SignedMessage() (string, error) {
	payloadBytes, err := primitives.Canonical(a.Payload)
	if err != nil {
		return "", fmt.Errorf("ontology: canonicalize payload: %w", err)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", a.ActionID, a.Initiator, payloadBytes, a.Timestamp.String(), a.ExpiresAt.String()), nil
}

// Expired reports whether the action's expiry has passed as of now. A zero
// ExpiresAt means the action never expires.
func (a *Action) Expired(now LogicalTimestamp) bool {
	if a.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.ExpiresAt)
}

// Clone returns a defensive copy of the Action.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
