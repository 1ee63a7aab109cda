package guards

import (
	"encoding/hex"
	"testing"

	"governancekernel/kernel/authority"
	"governancekernel/kernel/identity"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

func signedAction(t *testing.T, kp *primitives.KeyPair, actionID string) *ontology.Action {
	t.Helper()
	action := &ontology.Action{
		ActionID:  actionID,
		Initiator: "actor-1",
		Payload:   ontology.ActionPayload{MetricID: "stress", Value: 0.5},
		Timestamp: ontology.LogicalTimestamp{Physical: 1},
	}
	message, err := action.SignedMessage()
	if err != nil {
		t.Fatalf("signed message: %v", err)
	}
	action.Signature = hex.EncodeToString(primitives.Sign(kp.Private, []byte(message)))
	return action
}

func TestSignatureAcceptsValidSignature(t *testing.T) {
	kp, err := primitives.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	action := signedAction(t, kp, "abc123")
	entity := &ontology.Entity{ID: "actor-1", PublicKey: kp.Public, Status: ontology.EntityActive}

	if v := Signature(SignatureInput{Action: action, Entity: entity}); v != nil {
		t.Fatalf("unexpected violation: %v", v)
	}
}

func TestSignatureRejectsUnknownEntity(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Initiator: "actor-1"}
	v := Signature(SignatureInput{Action: action, Entity: nil})
	if v == nil || v.Code != ontology.CodeUnknownEntity {
		t.Fatalf("expected CodeUnknownEntity, got %v", v)
	}
}

func TestSignatureRejectsRevokedEntity(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Initiator: "actor-1"}
	entity := &ontology.Entity{ID: "actor-1", Status: ontology.EntityRevoked}
	v := Signature(SignatureInput{Action: action, Entity: entity})
	if v == nil || v.Code != ontology.CodeRevokedEntity {
		t.Fatalf("expected CodeRevokedEntity, got %v", v)
	}
}

func TestSignatureRejectsSuspendedEntity(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Initiator: "actor-1"}
	entity := &ontology.Entity{ID: "actor-1", Status: ontology.EntitySuspended}
	v := Signature(SignatureInput{Action: action, Entity: entity})
	if v == nil || v.Code != ontology.CodeRevokedEntity {
		t.Fatalf("expected CodeRevokedEntity, got %v", v)
	}
}

func TestSignatureRejectsTrustedFromUnprivilegedCaller(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Initiator: "actor-1", Signature: ontology.TrustedSignature}
	entity := &ontology.Entity{ID: "actor-1", Status: ontology.EntityActive}
	v := Signature(SignatureInput{Action: action, Entity: entity, SystemPrivileged: false})
	if v == nil || v.Code != ontology.CodeSignatureInvalid {
		t.Fatalf("expected CodeSignatureInvalid, got %v", v)
	}
}

func TestSignatureAcceptsTrustedFromPrivilegedCaller(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Initiator: "actor-1", Signature: ontology.TrustedSignature}
	entity := &ontology.Entity{ID: "actor-1", Status: ontology.EntityActive}
	if v := Signature(SignatureInput{Action: action, Entity: entity, SystemPrivileged: true}); v != nil {
		t.Fatalf("unexpected violation: %v", v)
	}
}

func TestSignatureRejectsTamperedPayload(t *testing.T) {
	kp, err := primitives.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	action := signedAction(t, kp, "abc123")
	action.Payload.Value = 0.9 // tamper after signing
	entity := &ontology.Entity{ID: "actor-1", PublicKey: kp.Public, Status: ontology.EntityActive}
	v := Signature(SignatureInput{Action: action, Entity: entity})
	if v == nil || v.Code != ontology.CodeSignatureInvalid {
		t.Fatalf("expected CodeSignatureInvalid, got %v", v)
	}
}

func TestInvariantRejectsMalformedActionID(t *testing.T) {
	action := &ontology.Action{ActionID: "not hex!!", Payload: ontology.ActionPayload{MetricID: "stress"}}
	v := Invariant(InvariantInput{Action: action})
	if v == nil || v.Code != ontology.CodeInvalidIDFormat {
		t.Fatalf("expected CodeInvalidIDFormat, got %v", v)
	}
}

func TestInvariantRejectsMissingMetricID(t *testing.T) {
	action := &ontology.Action{ActionID: "abc123", Payload: ontology.ActionPayload{}}
	v := Invariant(InvariantInput{Action: action})
	if v == nil || v.Code != ontology.CodeMissingMetricID {
		t.Fatalf("expected CodeMissingMetricID, got %v", v)
	}
}

func TestInvariantRejectsOversizePayload(t *testing.T) {
	big := make([]byte, MaxPayloadBytes+100)
	for i := range big {
		big[i] = 'a'
	}
	action := &ontology.Action{ActionID: "abc123", Payload: ontology.ActionPayload{MetricID: "stress", Value: string(big)}}
	v := Invariant(InvariantInput{Action: action})
	if v == nil || v.Code != ontology.CodePayloadOversize {
		t.Fatalf("expected CodePayloadOversize, got %v", v)
	}
}

func TestInvariantRejectsSelfExpiredAction(t *testing.T) {
	action := &ontology.Action{
		ActionID:  "abc123",
		Payload:   ontology.ActionPayload{MetricID: "stress"},
		Timestamp: ontology.LogicalTimestamp{Physical: 100},
		ExpiresAt: ontology.LogicalTimestamp{Physical: 50},
	}
	v := Invariant(InvariantInput{Action: action})
	if v == nil || v.Code != ontology.CodeTemporalParadox {
		t.Fatalf("expected CodeTemporalParadox, got %v", v)
	}
}

func TestReplayRejectsSeenAction(t *testing.T) {
	seen := map[string]bool{"abc123": true}
	v := Replay(ReplayInput{ActionID: "abc123", Seen: func(id string) bool { return seen[id] }})
	if v == nil || v.Code != ontology.CodeReplayDetected {
		t.Fatalf("expected CodeReplayDetected, got %v", v)
	}
	if v := Replay(ReplayInput{ActionID: "new-id", Seen: func(id string) bool { return seen[id] }}); v != nil {
		t.Fatalf("unexpected violation for unseen action: %v", v)
	}
}

func TestTimeRejectsRegression(t *testing.T) {
	action := &ontology.Action{Timestamp: ontology.LogicalTimestamp{Physical: 5}}
	v := Time(TimeInput{Action: action, LastSeen: ontology.LogicalTimestamp{Physical: 10}})
	if v == nil || v.Code != ontology.CodeTemporalParadox {
		t.Fatalf("expected CodeTemporalParadox, got %v", v)
	}
	if v := Time(TimeInput{Action: action, LastSeen: ontology.LogicalTimestamp{Physical: 1}}); v != nil {
		t.Fatalf("unexpected violation for advancing timestamp: %v", v)
	}
}

func TestScopeRequiresAuthorization(t *testing.T) {
	identities := identity.NewManager()
	if err := identities.Register(&ontology.Entity{ID: "actor-1", Status: ontology.EntityActive}); err != nil {
		t.Fatalf("register: %v", err)
	}
	eng := authority.NewEngine(identities)
	v := Scope(ScopeInput{Authority: eng, Actor: "actor-1", MetricID: "stress"})
	if v == nil || v.Code != ontology.CodeOverscopeAttempt {
		t.Fatalf("expected CodeOverscopeAttempt, got %v", v)
	}
}

func TestBudgetGuardRejectsOverspend(t *testing.T) {
	budget := primitives.NewBudget(10)
	if v := BudgetGuard(BudgetInput{Budget: budget, Cost: 5}); v != nil {
		t.Fatalf("unexpected violation: %v", v)
	}
	if v := BudgetGuard(BudgetInput{Budget: budget, Cost: 20}); v == nil || v.Code != ontology.CodeBudgetExceeded {
		t.Fatalf("expected CodeBudgetExceeded, got %v", v)
	}
}

func TestConflictRejectsDuplicateMetricTargets(t *testing.T) {
	mutations := []ontology.Mutation{
		{MetricID: "stress"},
		{MetricID: "stress"},
	}
	v := Conflict(ConflictInput{Mutations: mutations})
	if v == nil || v.Code != ontology.CodeProtocolViolation {
		t.Fatalf("expected CodeProtocolViolation, got %v", v)
	}
}

func TestConflictAllowsDistinctMetricTargets(t *testing.T) {
	mutations := []ontology.Mutation{
		{MetricID: "stress"},
		{MetricID: "capacity"},
	}
	if v := Conflict(ConflictInput{Mutations: mutations}); v != nil {
		t.Fatalf("unexpected violation: %v", v)
	}
}
