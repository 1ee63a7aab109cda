package ontology

import "testing"

func TestProtocolLifecycleTransitions(t *testing.T) {
	if !ProtocolProposed.CanTransitionTo(ProtocolRatified) {
		t.Fatal("expected PROPOSED -> RATIFIED to be legal")
	}
	if ProtocolProposed.CanTransitionTo(ProtocolActive) {
		t.Fatal("expected PROPOSED -> ACTIVE to skip RATIFIED illegally")
	}
	if !ProtocolRatified.CanTransitionTo(ProtocolActive) {
		t.Fatal("expected RATIFIED -> ACTIVE to be legal")
	}
	if !ProtocolActive.CanTransitionTo(ProtocolDeprecated) {
		t.Fatal("expected ACTIVE -> DEPRECATED to be legal")
	}
	if !ProtocolActive.CanTransitionTo(ProtocolRevoked) {
		t.Fatal("expected ACTIVE -> REVOKED to be legal")
	}
	if ProtocolDeprecated.CanTransitionTo(ProtocolActive) {
		t.Fatal("expected DEPRECATED to have no outgoing transitions")
	}
}

func TestProtocolMutatedMetrics(t *testing.T) {
	p := &Protocol{
		Execution: []Execution{
			{MetricID: "stress"},
			{MetricID: "capacity"},
			{MetricID: "stress"},
		},
	}
	mutated := p.MutatedMetrics()
	if len(mutated) != 2 {
		t.Fatalf("expected 2 distinct metric ids, got %d", len(mutated))
	}
	if _, ok := mutated["stress"]; !ok {
		t.Fatal("expected stress in mutated set")
	}
	if _, ok := mutated["capacity"]; !ok {
		t.Fatal("expected capacity in mutated set")
	}
}

func TestProtocolCloneIsIndependent(t *testing.T) {
	original := &Protocol{
		Preconditions: []Precondition{{Kind: PreconditionAlways}},
		Execution:     []Execution{{MetricID: "stress"}},
	}
	clone := original.Clone()
	clone.Preconditions[0].Kind = PreconditionTimeWindow
	clone.Execution[0].MetricID = "capacity"
	if original.Preconditions[0].Kind != PreconditionAlways {
		t.Fatal("expected clone mutation not to affect original Preconditions")
	}
	if original.Execution[0].MetricID != "stress" {
		t.Fatal("expected clone mutation not to affect original Execution")
	}
}
