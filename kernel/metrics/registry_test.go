package metrics

import (
	"errors"
	"testing"

	"governancekernel/kernel/ontology"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	def := ontology.MetricDefinition{ID: "stress", Type: ontology.MetricGauge, Unit: "ratio"}
	if err := r.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, ok := r.Get("stress")
	if !ok {
		t.Fatal("expected registered metric to be found")
	}
	if got.Unit != "ratio" {
		t.Fatalf("unexpected unit: %s", got.Unit)
	}
}

func TestRegisterIsIdempotentForIdenticalType(t *testing.T) {
	r := NewRegistry()
	def := ontology.MetricDefinition{ID: "stress", Type: ontology.MetricGauge}
	if err := r.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(def); err != nil {
		t.Fatalf("expected re-registering the same type to be a no-op, got %v", err)
	}
}

func TestRegisterRejectsTypeRedefinition(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ontology.MetricDefinition{ID: "stress", Type: ontology.MetricGauge}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(ontology.MetricDefinition{ID: "stress", Type: ontology.MetricCounter})
	if !errors.Is(err, ErrMetricRedefined) {
		t.Fatalf("expected ErrMetricRedefined, got %v", err)
	}
}

func TestGetUnknownMetricFails(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected unknown metric lookup to fail")
	}
}

func TestAllReturnsEveryDefinition(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ontology.MetricDefinition{ID: "stress", Type: ontology.MetricGauge}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(ontology.MetricDefinition{ID: "capacity", Type: ontology.MetricCounter}); err != nil {
		t.Fatalf("register: %v", err)
	}
	all := r.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(all))
	}
}
