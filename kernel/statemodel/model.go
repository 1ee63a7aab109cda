// Package statemodel implements the event-sourced metric store and its
// snapshot chain. The prefixed-key-value-store idiom and atomic-apply
// discipline are grounded on core/state/manager.go and
// core/state_transition.go's build-then-apply pattern.
package statemodel

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"governancekernel/kernel/metrics"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

// Model holds the current value per metric and the append-only snapshot
// chain. Reads (Get, GetSnapshotChain, GetHistory) may run concurrently
// with a commit; they observe the tip published by the most recently
// completed ApplyTrusted, never a partially-applied mutation set, because
// the tip is swapped with a single atomic pointer store.
type Model struct {
	registry *metrics.Registry

	// commitMu serializes ApplyTrusted calls — the kernel's single-writer
	// discipline lives here, one level below the Kernel's own commit lock,
	// so the state model is safe to reuse outside the kernel (replay,
	// tests) without relying on an external caller to serialize it.
	commitMu sync.Mutex

	tip   atomic.Pointer[ontology.StateSnapshot]
	chain []*ontology.StateSnapshot

	historyMu sync.RWMutex
	history   map[string][]HistoryRecord
}

// HistoryRecord is one value-change entry for a metric.
type HistoryRecord struct {
	Value      any
	Timestamp  ontology.LogicalTimestamp
	Actor      string
	EvidenceID string
}

// NewModel constructs a Model seeded with a genesis snapshot (version 0,
// zero previous hash, no metrics).
func NewModel(registry *metrics.Registry) *Model {
	m := &Model{
		registry: registry,
		history:  make(map[string][]HistoryRecord),
	}
	genesis := &ontology.StateSnapshot{
		Version:      0,
		Metrics:      map[string]ontology.MetricValue{},
		PreviousHash: primitives.ZeroDigest.Hex(),
	}
	genesis.Hash = hashSnapshot(genesis)
	m.tip.Store(genesis)
	m.chain = append(m.chain, genesis)
	return m
}

// Get returns the current value of metricId, or (nil, false) if unset.
func (m *Model) Get(metricID string) (any, bool) {
	tip := m.tip.Load()
	mv, ok := tip.Metrics[metricID]
	if !ok {
		return nil, false
	}
	return mv.Value, true
}

// ValidateMutation reports whether mut is admissible against the current
// tip: the metric must be registered, its validator (if any) must accept
// the raw value, the computed resulting value must be finite for numeric
// types, COUNTER results may not go negative, and BOOLEAN values must be
// actual bools.
func (m *Model) ValidateMutation(mut ontology.Mutation) *ontology.Violation {
	_, _, violation := m.resolve(mut)
	return violation
}

// resolve computes the resulting stored value for mut against the current
// tip and validates it, without mutating any state.
func (m *Model) resolve(mut ontology.Mutation) (ontology.MetricDefinition, any, *ontology.Violation) {
	def, ok := m.registry.Get(mut.MetricID)
	if !ok {
		return def, nil, ontology.NewViolation(ontology.CodeMissingMetricID, fmt.Sprintf("metric %q is not registered", mut.MetricID), nil)
	}
	if def.Validator != nil && !def.Validator(mut.Value) {
		return def, nil, ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("value rejected by validator for metric %q", mut.MetricID), nil)
	}

	tip := m.tip.Load()
	current, hasCurrent := tip.Metrics[mut.MetricID]

	switch def.Type {
	case ontology.MetricBoolean:
		b, ok := mut.Value.(bool)
		if !ok {
			return def, nil, ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("metric %q requires a boolean value", mut.MetricID), nil)
		}
		return def, b, nil

	case ontology.MetricCounter, ontology.MetricGauge:
		delta, err := toFloat(mut.Value)
		if err != nil {
			return def, nil, ontology.NewViolation(ontology.CodeNonFiniteMetric, err.Error(), nil)
		}
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return def, nil, ontology.NewViolation(ontology.CodeNonFiniteMetric, fmt.Sprintf("metric %q value is not finite", mut.MetricID), nil)
		}
		result := delta
		if mut.Mode == ontology.MutationIncrement {
			base := 0.0
			if hasCurrent {
				base, err = toFloat(current.Value)
				if err != nil {
					return def, nil, ontology.NewViolation(ontology.CodeNonFiniteMetric, err.Error(), nil)
				}
			}
			result = base + delta
		}
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return def, nil, ontology.NewViolation(ontology.CodeNonFiniteMetric, fmt.Sprintf("metric %q resulting value is not finite", mut.MetricID), nil)
		}
		if def.Type == ontology.MetricCounter && result < 0 {
			return def, nil, ontology.NewViolation(ontology.CodeNegativeBalance, fmt.Sprintf("metric %q would go negative", mut.MetricID), nil)
		}
		return def, result, nil

	default:
		return def, nil, ontology.NewViolation(ontology.CodeInvalidIDFormat, fmt.Sprintf("metric %q has unknown type %q", mut.MetricID, def.Type), nil)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("statemodel: value %v is not numeric", v)
	}
}

// ApplyTrusted validates and then atomically applies every mutation
// together, advancing the version and appending exactly one new snapshot.
// If any mutation fails validation, none are applied — the chain tip is
// untouched.
func (m *Model) ApplyTrusted(mutations []ontology.Mutation, timestamp ontology.LogicalTimestamp, actor string, attemptID string, evidenceID string) (*ontology.StateSnapshot, *ontology.Violation) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	type resolved struct {
		metricID string
		value    any
	}
	results := make([]resolved, 0, len(mutations))
	for _, mut := range mutations {
		_, value, violation := m.resolve(mut)
		if violation != nil {
			return nil, violation
		}
		results = append(results, resolved{metricID: mut.MetricID, value: value})
	}

	tip := m.tip.Load()
	newMetrics := make(map[string]ontology.MetricValue, len(tip.Metrics)+len(results))
	for k, v := range tip.Metrics {
		newMetrics[k] = v
	}
	for _, r := range results {
		newMetrics[r.metricID] = ontology.MetricValue{
			Value:      r.value,
			UpdatedAt:  timestamp,
			UpdatedBy:  actor,
			EvidenceID: evidenceID,
		}
	}

	next := &ontology.StateSnapshot{
		Version:      tip.Version + 1,
		ActionID:     attemptID,
		Timestamp:    timestamp,
		Metrics:      newMetrics,
		PreviousHash: tip.Hash,
	}
	next.Hash = hashSnapshot(next)

	m.historyMu.Lock()
	for _, r := range results {
		m.history[r.metricID] = append(m.history[r.metricID], HistoryRecord{
			Value:      r.value,
			Timestamp:  timestamp,
			Actor:      actor,
			EvidenceID: evidenceID,
		})
	}
	m.historyMu.Unlock()

	m.chain = append(m.chain, next)
	m.tip.Store(next)
	return next.Clone(), nil
}

// GetSnapshotChain returns the ordered chain starting from genesis.
func (m *Model) GetSnapshotChain() []*ontology.StateSnapshot {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()
	out := make([]*ontology.StateSnapshot, len(m.chain))
	for i, s := range m.chain {
		out[i] = s.Clone()
	}
	return out
}

// GetTip returns the most recently committed snapshot.
func (m *Model) GetTip() *ontology.StateSnapshot {
	return m.tip.Load().Clone()
}

// GetHistory returns the value-change sequence for metricID.
func (m *Model) GetHistory(metricID string) []HistoryRecord {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()
	src := m.history[metricID]
	out := make([]HistoryRecord, len(src))
	copy(out, src)
	return out
}

func hashSnapshot(s *ontology.StateSnapshot) string {
	view := struct {
		Version      uint64
		ActionID     string
		Timestamp    ontology.LogicalTimestamp
		Metrics      map[string]ontology.MetricValue
		PreviousHash string
	}{s.Version, s.ActionID, s.Timestamp, s.Metrics, s.PreviousHash}
	digest, err := primitives.HashCanonical(view)
	if err != nil {
		// Canonical encoding of this closed, JSON-marshalable struct cannot
		// fail; a panic here indicates a programming error, not bad input.
		panic(fmt.Sprintf("statemodel: hash snapshot: %v", err))
	}
	return digest.Hex()
}
