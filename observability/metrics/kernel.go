// Package metrics exposes the kernel's Prometheus instrumentation as a
// lazily-constructed singleton registry, grounded on the teacher's
// metrics.Potso() sync.Once pattern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// KernelMetrics is the process-wide set of counters and gauges describing
// guard, commit, and replay activity.
type KernelMetrics struct {
	attemptsTotal      *prometheus.CounterVec
	guardRejections    *prometheus.CounterVec
	commitDuration     prometheus.Histogram
	budgetConsumed     prometheus.Gauge
	lifecycleState     *prometheus.GaugeVec
	protocolSideEffect *prometheus.CounterVec
	replayDuration     prometheus.Histogram
	auditChainLength   prometheus.Gauge
}

var (
	once     sync.Once
	registry *KernelMetrics
)

// Kernel returns the process-wide KernelMetrics, constructing and
// registering it with the default Prometheus registry on first call.
func Kernel() *KernelMetrics {
	once.Do(func() {
		registry = &KernelMetrics{
			attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "governancekernel_attempts_total",
				Help: "Count of submitted attempts by terminal status.",
			}, []string{"status"}),
			guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "governancekernel_guard_rejections_total",
				Help: "Count of attempts rejected by the guard pipeline, by violation code.",
			}, []string{"code"}),
			commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "governancekernel_commit_duration_seconds",
				Help:    "Time spent in the commit critical section.",
				Buckets: prometheus.DefBuckets,
			}),
			budgetConsumed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "governancekernel_budget_consumed",
				Help: "Cumulative budget consumed by committed attempts.",
			}),
			lifecycleState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "governancekernel_lifecycle_state",
				Help: "1 for the kernel's current lifecycle state, 0 otherwise.",
			}, []string{"state"}),
			protocolSideEffect: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "governancekernel_protocol_side_effects_total",
				Help: "Count of protocol-triggered mutations applied during commit, by protocol id.",
			}, []string{"protocol"}),
			replayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "governancekernel_replay_duration_seconds",
				Help:    "Time spent replaying an evidence log.",
				Buckets: prometheus.DefBuckets,
			}),
			auditChainLength: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "governancekernel_audit_chain_length",
				Help: "Number of entries currently in the evidence chain.",
			}),
		}
		prometheus.MustRegister(
			registry.attemptsTotal,
			registry.guardRejections,
			registry.commitDuration,
			registry.budgetConsumed,
			registry.lifecycleState,
			registry.protocolSideEffect,
			registry.replayDuration,
			registry.auditChainLength,
		)
	})
	return registry
}

func (m *KernelMetrics) ObserveAttempt(status string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(status).Inc()
}

func (m *KernelMetrics) ObserveGuardRejection(code string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(labelOrUnknown(code)).Inc()
}

func (m *KernelMetrics) ObserveCommitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.commitDuration.Observe(seconds)
}

func (m *KernelMetrics) SetBudgetConsumed(consumed uint64) {
	if m == nil {
		return
	}
	m.budgetConsumed.Set(float64(consumed))
}

func (m *KernelMetrics) SetLifecycleState(state string, states []string) {
	if m == nil {
		return
	}
	for _, candidate := range states {
		value := 0.0
		if candidate == state {
			value = 1.0
		}
		m.lifecycleState.WithLabelValues(candidate).Set(value)
	}
}

func (m *KernelMetrics) ObserveProtocolSideEffect(protocolID string) {
	if m == nil {
		return
	}
	m.protocolSideEffect.WithLabelValues(labelOrUnknown(protocolID)).Inc()
}

func (m *KernelMetrics) ObserveReplayDuration(seconds float64) {
	if m == nil {
		return
	}
	m.replayDuration.Observe(seconds)
}

func (m *KernelMetrics) SetAuditChainLength(length int) {
	if m == nil {
		return
	}
	m.auditChainLength.Set(float64(length))
}

func labelOrUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
