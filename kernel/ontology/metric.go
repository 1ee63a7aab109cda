package ontology

// MetricType classifies the stored representation and update semantics of a
// metric.
type MetricType string

const (
	MetricCounter MetricType = "COUNTER"
	MetricGauge   MetricType = "GAUGE"
	MetricBoolean MetricType = "BOOLEAN"
)

// Validator accepts or rejects a candidate value for a metric definition
// beyond the baseline type check (e.g. a range constraint).
type Validator func(value any) bool

// MetricDefinition is the registered schema for one metric id.
type MetricDefinition struct {
	ID        string
	Type      MetricType
	Unit      string
	Validator Validator
}

// Mutation is a single (metricId, value) pair. Value is a scalar: float64,
// bool, or string. Mode governs how Value combines with the metric's
// current state; see MutationMode.
type Mutation struct {
	MetricID string
	Value    any
	Mode     MutationMode
}
