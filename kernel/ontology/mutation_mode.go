package ontology

// MutationMode distinguishes whether a Mutation's Value is the absolute
// new value of the metric (SET) or a delta to apply to the current value
// (INCREMENT). The primary mutation carried by an Action's payload is
// always SET — "applied as declared by the payload" per spec.md §9 — while
// a Protocol's MUTATE_METRIC execution chooses its mode from the metric
// type and its Explicit flag, per spec.md §4.6.
type MutationMode string

const (
	MutationSet       MutationMode = "SET"
	MutationIncrement MutationMode = "INCREMENT"
)
