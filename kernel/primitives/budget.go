package primitives

import "sync"

// Budget is a caller-owned spending cap on commit cost. Budget instances
// are passed by reference to commit; Consume mutates them exactly once
// per successful commit, never on a guard rejection or an aborted dry-run.
type Budget struct {
	mu       sync.Mutex
	Limit    uint64
	Consumed uint64
}

// NewBudget constructs a Budget with the given spending limit.
func NewBudget(limit uint64) *Budget {
	return &Budget{Limit: limit}
}

// Remaining returns the unconsumed portion of the limit.
func (b *Budget) Remaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Consumed >= b.Limit {
		return 0
	}
	return b.Limit - b.Consumed
}

// CanAfford reports whether cost fits within the remaining budget.
func (b *Budget) CanAfford(cost uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Limit-b.Consumed >= cost
}

// Consume deducts cost from the remaining budget. Callers must have
// already confirmed CanAfford; Consume does not itself reject overspend,
// matching the commit pipeline's separation of the Budget guard check
// (step 1) from the mutation (step 6).
func (b *Budget) Consume(cost uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Consumed += cost
}
