package engine

import (
	"fmt"

	"governancekernel/kernel/ontology"
	obsmetrics "governancekernel/observability/metrics"
)

var lifecycleStates = []string{
	string(LifecycleUninitialized),
	string(LifecycleConstituted),
	string(LifecycleActive),
	string(LifecycleSuspended),
	string(LifecycleViolated),
	string(LifecycleRecovered),
	string(LifecycleDissolved),
}

// Lifecycle tracks the Kernel's own position in its process-wide state
// machine: UNINITIALIZED -> CONSTITUTED -> ACTIVE -> (SUSPENDED|VIOLATED)
// -> RECOVERED -> DISSOLVED. Every pipeline operation except Boot fails
// with KERNEL_NOT_ACTIVE while the kernel is not ACTIVE.
type Lifecycle string

const (
	LifecycleUninitialized Lifecycle = "UNINITIALIZED"
	LifecycleConstituted   Lifecycle = "CONSTITUTED"
	LifecycleActive        Lifecycle = "ACTIVE"
	LifecycleSuspended     Lifecycle = "SUSPENDED"
	LifecycleViolated      Lifecycle = "VIOLATED"
	LifecycleRecovered     Lifecycle = "RECOVERED"
	LifecycleDissolved     Lifecycle = "DISSOLVED"
)

func (l Lifecycle) canTransitionTo(next Lifecycle) bool {
	switch l {
	case LifecycleUninitialized:
		return next == LifecycleConstituted
	case LifecycleConstituted:
		return next == LifecycleActive
	case LifecycleActive:
		return next == LifecycleSuspended || next == LifecycleViolated || next == LifecycleDissolved
	case LifecycleSuspended:
		return next == LifecycleActive || next == LifecycleDissolved
	case LifecycleViolated:
		return next == LifecycleRecovered || next == LifecycleDissolved
	case LifecycleRecovered:
		return next == LifecycleActive || next == LifecycleDissolved
	default:
		return false
	}
}

func (k *Kernel) transitionLifecycle(next Lifecycle) error {
	k.lifecycleMu.Lock()
	defer k.lifecycleMu.Unlock()
	if !k.lifecycle.canTransitionTo(next) {
		return fmt.Errorf("engine: cannot transition kernel from %s to %s", k.lifecycle, next)
	}
	k.lifecycle = next
	obsmetrics.Kernel().SetLifecycleState(string(next), lifecycleStates)
	return nil
}

// Lifecycle returns the kernel's current lifecycle state.
func (k *Kernel) Lifecycle() Lifecycle {
	k.lifecycleMu.RLock()
	defer k.lifecycleMu.RUnlock()
	return k.lifecycle
}

// Boot transitions CONSTITUTED -> ACTIVE, the only operation legal before
// the kernel is active.
func (k *Kernel) Boot() error {
	return k.transitionLifecycle(LifecycleActive)
}

// Suspend transitions ACTIVE -> SUSPENDED, a reversible administrative
// pause distinct from the fatal VIOLATED state.
func (k *Kernel) Suspend() error {
	return k.transitionLifecycle(LifecycleSuspended)
}

// Resume transitions SUSPENDED or RECOVERED back to ACTIVE.
func (k *Kernel) Resume() error {
	return k.transitionLifecycle(LifecycleActive)
}

// Recover transitions VIOLATED -> RECOVERED, the explicit operator
// acknowledgment required before a kernel that hit INTEGRITY_BREACH may
// resume serving the pipeline via a subsequent Resume.
func (k *Kernel) Recover() error {
	return k.transitionLifecycle(LifecycleRecovered)
}

// Dissolve is the terminal transition, allowed from ACTIVE, SUSPENDED,
// VIOLATED and RECOVERED.
func (k *Kernel) Dissolve() error {
	return k.transitionLifecycle(LifecycleDissolved)
}

func (k *Kernel) violate() {
	k.lifecycleMu.Lock()
	defer k.lifecycleMu.Unlock()
	if k.lifecycle.canTransitionTo(LifecycleViolated) {
		k.lifecycle = LifecycleViolated
		obsmetrics.Kernel().SetLifecycleState(string(LifecycleViolated), lifecycleStates)
	}
}

func (k *Kernel) requireActive() *ontology.Violation {
	if k.Lifecycle() != LifecycleActive {
		return ontology.NewViolation(ontology.CodeKernelNotActive, fmt.Sprintf("kernel is %s, not ACTIVE", k.Lifecycle()), nil)
	}
	return nil
}
