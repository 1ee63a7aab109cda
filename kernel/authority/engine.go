// Package authority implements capability delegation and authorization
// checks over the Entity registry. The narrow-interface-over-state pattern
// mirrors native/governance/engine.go's proposalState dependency, scoped
// down to the one collaborator (identity.Manager) authority actually needs.
package authority

import (
	"errors"
	"fmt"
	"sync"

	"governancekernel/kernel/identity"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

var (
	// ErrSelfDelegation is returned when granter == grantee.
	ErrSelfDelegation = errors.New("authority: self-delegation is not permitted")
	// ErrWidensGranter is returned when the delegated capability is not a
	// subset of the granter's own authorized capability set.
	ErrWidensGranter = errors.New("authority: delegation would widen granter's own capability")
	// ErrGranterSignatureInvalid is returned when the granter's signature
	// over the delegation does not verify.
	ErrGranterSignatureInvalid = errors.New("authority: granter signature invalid")
	// ErrDelegationNotFound is returned by revocation of an unknown id.
	ErrDelegationNotFound = errors.New("authority: delegation not found")
)

// Engine evaluates capability grants and authorization queries.
type Engine struct {
	identity *identity.Manager

	mu          sync.RWMutex
	delegations map[string]*ontology.Delegation
	byGrantee   map[string][]string // grantee -> delegation ids
}

// NewEngine constructs an Engine bound to an identity registry.
func NewEngine(identities *identity.Manager) *Engine {
	return &Engine{
		identity:    identities,
		delegations: make(map[string]*ontology.Delegation),
		byGrantee:   make(map[string][]string),
	}
}

// GrantInput bundles the arguments to Grant so the call site reads like the
// spec.md §4.2 signature rather than a long positional list.
type GrantInput struct {
	DelegationID string
	Granter      string
	Grantee      string
	Capability   ontology.Capability
	Jurisdiction string
	Timestamp    ontology.LogicalTimestamp
	Signature    []byte
	ExpiresAt    ontology.LogicalTimestamp
	Limits       map[string]float64
}

// Grant records a delegation after verifying the granter's signature and
// rejecting self-delegation or capability widening.
func (e *Engine) Grant(in GrantInput) (*ontology.Delegation, error) {
	if in.Granter == in.Grantee {
		return nil, ErrSelfDelegation
	}
	granter, ok := e.identity.Get(in.Granter)
	if !ok {
		return nil, fmt.Errorf("authority: grant: unknown granter %q", in.Granter)
	}
	message := fmt.Sprintf("%s:%s:%s:%s:%s", in.DelegationID, in.Granter, in.Grantee, in.Capability, in.Jurisdiction)
	if !primitives.VerifySignature([]byte(message), in.Signature, granter.PublicKey) {
		return nil, ErrGranterSignatureInvalid
	}
	if !granter.Root && !e.authorizedLocked(in.Granter, in.Capability, in.Jurisdiction, in.Timestamp) {
		return nil, ErrWidensGranter
	}

	d := &ontology.Delegation{
		ID:           in.DelegationID,
		Granter:      in.Granter,
		Grantee:      in.Grantee,
		Capability:   in.Capability,
		Jurisdiction: in.Jurisdiction,
		ExpiresAt:    in.ExpiresAt,
		Limits:       in.Limits,
		Signature:    in.Signature,
		GrantedAt:    in.Timestamp,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.delegations[d.ID] = d.Clone()
	e.byGrantee[in.Grantee] = append(e.byGrantee[in.Grantee], d.ID)
	return d.Clone(), nil
}

// Revoke removes a delegation by id.
func (e *Engine) Revoke(delegationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.delegations[delegationID]
	if !ok {
		return ErrDelegationNotFound
	}
	delete(e.delegations, delegationID)
	ids := e.byGrantee[d.Grantee]
	for i, id := range ids {
		if id == delegationID {
			e.byGrantee[d.Grantee] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Authorized reports whether actor may exercise capability within the
// optional jurisdiction context. Root entities bypass delegation lookup
// entirely. limits, when non-nil, constrains numeric keys (e.g. "spend")
// against the matching delegation's declared Limits.
func (e *Engine) Authorized(actor string, capability ontology.Capability, jurisdiction string, now ontology.LogicalTimestamp, requested map[string]float64) bool {
	if ent, ok := e.identity.Get(actor); ok && ent.Root {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authorizedLockedLimits(actor, capability, jurisdiction, now, requested)
}

// authorizedLocked checks authorization without evaluating limits, used
// internally by Grant to confirm a granter cannot widen its own set.
func (e *Engine) authorizedLocked(actor string, capability ontology.Capability, jurisdiction string, now ontology.LogicalTimestamp) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.authorizedLockedLimits(actor, capability, jurisdiction, now, nil)
}

func (e *Engine) authorizedLockedLimits(actor string, capability ontology.Capability, jurisdiction string, now ontology.LogicalTimestamp, requested map[string]float64) bool {
	for _, id := range e.byGrantee[actor] {
		d := e.delegations[id]
		if d == nil {
			continue
		}
		if d.Expired(now) {
			continue
		}
		if !d.Capability.Matches(capability) {
			continue
		}
		if d.Jurisdiction != "" && jurisdiction != "" && d.Jurisdiction != jurisdiction {
			continue
		}
		if !withinLimits(d.Limits, requested) {
			continue
		}
		return true
	}
	return false
}

func withinLimits(granted map[string]float64, requested map[string]float64) bool {
	if len(requested) == 0 {
		return true
	}
	for key, want := range requested {
		limit, ok := granted[key]
		if !ok {
			continue // no cap declared for this dimension
		}
		if want > limit {
			return false
		}
	}
	return true
}
