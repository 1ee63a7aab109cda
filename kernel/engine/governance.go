package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"governancekernel/kernel/authority"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

// Governance operations mutate identity/authority directly rather than a
// metric, so they bypass the Attempt pipeline: each checks the caller's
// GOVERNANCE:<verb> capability, performs the structural change, and
// appends its own evidence signed by the Kernel's own key — resolving
// spec.md §9's placeholder-signature ambiguity by requiring governance
// evidence to carry real cryptographic provenance instead of "GOV"/"0:0"
// sentinels.

// CreateIdentity registers a new Entity after checking the caller holds
// GOVERNANCE:IDENTITY.CREATE.
func (k *Kernel) CreateIdentity(ctx context.Context, caller string, entity *ontology.Entity, at ontology.LogicalTimestamp) (*ontology.Entity, *ontology.Violation) {
	if v := k.requireActive(); v != nil {
		return nil, v
	}
	if !k.authority.Authorized(caller, "GOVERNANCE:IDENTITY.CREATE", "", at, nil) {
		return nil, ontology.NewViolation(ontology.CodeAuthorityNotFound, fmt.Sprintf("caller %q lacks GOVERNANCE:IDENTITY.CREATE", caller), nil)
	}

	k.commitMu.Lock()
	defer k.commitMu.Unlock()

	action := k.buildGovernanceAction(fmt.Sprintf("gov-create-%s", entity.ID), caller, at)
	if err := k.identity.Register(entity); err != nil {
		return nil, k.rejectGovernance(ctx, action, ontology.CodeDuplicateEntity, err.Error())
	}
	registered, _ := k.identity.Get(entity.ID)
	k.recordGovernance(ctx, action)
	return registered, nil
}

// GrantDelegation records a capability delegation after checking the
// caller holds GOVERNANCE:DELEGATION.GRANT.
func (k *Kernel) GrantDelegation(ctx context.Context, caller string, in authority.GrantInput) (*ontology.Delegation, *ontology.Violation) {
	if v := k.requireActive(); v != nil {
		return nil, v
	}
	if !k.authority.Authorized(caller, "GOVERNANCE:DELEGATION.GRANT", "", in.Timestamp, nil) {
		return nil, ontology.NewViolation(ontology.CodeAuthorityNotFound, fmt.Sprintf("caller %q lacks GOVERNANCE:DELEGATION.GRANT", caller), nil)
	}

	k.commitMu.Lock()
	defer k.commitMu.Unlock()

	action := k.buildGovernanceAction(fmt.Sprintf("gov-grant-%s", in.DelegationID), caller, in.Timestamp)
	delegation, err := k.authority.Grant(in)
	if err != nil {
		return nil, k.rejectGovernance(ctx, action, grantErrorCode(err), err.Error())
	}
	k.recordGovernance(ctx, action)
	return delegation, nil
}

// RevokeIdentity transitions an Entity to REVOKED after checking the
// caller holds GOVERNANCE:IDENTITY.REVOKE.
func (k *Kernel) RevokeIdentity(ctx context.Context, caller string, entityID string, at ontology.LogicalTimestamp) *ontology.Violation {
	if v := k.requireActive(); v != nil {
		return v
	}
	if !k.authority.Authorized(caller, "GOVERNANCE:IDENTITY.REVOKE", "", at, nil) {
		return ontology.NewViolation(ontology.CodeAuthorityNotFound, fmt.Sprintf("caller %q lacks GOVERNANCE:IDENTITY.REVOKE", caller), nil)
	}

	k.commitMu.Lock()
	defer k.commitMu.Unlock()

	action := k.buildGovernanceAction(fmt.Sprintf("gov-revoke-%s", entityID), caller, at)
	if err := k.identity.Revoke(entityID, at); err != nil {
		return k.rejectGovernance(ctx, action, ontology.CodeUnknownEntity, err.Error())
	}
	k.recordGovernance(ctx, action)
	return nil
}

// buildGovernanceAction wraps a governance intent as an Action so it can
// flow through the same Evidence shape as metric-mutating Actions,
// signed by the Kernel's own key rather than a placeholder string.
func (k *Kernel) buildGovernanceAction(actionID string, caller string, at ontology.LogicalTimestamp) *ontology.Action {
	action := &ontology.Action{
		ActionID:  actionID,
		Initiator: caller,
		Payload:   ontology.ActionPayload{},
		Timestamp: at,
	}
	message, err := action.SignedMessage()
	if err != nil {
		return action
	}
	action.Signature = hex.EncodeToString(primitives.Sign(k.signingKey.Private, []byte(message)))
	return action
}

func (k *Kernel) recordGovernance(ctx context.Context, action *ontology.Action) {
	if _, err := k.auditLog.Append(ctx, action, ontology.EvidenceSuccess, nil); err != nil {
		k.violate()
	}
}

func (k *Kernel) rejectGovernance(ctx context.Context, action *ontology.Action, code ontology.Code, message string) *ontology.Violation {
	metadata := map[string]string{"code": string(code), "violation": message}
	if _, err := k.auditLog.Append(ctx, action, ontology.EvidenceReject, metadata); err != nil {
		k.violate()
	}
	return ontology.NewViolation(code, message, nil)
}

// grantErrorCode maps an authority.Grant failure to the Violation code it
// should surface as, rather than reporting every grant failure as
// SELF_DELEGATION regardless of which check actually rejected it.
func grantErrorCode(err error) ontology.Code {
	switch {
	case errors.Is(err, authority.ErrSelfDelegation):
		return ontology.CodeSelfDelegation
	case errors.Is(err, authority.ErrWidensGranter):
		return ontology.CodeOverscopeAttempt
	case errors.Is(err, authority.ErrGranterSignatureInvalid):
		return ontology.CodeSignatureInvalid
	default:
		return ontology.CodeAuthorityNotFound
	}
}
