package authority

import (
	"errors"
	"fmt"
	"testing"

	"governancekernel/kernel/identity"
	"governancekernel/kernel/ontology"
	"governancekernel/kernel/primitives"
)

func registerEntity(t *testing.T, m *identity.Manager, id string, root bool) (*ontology.Entity, primitives.KeyPair) {
	t.Helper()
	kp, err := primitives.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	entity := &ontology.Entity{ID: id, PublicKey: kp.Public, Status: ontology.EntityActive, Root: root}
	if err := m.Register(entity); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return entity, *kp
}

func signGrant(kp primitives.KeyPair, in GrantInput) []byte {
	message := fmt.Sprintf("%s:%s:%s:%s:%s", in.DelegationID, in.Granter, in.Grantee, in.Capability, in.Jurisdiction)
	return primitives.Sign(kp.Private, []byte(message))
}

func TestGrantFromRootSucceeds(t *testing.T) {
	identities := identity.NewManager()
	_, granterKP := registerEntity(t, identities, "root-office", true)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
	}
	in.Signature = signGrant(granterKP, in)

	d, err := engine.Grant(in)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if d.ID != "d1" {
		t.Fatalf("unexpected delegation id: %s", d.ID)
	}
	if !engine.Authorized("analyst", ontology.Capability("governance.metric.update"), "", ontology.LogicalTimestamp{}, nil) {
		t.Fatal("expected grantee to be authorized after grant")
	}
}

func TestGrantRejectsSelfDelegation(t *testing.T) {
	identities := identity.NewManager()
	_, granterKP := registerEntity(t, identities, "root-office", true)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "root-office",
		Capability:   ontology.Capability("governance.metric.update"),
	}
	in.Signature = signGrant(granterKP, in)

	_, err := engine.Grant(in)
	if !errors.Is(err, ErrSelfDelegation) {
		t.Fatalf("expected ErrSelfDelegation, got %v", err)
	}
}

func TestGrantRejectsInvalidSignature(t *testing.T) {
	identities := identity.NewManager()
	registerEntity(t, identities, "root-office", true)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
		Signature:    []byte("not-a-real-signature-at-all-000000000000000000000000000000000000"),
	}

	_, err := engine.Grant(in)
	if !errors.Is(err, ErrGranterSignatureInvalid) {
		t.Fatalf("expected ErrGranterSignatureInvalid, got %v", err)
	}
}

func TestGrantRejectsWideningWithRealSignature(t *testing.T) {
	identities := identity.NewManager()
	_, nonRootKP := registerEntity(t, identities, "non-root", false)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "non-root",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
	}
	in.Signature = signGrant(nonRootKP, in)

	_, err := engine.Grant(in)
	if !errors.Is(err, ErrWidensGranter) {
		t.Fatalf("expected ErrWidensGranter, got %v", err)
	}
}

func TestRevokeRemovesDelegation(t *testing.T) {
	identities := identity.NewManager()
	_, granterKP := registerEntity(t, identities, "root-office", true)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
	}
	in.Signature = signGrant(granterKP, in)
	if _, err := engine.Grant(in); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if err := engine.Revoke("d1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if engine.Authorized("analyst", ontology.Capability("governance.metric.update"), "", ontology.LogicalTimestamp{}, nil) {
		t.Fatal("expected revoked delegation to no longer authorize")
	}
}

func TestRevokeUnknownDelegationFails(t *testing.T) {
	identities := identity.NewManager()
	engine := NewEngine(identities)
	if err := engine.Revoke("missing"); !errors.Is(err, ErrDelegationNotFound) {
		t.Fatalf("expected ErrDelegationNotFound, got %v", err)
	}
}

func TestAuthorizedRespectsExpiry(t *testing.T) {
	identities := identity.NewManager()
	_, granterKP := registerEntity(t, identities, "root-office", true)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
		ExpiresAt:    ontology.LogicalTimestamp{Physical: 100},
	}
	in.Signature = signGrant(granterKP, in)
	if _, err := engine.Grant(in); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !engine.Authorized("analyst", ontology.Capability("governance.metric.update"), "", ontology.LogicalTimestamp{Physical: 50}, nil) {
		t.Fatal("expected authorization before expiry")
	}
	if engine.Authorized("analyst", ontology.Capability("governance.metric.update"), "", ontology.LogicalTimestamp{Physical: 200}, nil) {
		t.Fatal("expected authorization to lapse after expiry")
	}
}

func TestAuthorizedRespectsLimits(t *testing.T) {
	identities := identity.NewManager()
	_, granterKP := registerEntity(t, identities, "root-office", true)
	registerEntity(t, identities, "analyst", false)

	engine := NewEngine(identities)
	in := GrantInput{
		DelegationID: "d1",
		Granter:      "root-office",
		Grantee:      "analyst",
		Capability:   ontology.Capability("governance.metric.update"),
		Limits:       map[string]float64{"spend": 100},
	}
	in.Signature = signGrant(granterKP, in)
	if _, err := engine.Grant(in); err != nil {
		t.Fatalf("grant: %v", err)
	}

	cap := ontology.Capability("governance.metric.update")
	if !engine.Authorized("analyst", cap, "", ontology.LogicalTimestamp{}, map[string]float64{"spend": 50}) {
		t.Fatal("expected request within limit to be authorized")
	}
	if engine.Authorized("analyst", cap, "", ontology.LogicalTimestamp{}, map[string]float64{"spend": 150}) {
		t.Fatal("expected request exceeding limit to be rejected")
	}
}

func TestRootEntityBypassesDelegationLookup(t *testing.T) {
	identities := identity.NewManager()
	registerEntity(t, identities, "root-office", true)

	engine := NewEngine(identities)
	if !engine.Authorized("root-office", ontology.Capability("anything.at.all"), "", ontology.LogicalTimestamp{}, nil) {
		t.Fatal("expected root entity to bypass delegation checks entirely")
	}
}
