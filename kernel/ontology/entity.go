package ontology

// EntityType tags the kind of principal an Entity represents.
type EntityType string

const (
	EntityActor    EntityType = "ACTOR"
	EntityOffice   EntityType = "OFFICE"
	EntityAsset    EntityType = "ASSET"
	EntitySystem   EntityType = "SYSTEM"
	EntityAbstract EntityType = "ABSTRACT"
)

// EntityStatus tracks an Entity's position in its one-way lifecycle:
// ACTIVE and SUSPENDED may move between each other, but once REVOKED or
// DISSOLVED an entity can never return to ACTIVE.
type EntityStatus string

const (
	EntityActive    EntityStatus = "ACTIVE"
	EntitySuspended EntityStatus = "SUSPENDED"
	EntityDissolved EntityStatus = "DISSOLVED"
	EntityRevoked   EntityStatus = "REVOKED"
)

// Entity is a registered principal capable of initiating Actions or holding
// delegated Capabilities.
type Entity struct {
	ID             string
	PublicKey      []byte
	Type           EntityType
	Status         EntityStatus
	CreatedAt      LogicalTimestamp
	RevokedAt      LogicalTimestamp
	IdentityProof  string
	Root           bool
	Metadata       map[string]string
}

// Clone returns a defensive copy so callers can mutate the result without
// aliasing registry-owned state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := *e
	if e.PublicKey != nil {
		clone.PublicKey = append([]byte(nil), e.PublicKey...)
	}
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// CanTransitionTo reports whether moving from e's current status to next is
// a legal lifecycle edge.
func (e *Entity) CanTransitionTo(next EntityStatus) bool {
	if e.Status == EntityRevoked || e.Status == EntityDissolved {
		return false
	}
	switch next {
	case EntityActive, EntitySuspended, EntityDissolved, EntityRevoked:
		return true
	default:
		return false
	}
}
