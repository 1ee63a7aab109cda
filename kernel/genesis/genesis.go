// Package genesis loads the bootstrap document a kernel is constituted
// from: the founding entities, delegated capabilities and metric
// definitions. The document carries no protocols. The YAML-decode-file
// shape is grounded on
// services/governd/config.Load's yaml.NewDecoder(file) pattern.
package genesis

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"governancekernel/kernel/authority"
	"governancekernel/kernel/identity"
	"governancekernel/kernel/metrics"
	"governancekernel/kernel/ontology"
)

// Entity is the YAML shape of a founding Entity. Root entities bypass
// delegation checks entirely, the mechanism by which genesis seeds the
// first capability grants without a pre-existing granter.
type Entity struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"`
	PublicKey string `yaml:"publicKey"` // hex-encoded
	Root      bool   `yaml:"root"`
}

// Delegation is the YAML shape of a founding capability grant. Signature
// is the granter's hex-encoded signature over
// "id:granter:grantee:capability:jurisdiction", produced offline before
// the grant is embedded in the genesis document.
type Delegation struct {
	ID           string `yaml:"id"`
	Granter      string `yaml:"granter"`
	Grantee      string `yaml:"grantee"`
	Capability   string `yaml:"capability"`
	Jurisdiction string `yaml:"jurisdiction"`
	Signature    string `yaml:"signature"` // hex-encoded
}

// Metric is the YAML shape of a founding metric definition. Validator
// functions can't be expressed in YAML, so genesis-declared metrics carry
// no Validator; their values are checked only by the state model's
// per-type rules.
type Metric struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Unit string `yaml:"unit"`
}

// Document is the top-level genesis file shape.
type Document struct {
	Entities    []Entity     `yaml:"entities"`
	Delegations []Delegation `yaml:"delegations"`
	Metrics     []Metric     `yaml:"metrics"`
}

// Load decodes a genesis Document from path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: open %q: %w", path, err)
	}
	defer file.Close()

	var doc Document
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("genesis: decode %q: %w", path, err)
	}
	return &doc, nil
}

// Bootstrap population is the record of what genesis actually applied,
// used by callers (the CLI, tests) to report what a fresh kernel was
// founded with.
type Bootstrap struct {
	Entities    []string
	Delegations []string
	Metrics     []string
}

// Apply registers every entity, delegation, and metric in doc against the
// supplied (already-constructed, not-yet-booted) collaborators, in that
// order — delegations reference entities, and genesis metrics have no
// cross-references so they apply last.
func Apply(doc *Document, identities *identity.Manager, authorities *authority.Engine, registry *metrics.Registry, at ontology.LogicalTimestamp) (*Bootstrap, error) {
	result := &Bootstrap{}
	for _, e := range doc.Entities {
		publicKey, err := hex.DecodeString(e.PublicKey)
		if err != nil {
			return result, fmt.Errorf("genesis: decode public key for entity %q: %w", e.ID, err)
		}
		entity := &ontology.Entity{
			ID:        e.ID,
			Type:      ontology.EntityType(e.Type),
			PublicKey: publicKey,
			Status:    ontology.EntityActive,
			CreatedAt: at,
			Root:      e.Root,
		}
		if err := identities.Register(entity); err != nil {
			return result, fmt.Errorf("genesis: register entity %q: %w", e.ID, err)
		}
		result.Entities = append(result.Entities, e.ID)
	}

	for _, d := range doc.Delegations {
		signature, err := hex.DecodeString(d.Signature)
		if err != nil {
			return result, fmt.Errorf("genesis: decode signature for delegation %q: %w", d.ID, err)
		}
		input := authority.GrantInput{
			DelegationID: d.ID,
			Granter:      d.Granter,
			Grantee:      d.Grantee,
			Capability:   ontology.Capability(d.Capability),
			Jurisdiction: d.Jurisdiction,
			Timestamp:    at,
			Signature:    signature,
		}
		if _, err := authorities.Grant(input); err != nil {
			return result, fmt.Errorf("genesis: grant delegation %q: %w", d.ID, err)
		}
		result.Delegations = append(result.Delegations, d.ID)
	}

	for _, m := range doc.Metrics {
		def := ontology.MetricDefinition{
			ID:   m.ID,
			Type: ontology.MetricType(m.Type),
			Unit: m.Unit,
		}
		if err := registry.Register(def); err != nil {
			return result, fmt.Errorf("genesis: register metric %q: %w", m.ID, err)
		}
		result.Metrics = append(result.Metrics, m.ID)
	}

	return result, nil
}
