// Package sqlstore is a GORM-backed eventstore.Port, grounded on
// services/otc-gateway's gorm.Open(postgres.Open(...)) production wiring
// and gorm.Open(sqlite.Open(...)) test wiring. The row layout follows the
// "Evidence persisted layout" in spec.md §6: one row per evidence, with
// the Action and the metadata stored as encoding/json text.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"

	"governancekernel/kernel/ontology"
)

// Row is the GORM model for one persisted Evidence entry. Action is stored
// as a JSON blob rather than split across columns: the Signature guard and
// canonical encoding only ever operate on the reconstructed ontology.Action
// value, not on individual row columns.
type Row struct {
	Sequence           uint64 `gorm:"primaryKey;autoIncrement:false"`
	EvidenceID         string `gorm:"uniqueIndex;size:128"`
	PreviousEvidenceID string `gorm:"size:128"`
	ActionID           string `gorm:"index;size:128"`
	Status             string `gorm:"size:16"`
	Timestamp          string `gorm:"size:64"`
	Action             string `gorm:"type:text"`
	Metadata           string `gorm:"type:text"`
}

// TableName pins the GORM table name rather than relying on pluralization
// of "Row".
func (Row) TableName() string { return "evidence" }

// Store is a durable eventstore.Port backed by a SQL database through GORM.
type Store struct {
	db *gorm.DB
}

// OpenPostgres opens a production Store against dsn (a postgres connection
// string), mirroring the otc-gateway service's production wiring.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	return newStore(db)
}

// OpenSQLite opens an embeddable/test Store against a glebarez/sqlite DSN
// (a file path, or ":memory:").
func OpenSQLite(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Append persists evidence as a new row.
func (s *Store) Append(ctx context.Context, evidence *ontology.Evidence) error {
	actionJSON, err := json.Marshal(evidence.Action)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal action: %w", err)
	}
	metadataJSON, err := json.Marshal(evidence.Metadata)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal metadata: %w", err)
	}
	actionID := ""
	if evidence.Action != nil {
		actionID = evidence.Action.ActionID
	}
	row := &Row{
		Sequence:           evidence.Sequence,
		EvidenceID:         evidence.EvidenceID,
		PreviousEvidenceID: evidence.PreviousEvidenceID,
		ActionID:           actionID,
		Status:             string(evidence.Status),
		Timestamp:          evidence.Timestamp.String(),
		Action:             string(actionJSON),
		Metadata:           string(metadataJSON),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("sqlstore: insert evidence %q: %w", evidence.EvidenceID, err)
	}
	return nil
}

// Load returns every persisted Evidence ordered by sequence.
func (s *Store) Load(ctx context.Context) ([]*ontology.Evidence, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Order("sequence asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: load evidence: %w", err)
	}
	out := make([]*ontology.Evidence, 0, len(rows))
	for _, row := range rows {
		evidence, err := rowToEvidence(row)
		if err != nil {
			return nil, err
		}
		out = append(out, evidence)
	}
	return out, nil
}

func rowToEvidence(row Row) (*ontology.Evidence, error) {
	timestamp, err := ontology.ParseLogicalTimestamp(row.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: parse timestamp for evidence %q: %w", row.EvidenceID, err)
	}
	var action *ontology.Action
	if err := json.Unmarshal([]byte(row.Action), &action); err != nil {
		return nil, fmt.Errorf("sqlstore: unmarshal action for evidence %q: %w", row.EvidenceID, err)
	}
	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal metadata for evidence %q: %w", row.EvidenceID, err)
		}
	}
	return &ontology.Evidence{
		EvidenceID:         row.EvidenceID,
		PreviousEvidenceID: row.PreviousEvidenceID,
		Sequence:           row.Sequence,
		Action:             action,
		Status:             ontology.EvidenceStatus(row.Status),
		Timestamp:          timestamp,
		Metadata:           metadata,
	}, nil
}
