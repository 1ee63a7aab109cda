// Package leveldbstore is a goleveldb-backed eventstore.Port, grounded on
// storage/db.go's LevelDB wrapper (leveldb.OpenFile + Put/Get/Close). Keys
// are big-endian sequence numbers so the LevelDB iterator — which walks
// keys in lexicographic byte order — naturally returns evidence in append
// order without a secondary index.
package leveldbstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"governancekernel/kernel/ontology"
)

// record is the on-disk representation of one Evidence entry.
type record struct {
	EvidenceID         string                    `json:"evidenceId"`
	PreviousEvidenceID string                    `json:"previousEvidenceId"`
	Sequence           uint64                    `json:"sequence"`
	Action             *ontology.Action          `json:"action"`
	Status             ontology.EvidenceStatus   `json:"status"`
	Timestamp          ontology.LogicalTimestamp `json:"timestamp"`
	Metadata           map[string]string         `json:"metadata,omitempty"`
}

// Store is a durable eventstore.Port backed by a LevelDB database.
type Store struct {
	db *leveldb.DB
}

// Open creates or opens a LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists evidence under a big-endian sequence key.
func (s *Store) Append(ctx context.Context, evidence *ontology.Evidence) error {
	rec := record{
		EvidenceID:         evidence.EvidenceID,
		PreviousEvidenceID: evidence.PreviousEvidenceID,
		Sequence:           evidence.Sequence,
		Action:             evidence.Action,
		Status:             evidence.Status,
		Timestamp:          evidence.Timestamp,
		Metadata:           evidence.Metadata,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("leveldbstore: marshal evidence %q: %w", evidence.EvidenceID, err)
	}
	if err := s.db.Put(sequenceKey(evidence.Sequence), payload, nil); err != nil {
		return fmt.Errorf("leveldbstore: put evidence %q: %w", evidence.EvidenceID, err)
	}
	return nil
}

// Load iterates every key in order and decodes each into an Evidence.
func (s *Store) Load(ctx context.Context) ([]*ontology.Evidence, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var out []*ontology.Evidence
	for iter.Next() {
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("leveldbstore: unmarshal evidence at key %x: %w", iter.Key(), err)
		}
		out = append(out, &ontology.Evidence{
			EvidenceID:         rec.EvidenceID,
			PreviousEvidenceID: rec.PreviousEvidenceID,
			Sequence:           rec.Sequence,
			Action:             rec.Action,
			Status:             rec.Status,
			Timestamp:          rec.Timestamp,
			Metadata:           rec.Metadata,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldbstore: iterate: %w", err)
	}
	return out, nil
}

func sequenceKey(sequence uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, sequence)
	return key
}
