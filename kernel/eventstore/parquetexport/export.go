// Package parquetexport writes the state-snapshot chain to a columnar
// Parquet file for offline analysis, grounded on
// services/otc-gateway/recon/reconciler.go's writeParquet: a
// writerfile-backed writer.NewParquetWriter over a flat row schema,
// SNAPPY-compressed, written row by row and flushed with WriteStop.
package parquetexport

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"governancekernel/kernel/ontology"
)

// row is the flat Parquet schema each (snapshot, metric) pair is
// projected into. One StateSnapshot expands to one row per metric it
// carries a value for.
type row struct {
	Version      int64   `parquet:"name=version, type=INT64"`
	ActionID     string  `parquet:"name=action_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	MetricID     string  `parquet:"name=metric_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value        float64 `parquet:"name=value, type=DOUBLE"`
	UpdatedBy    string  `parquet:"name=updated_by, type=BYTE_ARRAY, convertedtype=UTF8"`
	EvidenceID   string  `parquet:"name=evidence_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Physical     int64   `parquet:"name=physical, type=INT64"`
	Logical      int64   `parquet:"name=logical, type=INT64"`
	Hash         string  `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	PreviousHash string  `parquet:"name=previous_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WriteSnapshotChain writes chain to path as Parquet, one row per metric
// value carried by each snapshot.
func WriteSnapshotChain(path string, chain []*ontology.StateSnapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("parquetexport: create %q: %w", path, err)
	}

	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(row), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("parquetexport: schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, snapshot := range chain {
		for metricID, value := range snapshot.Metrics {
			rec := &row{
				Version:      int64(snapshot.Version),
				ActionID:     snapshot.ActionID,
				MetricID:     metricID,
				Value:        toFloat64(value.Value),
				UpdatedBy:    value.UpdatedBy,
				EvidenceID:   value.EvidenceID,
				Physical:     int64(snapshot.Timestamp.Physical),
				Logical:      int64(snapshot.Timestamp.Logical),
				Hash:         snapshot.Hash,
				PreviousHash: snapshot.PreviousHash,
			}
			if err := pw.Write(rec); err != nil {
				pw.WriteStop()
				file.Close()
				return fmt.Errorf("parquetexport: write row: %w", err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("parquetexport: flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("parquetexport: close %q: %w", path, err)
	}
	return nil
}

// toFloat64 coerces a metric's stored value (float64 for COUNTER/GAUGE,
// bool for BOOLEAN) into Parquet's DOUBLE column.
func toFloat64(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}
