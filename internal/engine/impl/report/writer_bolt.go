package report

import (
	"TraceCorrelator/internal/model"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

const runsBucket = "runs"

// storedPartial is the record kept for one partition of a run.
type storedPartial struct {
	GeneratedAt    int64              `cbor:"1,keyasint"`
	PartitionCount int                `cbor:"2,keyasint"`
	Totals         model.GlobalTotals `cbor:"3,keyasint"`
}

// BoltWriter keeps the totals of every run in a local bbolt database, one nested
// bucket per run id and one record per partition. Writing a partition again
// replaces its previous record. It also answers run history queries.
type BoltWriter struct {
	db *bolt.DB
}

// NewBoltWriter opens (or creates) the database at path.
func NewBoltWriter(path string) (*BoltWriter, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database '%s': %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltWriter{db: db}, nil
}

func (w *BoltWriter) Name() string {
	return "bolt"
}

// Write stores the totals of the report's partition under its run id.
func (w *BoltWriter) Write(report *model.Report) error {
	raw, err := cbor.Marshal(&storedPartial{
		GeneratedAt:    report.GeneratedAt.UnixNano(),
		PartitionCount: report.Partition.Count,
		Totals:         report.Totals,
	})
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", report.RunID, err)
	}

	err = w.db.Update(func(tx *bolt.Tx) error {
		run, err := tx.Bucket([]byte(runsBucket)).CreateBucketIfNotExists([]byte(report.RunID))
		if err != nil {
			return err
		}
		return run.Put(partitionKey(report.Partition.Index), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to store run %s: %w", report.RunID, err)
	}

	log.Printf("Stored partition %d of run '%s' in bolt", report.Partition.Index, report.RunID)
	return nil
}

// RunTotals merges the stored partitions of a run in partition order.
func (w *BoltWriter) RunTotals(ctx context.Context, runID string) (model.GlobalTotals, error) {
	var totals model.GlobalTotals
	err := w.db.View(func(tx *bolt.Tx) error {
		run := tx.Bucket([]byte(runsBucket)).Bucket([]byte(runID))
		if run == nil {
			return fmt.Errorf("%w: %s", model.ErrRunNotFound, runID)
		}
		return run.ForEach(func(k, v []byte) error {
			var p storedPartial
			if err := cbor.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt partition %d of run %s: %w", binary.BigEndian.Uint32(k), runID, err)
			}
			totals.Merge(p.Totals)
			return nil
		})
	})
	if err != nil {
		return model.GlobalTotals{}, err
	}
	return totals, nil
}

// Close closes the database.
func (w *BoltWriter) Close() error {
	return w.db.Close()
}

// partitionKey is big-endian so that ForEach visits partitions in index order.
func partitionKey(index int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(index))
	return k
}
