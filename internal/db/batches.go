package db

import (
	"context"
	"fmt"
	"time"

	"github.com/adobservatory/adharvest/internal/models"
)

// Batch lifecycle states in fetch_batches.status.
const (
	batchStatusAvailable = "available"
	batchStatusLeased    = "leased"
	batchStatusCompleted = "completed"
)

// leaseScanLimit bounds how many available batches one lease attempt
// inspects before giving up. Losing a claim race moves on to the next
// candidate rather than failing the poll.
const leaseScanLimit = 32

// LeaseBatch claims one available batch for this worker and returns it.
// Returns (nil, nil) when no work is available. The claim is a lightweight
// transaction, so a leased batch is never handed to a second worker.
func (db *DB) LeaseBatch(ctx context.Context) (*models.Batch, error) {
	iter := db.session.Query(
		`SELECT batch_id, archive_ids FROM fetch_batches WHERE status = ? LIMIT ?`,
		batchStatusAvailable, leaseScanLimit,
	).WithContext(ctx).Iter()

	type candidate struct {
		batchID    int64
		archiveIDs []int64
	}
	var candidates []candidate
	var batchID int64
	var archiveIDs []int64
	for iter.Scan(&batchID, &archiveIDs) {
		ids := make([]int64, len(archiveIDs))
		copy(ids, archiveIDs)
		candidates = append(candidates, candidate{batchID: batchID, archiveIDs: ids})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scan available batches: %w", err)
	}

	for _, c := range candidates {
		applied, err := db.session.Query(
			`UPDATE fetch_batches SET status = ?, leased_by = ?, leased_at = ?
			 WHERE batch_id = ? IF status = ?`,
			batchStatusLeased, db.workerID, time.Now().UTC(),
			c.batchID, batchStatusAvailable,
		).WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return nil, fmt.Errorf("claim batch %d: %w", c.batchID, err)
		}
		if applied {
			return &models.Batch{BatchID: c.batchID, ArchiveIDs: c.archiveIDs}, nil
		}
		// Another worker won the race; try the next candidate.
	}

	return nil, nil
}

// ReleaseBatch returns an uncompleted batch to the pool so another worker
// can lease it.
func (db *DB) ReleaseBatch(ctx context.Context, batchID int64) error {
	applied, err := db.session.Query(
		`UPDATE fetch_batches SET status = ?, leased_by = null, leased_at = null
		 WHERE batch_id = ? IF leased_by = ?`,
		batchStatusAvailable, batchID, db.workerID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("release batch %d: %w", batchID, err)
	}
	if !applied {
		return fmt.Errorf("release batch %d: not leased by this worker", batchID)
	}
	return nil
}

// CompleteBatch marks a leased batch as terminally completed.
func (db *DB) CompleteBatch(ctx context.Context, batchID int64) error {
	applied, err := db.session.Query(
		`UPDATE fetch_batches SET status = ?, completed_at = ?
		 WHERE batch_id = ? IF leased_by = ?`,
		batchStatusCompleted, time.Now().UTC(), batchID, db.workerID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("complete batch %d: %w", batchID, err)
	}
	if !applied {
		return fmt.Errorf("complete batch %d: not leased by this worker", batchID)
	}
	return nil
}
