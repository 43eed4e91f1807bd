package sqlite

import (
	"context"
	"fmt"
	"time"
)

// PruneEntries deletes indexed entries older than cutoff in batches of
// batchSize, returning how many were removed. The JSONL log is untouched.
func (s *Index) PruneEntries(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM log_entries
			WHERE log_id IN (
				SELECT log_id FROM log_entries
				WHERE timestamp < ?
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, cutoff.UTC().Format(timeLayout), batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		// A short batch means nothing older remains.
		if rowsAffected < int64(batchSize) {
			break
		}
	}
	return totalDeleted, nil
}

// Vacuum reclaims space after large prunes.
func (s *Index) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum index: %w", err)
	}
	return nil
}
