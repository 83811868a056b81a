package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PurgeCounts reports how many rows each table lost in a bulk erase.
type PurgeCounts struct {
	Stakes  int64 `json:"stakes"`
	Batches int64 `json:"batches"`
	Excess  int64 `json:"excess"`
	Keeps   int64 `json:"keeps"`
	Prizes  int64 `json:"prizes"`
}

// PurgeWindow erases everything the engine derived for the span
// [windowStart, windowEnd): stake records by created_at, settlement
// batches by overlap (from_at < windowEnd AND to_at > windowStart)
// together with their excess records, keep records by the same overlap
// rule, and prize settings of the hosting windows. After a purge the
// span settles cleanly from scratch.
func (s *Store) PurgeWindow(ctx context.Context, tx *sql.Tx, windowStart, windowEnd time.Time) (PurgeCounts, error) {
	var counts PurgeCounts

	res, err := tx.ExecContext(ctx,
		`DELETE FROM excess_records WHERE batch_id IN (
		   SELECT id FROM settle_batches WHERE from_at < $2 AND to_at > $1
		 )`,
		windowStart, windowEnd,
	)
	if err != nil {
		return counts, fmt.Errorf("purge excess records: %w", err)
	}
	counts.Excess, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE FROM settle_batches WHERE from_at < $2 AND to_at > $1`,
		windowStart, windowEnd,
	)
	if err != nil {
		return counts, fmt.Errorf("purge batches: %w", err)
	}
	counts.Batches, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE FROM accept_self_records WHERE from_at < $2 AND to_at > $1`,
		windowStart, windowEnd,
	)
	if err != nil {
		return counts, fmt.Errorf("purge keep records: %w", err)
	}
	counts.Keeps, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE FROM stake_records WHERE created_at >= $1 AND created_at < $2`,
		windowStart, windowEnd,
	)
	if err != nil {
		return counts, fmt.Errorf("purge stakes: %w", err)
	}
	counts.Stakes, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`DELETE FROM prize_settings WHERE time_window_id IN (
		   SELECT id FROM time_windows WHERE start_at < $2 AND end_at > $1
		 )`,
		windowStart, windowEnd,
	)
	if err != nil {
		return counts, fmt.Errorf("purge prize settings: %w", err)
	}
	counts.Prizes, _ = res.RowsAffected()

	return counts, nil
}
