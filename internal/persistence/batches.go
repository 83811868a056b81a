package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"PoolLedger/internal/domain"
)

// FindBatch returns the settlement batch for the exact clamped span, or
// domain.ErrNotFound. The exact-span lookup is the replay check.
func (s *Store) FindBatch(ctx context.Context, q Querier, from, to time.Time) (domain.SettleBatch, error) {
	var b domain.SettleBatch
	err := q.QueryRowContext(ctx,
		`SELECT id, from_at, to_at, created_at FROM settle_batches
		 WHERE from_at = $1 AND to_at = $2`,
		from, to,
	).Scan(&b.ID, &b.From, &b.To, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.SettleBatch{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SettleBatch{}, fmt.Errorf("find batch: %w", err)
	}
	return b, nil
}

// BatchRecordCount counts the excess records attached to a batch.
func (s *Store) BatchRecordCount(ctx context.Context, q Querier, batchID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM excess_records WHERE batch_id = $1`, batchID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count batch records: %w", err)
	}
	return n, nil
}

// SumSentByNumber totals prior excess records per number across all
// batches whose span lies inside [windowStart, spanEnd]. This is the
// alreadySent term of the incremental settlement delta.
func (s *Store) SumSentByNumber(ctx context.Context, q Querier, windowStart, spanEnd time.Time) (map[domain.NumberKey]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT n.category, n.number, COALESCE(SUM(e.amount), 0)
		 FROM excess_records e
		 JOIN settle_batches b ON b.id = e.batch_id
		 JOIN numbers n ON n.id = e.number_id
		 WHERE b.from_at >= $1 AND b.to_at <= $2
		 GROUP BY n.category, n.number`,
		windowStart, spanEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("sum sent: %w", err)
	}
	defer rows.Close()
	return scanKeyedSums(rows)
}

// CreateBatch inserts the batch row plus its excess records atomically
// within the caller's transaction.
func (s *Store) CreateBatch(ctx context.Context, tx *sql.Tx, batch domain.SettleBatch, records []domain.ExcessRecord) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settle_batches (id, from_at, to_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		batch.ID, batch.From, batch.To, batch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	for _, rec := range records {
		numberID, err := s.EnsureNumber(ctx, tx, rec.Key)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO excess_records (id, batch_id, number_id, amount, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, batch.ID, numberID, rec.Amount, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create excess record %s: %w", rec.Key, err)
		}
	}
	return nil
}

// IsSettled reports whether ts falls inside any committed batch span.
// Editing collaborators use this as the record-lock query.
func (s *Store) IsSettled(ctx context.Context, ts time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM settle_batches WHERE from_at <= $1 AND to_at > $1
		 )`, ts,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is settled: %w", err)
	}
	return exists, nil
}

func scanKeyedSums(rows *sql.Rows) (map[domain.NumberKey]int64, error) {
	sums := make(map[domain.NumberKey]int64)
	for rows.Next() {
		var (
			cat    string
			number string
			sum    int64
		)
		if err := rows.Scan(&cat, &number, &sum); err != nil {
			return nil, fmt.Errorf("scan keyed sum: %w", err)
		}
		category, err := domain.ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		sums[domain.NumberKey{Category: category, Number: number}] += sum
	}
	return sums, rows.Err()
}
