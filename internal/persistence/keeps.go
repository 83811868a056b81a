package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PoolLedger/internal/domain"
)

// SumKeptByNumber totals prior accept-self records per number whose span
// lies inside [windowStart, spanEnd], the alreadyKept term of the keep
// delta.
func (s *Store) SumKeptByNumber(ctx context.Context, q Querier, windowStart, spanEnd time.Time) (map[domain.NumberKey]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT category, number, COALESCE(SUM(amount), 0)
		 FROM accept_self_records
		 WHERE from_at >= $1 AND to_at <= $2
		 GROUP BY category, number`,
		windowStart, spanEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("sum kept: %w", err)
	}
	defer rows.Close()
	return scanKeyedSums(rows)
}

// CreateKeepRecords inserts the run's accept-self rows within the
// caller's transaction. Keep has no batch entity; the rows carry the
// clamped span directly.
func (s *Store) CreateKeepRecords(ctx context.Context, tx *sql.Tx, records []domain.AcceptSelfRecord) error {
	for _, rec := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accept_self_records (id, category, number, amount, from_at, to_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.ID, string(rec.Key.Category), rec.Key.Number, rec.Amount, rec.From, rec.To, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create keep record %s: %w", rec.Key, err)
		}
	}
	return nil
}
