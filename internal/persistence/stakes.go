package persistence

import (
	"context"
	"fmt"
	"time"

	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
)

// EnsureNumber returns the id of the (category, number) row, creating it
// lazily on first sight.
func (s *Store) EnsureNumber(ctx context.Context, q Querier, key domain.NumberKey) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO numbers (category, number) VALUES ($1, $2)
		 ON CONFLICT (category, number) DO UPDATE SET number = EXCLUDED.number
		 RETURNING id`,
		string(key.Category), key.Number,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure number %s: %w", key, err)
	}
	return id, nil
}

// InsertStake appends one stake record. The engine itself only reads
// stakes; this write path serves ingestion and tests.
func (s *Store) InsertStake(ctx context.Context, key domain.NumberKey, userRef string, amount int64, createdAt time.Time) error {
	numberID, err := s.EnsureNumber(ctx, s.db, key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO stake_records (number_id, user_ref, amount, created_at)
		 VALUES ($1, $2, $3, $4)`,
		numberID, userRef, amount, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert stake: %w", err)
	}
	return nil
}

// AggregateTotals sums stakes per (category, number) over [from, to) in
// a single grouped pass.
func (s *Store) AggregateTotals(ctx context.Context, q Querier, from, to time.Time) (core.Totals, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT n.category, n.number, COALESCE(SUM(r.amount), 0)
		 FROM stake_records r
		 JOIN numbers n ON n.id = r.number_id
		 WHERE r.created_at >= $1 AND r.created_at < $2
		 GROUP BY n.category, n.number`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate stakes: %w", err)
	}
	defer rows.Close()

	totals := core.NewTotals()
	for rows.Next() {
		var (
			cat    string
			number string
			sum    int64
		)
		if err := rows.Scan(&cat, &number, &sum); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		category, err := domain.ParseCategory(cat)
		if err != nil {
			return nil, fmt.Errorf("aggregate stakes: %w", err)
		}
		totals.Add(category, number, sum)
	}
	return totals, rows.Err()
}
