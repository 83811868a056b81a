package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PoolLedger/internal/domain"
)

// ViewRow is one grouped line of a settle or keep view.
type ViewRow struct {
	Category domain.Category `json:"category"`
	Number   string          `json:"number"`
	Amount   int64           `json:"amount"`
}

// SettleView returns forwarded amounts per number across batches whose
// span lies inside [from, to], grouped and paginated. Ordering is by
// amount descending with number ascending for a stable page sequence.
func (s *Store) SettleView(ctx context.Context, from, to time.Time, limit, offset int) ([]ViewRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.category, n.number, SUM(e.amount) AS total
		 FROM excess_records e
		 JOIN settle_batches b ON b.id = e.batch_id
		 JOIN numbers n ON n.id = e.number_id
		 WHERE b.from_at >= $1 AND b.to_at <= $2
		 GROUP BY n.category, n.number
		 ORDER BY total DESC, n.category, n.number
		 LIMIT $3 OFFSET $4`,
		from, to, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("settle view: %w", err)
	}
	defer rows.Close()
	return scanViewRows(rows)
}

// KeepView is the accept-self mirror of SettleView.
func (s *Store) KeepView(ctx context.Context, from, to time.Time, limit, offset int) ([]ViewRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, number, SUM(amount) AS total
		 FROM accept_self_records
		 WHERE from_at >= $1 AND to_at <= $2
		 GROUP BY category, number
		 ORDER BY total DESC, category, number
		 LIMIT $3 OFFSET $4`,
		from, to, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("keep view: %w", err)
	}
	defer rows.Close()
	return scanViewRows(rows)
}

func scanViewRows(rows *sql.Rows) ([]ViewRow, error) {
	var out []ViewRow
	for rows.Next() {
		var (
			cat string
			row ViewRow
		)
		if err := rows.Scan(&cat, &row.Number, &row.Amount); err != nil {
			return nil, fmt.Errorf("scan view row: %w", err)
		}
		category, err := domain.ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		row.Category = category
		out = append(out, row)
	}
	return out, rows.Err()
}
