package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PoolLedger/internal/domain"
)

// CreateWindow inserts a new time window and returns it with the
// assigned id.
func (s *Store) CreateWindow(ctx context.Context, startAt, endAt time.Time) (domain.TimeWindow, error) {
	var w domain.TimeWindow
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO time_windows (start_at, end_at) VALUES ($1, $2)
		 RETURNING id, start_at, end_at`,
		startAt, endAt,
	).Scan(&w.ID, &w.StartAt, &w.EndAt)
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("create window: %w", err)
	}
	return w, nil
}

// LatestWindow returns the window with the greatest start_at.
func (s *Store) LatestWindow(ctx context.Context, q Querier) (domain.TimeWindow, error) {
	var w domain.TimeWindow
	err := q.QueryRowContext(ctx,
		`SELECT id, start_at, end_at FROM time_windows
		 ORDER BY start_at DESC LIMIT 1`,
	).Scan(&w.ID, &w.StartAt, &w.EndAt)
	if err == sql.ErrNoRows {
		return domain.TimeWindow{}, domain.ErrNoWindow
	}
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("latest window: %w", err)
	}
	return w, nil
}

// HostWindow resolves the window that hosts the span [from, to]: the
// most recent window fully covering it, falling back to the latest
// window when none covers.
func (s *Store) HostWindow(ctx context.Context, q Querier, from, to time.Time) (domain.TimeWindow, error) {
	var w domain.TimeWindow
	err := q.QueryRowContext(ctx,
		`SELECT id, start_at, end_at FROM time_windows
		 WHERE start_at <= $1 AND end_at >= $2
		 ORDER BY start_at DESC LIMIT 1`,
		from, to,
	).Scan(&w.ID, &w.StartAt, &w.EndAt)
	if err == sql.ErrNoRows {
		return s.LatestWindow(ctx, q)
	}
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("host window: %w", err)
	}
	return w, nil
}

// WindowByID looks up one window.
func (s *Store) WindowByID(ctx context.Context, id int64) (domain.TimeWindow, error) {
	var w domain.TimeWindow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, start_at, end_at FROM time_windows WHERE id = $1`, id,
	).Scan(&w.ID, &w.StartAt, &w.EndAt)
	if err == sql.ErrNoRows {
		return domain.TimeWindow{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("window by id: %w", err)
	}
	return w, nil
}
