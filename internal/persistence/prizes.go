package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"PoolLedger/internal/domain"
)

// PrizeSetting reads a window's winning numbers and payout rates.
func (s *Store) PrizeSetting(ctx context.Context, windowID int64) (domain.PrizeSetting, error) {
	p := domain.PrizeSetting{TimeWindowID: windowID}
	var top3, tod3, top2, bottom2, runTop, runBottom int64
	err := s.db.QueryRowContext(ctx,
		`SELECT win3, win_low2,
		        payout_top3, payout_tod3, payout_top2, payout_bottom2,
		        payout_run_top, payout_run_bottom
		 FROM prize_settings WHERE time_window_id = $1`,
		windowID,
	).Scan(&p.Win3, &p.WinLow2, &top3, &tod3, &top2, &bottom2, &runTop, &runBottom)
	if err == sql.ErrNoRows {
		return domain.PrizeSetting{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PrizeSetting{}, fmt.Errorf("prize setting: %w", err)
	}
	p.Payouts = map[domain.Category]int64{
		domain.CategoryTop3:      top3,
		domain.CategoryTod3:      tod3,
		domain.CategoryTop2:      top2,
		domain.CategoryBottom2:   bottom2,
		domain.CategoryRunTop:    runTop,
		domain.CategoryRunBottom: runBottom,
	}
	return p, nil
}

// UpsertPrizeSetting writes a window's prize configuration.
func (s *Store) UpsertPrizeSetting(ctx context.Context, p domain.PrizeSetting) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prize_settings
		 (time_window_id, win3, win_low2,
		  payout_top3, payout_tod3, payout_top2, payout_bottom2,
		  payout_run_top, payout_run_bottom)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (time_window_id) DO UPDATE
		 SET win3 = EXCLUDED.win3,
		     win_low2 = EXCLUDED.win_low2,
		     payout_top3 = EXCLUDED.payout_top3,
		     payout_tod3 = EXCLUDED.payout_tod3,
		     payout_top2 = EXCLUDED.payout_top2,
		     payout_bottom2 = EXCLUDED.payout_bottom2,
		     payout_run_top = EXCLUDED.payout_run_top,
		     payout_run_bottom = EXCLUDED.payout_run_bottom`,
		p.TimeWindowID, p.Win3, p.WinLow2,
		p.Payouts[domain.CategoryTop3], p.Payouts[domain.CategoryTod3],
		p.Payouts[domain.CategoryTop2], p.Payouts[domain.CategoryBottom2],
		p.Payouts[domain.CategoryRunTop], p.Payouts[domain.CategoryRunBottom],
	)
	if err != nil {
		return fmt.Errorf("upsert prize setting: %w", err)
	}
	return nil
}
