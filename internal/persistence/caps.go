package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
)

// LoadCapRule reads the singleton cap rule. Absent rows yield a default
// MANUAL rule with no thresholds, which resolves every cap to zero.
func (s *Store) LoadCapRule(ctx context.Context, q Querier) (domain.CapRule, error) {
	return s.loadCapRule(ctx, q, false)
}

// LoadCapRuleForUpdate locks the cap rule rows for the duration of the
// caller's transaction. Save and recompute paths go through this so two
// concurrent recomputes serialize instead of clobbering each other.
func (s *Store) LoadCapRuleForUpdate(ctx context.Context, tx *sql.Tx) (domain.CapRule, error) {
	return s.loadCapRule(ctx, tx, true)
}

func (s *Store) loadCapRule(ctx context.Context, q Querier, forUpdate bool) (domain.CapRule, error) {
	rule := domain.CapRule{
		Mode:       domain.CapModeManual,
		Categories: make(map[domain.Category]domain.CapCategoryParams, len(domain.Categories)),
	}

	query := `SELECT mode, convert_boxed, updated_at FROM cap_rules WHERE id = 1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var mode string
	err := q.QueryRowContext(ctx, query).Scan(&mode, &rule.ConvertBoxed, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return rule, nil
	}
	if err != nil {
		return domain.CapRule{}, fmt.Errorf("load cap rule: %w", err)
	}
	rule.Mode = domain.CapMode(mode)

	catQuery := `SELECT category, manual_threshold, auto_count, auto_threshold, effective_at
		 FROM cap_rule_categories`
	if forUpdate {
		catQuery += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, catQuery)
	if err != nil {
		return domain.CapRule{}, fmt.Errorf("load cap categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cat         string
			params      domain.CapCategoryParams
			effectiveAt sql.NullTime
		)
		if err := rows.Scan(&cat, &params.ManualThreshold, &params.AutoCount, &params.AutoThreshold, &effectiveAt); err != nil {
			return domain.CapRule{}, fmt.Errorf("scan cap category: %w", err)
		}
		if effectiveAt.Valid {
			params.EffectiveAt = effectiveAt.Time
		}
		category, err := domain.ParseCategory(cat)
		if err != nil {
			return domain.CapRule{}, fmt.Errorf("load cap categories: %w", err)
		}
		rule.Categories[category] = params
	}
	return rule, rows.Err()
}

// SaveCapRule upserts the live rule and appends one snapshot row per
// category, including the top-rank sample captured by an AUTO recompute
// (nil for categories without one). Must run inside a transaction that
// holds the FOR UPDATE lock.
func (s *Store) SaveCapRule(ctx context.Context, tx *sql.Tx, rule domain.CapRule, samples map[domain.Category][]core.RankEntry, savedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cap_rules (id, mode, convert_boxed, updated_at)
		 VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET mode = EXCLUDED.mode,
		     convert_boxed = EXCLUDED.convert_boxed,
		     updated_at = EXCLUDED.updated_at`,
		string(rule.Mode), rule.ConvertBoxed, savedAt,
	)
	if err != nil {
		return fmt.Errorf("save cap rule: %w", err)
	}

	for _, cat := range domain.Categories {
		params := rule.Params(cat)
		var effectiveAt interface{}
		if !params.EffectiveAt.IsZero() {
			effectiveAt = params.EffectiveAt
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cap_rule_categories (category, manual_threshold, auto_count, auto_threshold, effective_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (category) DO UPDATE
			 SET manual_threshold = EXCLUDED.manual_threshold,
			     auto_count = EXCLUDED.auto_count,
			     auto_threshold = EXCLUDED.auto_threshold,
			     effective_at = EXCLUDED.effective_at`,
			string(cat), params.ManualThreshold, params.AutoCount, params.AutoThreshold, effectiveAt,
		)
		if err != nil {
			return fmt.Errorf("save cap category %s: %w", cat, err)
		}

		var sample interface{}
		if entries := samples[cat]; len(entries) > 0 {
			raw, err := json.Marshal(entries)
			if err != nil {
				return fmt.Errorf("marshal top sample %s: %w", cat, err)
			}
			sample = raw
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cap_rule_snapshots
			 (saved_at, mode, convert_boxed, category, manual_threshold, auto_count, auto_threshold, effective_at, top_sample)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			savedAt, string(rule.Mode), rule.ConvertBoxed, string(cat),
			params.ManualThreshold, params.AutoCount, params.AutoThreshold, effectiveAt, sample,
		)
		if err != nil {
			return fmt.Errorf("snapshot cap category %s: %w", cat, err)
		}
	}
	return nil
}
