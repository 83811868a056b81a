// Package cap manages the cap rule: pure previews, rule persistence,
// and AUTO top-K threshold recomputation.
package cap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
)

// manualPreviewRanks is how many leading ranks a MANUAL preview shows.
const manualPreviewRanks = 30

// Service implements cap preview, save, and recompute.
type Service struct {
	store   *persistence.Store
	clock   domain.Clock
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewService(store *persistence.Store, clock domain.Clock, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		clock:   clock,
		log:     observability.NewLogger("cap"),
		metrics: metrics,
	}
}

// PreviewInput carries a candidate rule plus the range to evaluate it
// against. Zero From/To select the host window's edges.
type PreviewInput struct {
	Mode         domain.CapMode
	ConvertBoxed bool
	Categories   map[domain.Category]domain.CapCategoryParams
	From, To     time.Time
}

// CategoryPreview is one category's preview line: the threshold the
// candidate rule resolves to and the leading ranks behind it.
type CategoryPreview struct {
	Threshold int64            `json:"threshold"`
	TopRanks  []core.RankEntry `json:"topRanks"`
}

// Preview evaluates a candidate rule against current aggregates without
// persisting anything.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (map[domain.Category]CategoryPreview, error) {
	window, err := s.store.HostWindow(ctx, s.store.DB(), in.From, in.To)
	if err != nil {
		return nil, err
	}
	clampedFrom, clampedTo := window.Clamp(in.From, in.To)
	if !clampedFrom.Before(clampedTo) {
		return nil, fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
	}

	totals, err := s.store.AggregateTotals(ctx, s.store.DB(), window.StartAt, clampedTo)
	if err != nil {
		return nil, err
	}
	core.ApplyRedistribution(totals, in.ConvertBoxed)

	out := make(map[domain.Category]CategoryPreview, len(domain.Categories))
	for _, cat := range domain.Categories {
		params := in.Categories[cat]
		rank := totals.Rank(cat)

		var p CategoryPreview
		if in.Mode == domain.CapModeAuto {
			k := core.EffectiveTopK(0, params.AutoCount)
			p.Threshold = core.AutoThreshold(rank, k)
			p.TopRanks = headRanks(rank, k)
		} else {
			if params.ManualThreshold > 0 {
				p.Threshold = params.ManualThreshold
			}
			p.TopRanks = headRanks(rank, manualPreviewRanks)
		}
		if cat == domain.CategoryTod3 && in.ConvertBoxed {
			p = CategoryPreview{}
		}
		out[cat] = p
	}
	return out, nil
}

// Save persists a rule edit: mode, convert flag, manual thresholds, and
// auto counts. AUTO thresholds and effective times are owned by Recalc
// and survive a save untouched.
func (s *Service) Save(ctx context.Context, in PreviewInput) (domain.CapRule, error) {
	var saved domain.CapRule
	err := s.store.Serializable(ctx, func(tx *sql.Tx) error {
		rule, err := s.store.LoadCapRuleForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		rule.Mode = in.Mode
		rule.ConvertBoxed = in.ConvertBoxed
		for _, cat := range domain.Categories {
			params := rule.Params(cat)
			incoming := in.Categories[cat]
			params.ManualThreshold = incoming.ManualThreshold
			if incoming.AutoCount > 0 {
				params.AutoCount = incoming.AutoCount
			}
			rule.Categories[cat] = params
		}
		rule.UpdatedAt = s.clock.Now()

		if err := s.store.SaveCapRule(ctx, tx, rule, nil, rule.UpdatedAt); err != nil {
			return err
		}
		saved = rule
		return nil
	})
	if err != nil {
		return domain.CapRule{}, err
	}

	s.log.Info().Str("mode", string(saved.Mode)).Bool("convert_boxed", saved.ConvertBoxed).Msg("cap rule saved")
	return saved, nil
}

// Current returns the live rule.
func (s *Service) Current(ctx context.Context) (domain.CapRule, error) {
	return s.store.LoadCapRule(ctx, s.store.DB())
}

// RecalcResult reports one category's AUTO recompute.
type RecalcResult struct {
	Category    domain.Category  `json:"category"`
	K           int              `json:"k"`
	Threshold   int64            `json:"threshold"`
	EffectiveAt time.Time        `json:"effectiveAt"`
	TopSample   []core.RankEntry `json:"topSample"`
}

// Recalc recomputes one category's AUTO threshold from the current
// aggregates. K precedence: explicit request, then the stored auto
// count, then the default. The new threshold, its effective time, and a
// top-rank sample are persisted atomically with a snapshot row.
func (s *Service) Recalc(ctx context.Context, category domain.Category, from, to time.Time, k int) (RecalcResult, error) {
	start := time.Now()
	var res RecalcResult

	err := s.store.Serializable(ctx, func(tx *sql.Tx) error {
		rule, err := s.store.LoadCapRuleForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		window, err := s.store.HostWindow(ctx, tx, from, to)
		if err != nil {
			return err
		}
		clampedFrom, clampedTo := window.Clamp(from, to)
		if !clampedFrom.Before(clampedTo) {
			return fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
		}

		totals, err := s.store.AggregateTotals(ctx, tx, window.StartAt, clampedTo)
		if err != nil {
			return err
		}
		core.ApplyRedistribution(totals, rule.ConvertBoxed)

		rank := totals.Rank(category)
		params := rule.Params(category)
		kEff := core.EffectiveTopK(k, params.AutoCount)
		threshold := core.AutoThreshold(rank, kEff)
		now := s.clock.Now()

		params.AutoCount = kEff
		params.AutoThreshold = threshold
		params.EffectiveAt = now
		rule.Categories[category] = params
		rule.UpdatedAt = now

		sample := headRanks(rank, core.SampleSize)
		if err := s.store.SaveCapRule(ctx, tx, rule,
			map[domain.Category][]core.RankEntry{category: sample}, now); err != nil {
			return err
		}

		res = RecalcResult{
			Category:    category,
			K:           kEff,
			Threshold:   threshold,
			EffectiveAt: now,
			TopSample:   sample,
		}
		return nil
	})
	if err != nil {
		s.metrics.CapRecomputes.WithLabelValues(string(category), "error").Inc()
		return RecalcResult{}, err
	}

	s.metrics.CapRecomputes.WithLabelValues(string(category), "ok").Inc()
	s.metrics.CapRecomputeDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	s.metrics.CapThreshold.WithLabelValues(string(category)).Set(float64(res.Threshold))

	s.log.Info().
		Str("category", string(category)).
		Int("k", res.K).
		Int64("threshold", res.Threshold).
		Msg("cap recomputed")
	return res, nil
}

// RecalcAll recomputes every category in canonical order. Each category
// commits in its own transaction, so a failure leaves earlier categories
// recomputed; the partial results are returned alongside the error.
func (s *Service) RecalcAll(ctx context.Context, from, to time.Time, k int) ([]RecalcResult, error) {
	results := make([]RecalcResult, 0, len(domain.Categories))
	for _, cat := range domain.Categories {
		res, err := s.Recalc(ctx, cat, from, to, k)
		if err != nil {
			return results, fmt.Errorf("recalc %s: %w", cat, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func headRanks(rank []core.RankEntry, n int) []core.RankEntry {
	if n <= 0 || len(rank) == 0 {
		return nil
	}
	if n > len(rank) {
		n = len(rank)
	}
	return rank[:n]
}
