// Package query serves the read models: the per-category exposure
// summary and the paginated settle/keep views. All reads are
// non-transactional snapshots.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/prize"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service answers summary and view queries.
type Service struct {
	store *persistence.Store
	log   zerolog.Logger
}

func NewService(store *persistence.Store) *Service {
	return &Service{store: store, log: observability.NewLogger("query")}
}

// CategorySummary is one category's line in the exposure summary.
type CategorySummary struct {
	Inflow          int64 `json:"inflow"`
	Kept            int64 `json:"kept"`
	Sent            int64 `json:"sent"`
	SelfLiability   int64 `json:"selfLiability"`
	DealerLiability int64 `json:"dealerLiability"`
}

// Summary is the full exposure report for a span.
type Summary struct {
	Window     domain.TimeWindow                   `json:"-"`
	WindowID   int64                               `json:"windowId"`
	From       time.Time                           `json:"from"`
	To         time.Time                           `json:"to"`
	Categories map[domain.Category]CategorySummary `json:"categories"`
	Totals     CategorySummary                     `json:"totals"`
}

// BuildSummary reports cumulative inflow, kept and sent splits, and
// prize liability per category over the host window up to the clamped
// to. Without a prize setting for the window both liability columns are
// zero; the flow columns still report.
func (s *Service) BuildSummary(ctx context.Context, from, to time.Time) (Summary, error) {
	db := s.store.DB()
	window, err := s.store.HostWindow(ctx, db, from, to)
	if err != nil {
		return Summary{}, err
	}
	clampedFrom, clampedTo := window.Clamp(from, to)
	if !clampedFrom.Before(clampedTo) {
		return Summary{}, fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
	}

	totals, err := s.store.AggregateTotals(ctx, db, window.StartAt, clampedTo)
	if err != nil {
		return Summary{}, err
	}
	rule, err := s.store.LoadCapRule(ctx, db)
	if err != nil {
		return Summary{}, err
	}
	core.ApplyRedistribution(totals, rule.ConvertBoxed)

	sent, err := s.store.SumSentByNumber(ctx, db, window.StartAt, clampedTo)
	if err != nil {
		return Summary{}, err
	}

	flows := make(map[domain.NumberKey]prize.Flow)
	for _, cat := range domain.Categories {
		for _, num := range totals.Keys(cat) {
			key := domain.NumberKey{Category: cat, Number: num}
			flows[key] = prize.Flow{Inflow: totals.Get(cat, num), Sent: sent[key]}
		}
	}

	setting, err := s.store.PrizeSetting(ctx, window.ID)
	if errors.Is(err, domain.ErrNotFound) {
		setting = domain.PrizeSetting{TimeWindowID: window.ID}
	} else if err != nil {
		return Summary{}, err
	}

	report := prize.ComputeLiability(setting, flows)

	out := Summary{
		Window:     window,
		WindowID:   window.ID,
		From:       clampedFrom,
		To:         clampedTo,
		Categories: make(map[domain.Category]CategorySummary, len(domain.Categories)),
	}
	for _, cat := range domain.Categories {
		cl := report.Categories[cat]
		line := CategorySummary{
			Inflow:          cl.Inflow,
			Kept:            cl.Kept,
			Sent:            cl.Sent,
			SelfLiability:   cl.SelfLiability,
			DealerLiability: cl.DealerLiability,
		}
		out.Categories[cat] = line
		out.Totals.Inflow += line.Inflow
		out.Totals.Kept += line.Kept
		out.Totals.Sent += line.Sent
		out.Totals.SelfLiability += line.SelfLiability
		out.Totals.DealerLiability += line.DealerLiability
	}
	return out, nil
}

// ViewPage is one page of a settle or keep view.
type ViewPage struct {
	WindowID int64                 `json:"windowId"`
	From     time.Time             `json:"from"`
	To       time.Time             `json:"to"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
	Rows     []persistence.ViewRow `json:"rows"`
}

// SettleView pages through forwarded amounts per number for the span.
func (s *Service) SettleView(ctx context.Context, from, to time.Time, limit, offset int) (ViewPage, error) {
	return s.view(ctx, from, to, limit, offset, s.store.SettleView)
}

// KeepView pages through retained amounts per number for the span.
func (s *Service) KeepView(ctx context.Context, from, to time.Time, limit, offset int) (ViewPage, error) {
	return s.view(ctx, from, to, limit, offset, s.store.KeepView)
}

func (s *Service) view(ctx context.Context, from, to time.Time, limit, offset int,
	fetch func(context.Context, time.Time, time.Time, int, int) ([]persistence.ViewRow, error),
) (ViewPage, error) {
	window, err := s.store.HostWindow(ctx, s.store.DB(), from, to)
	if err != nil {
		return ViewPage{}, err
	}
	clampedFrom, clampedTo := window.Clamp(from, to)
	if !clampedFrom.Before(clampedTo) {
		return ViewPage{}, fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := fetch(ctx, window.StartAt, clampedTo, limit, offset)
	if err != nil {
		return ViewPage{}, err
	}
	return ViewPage{
		WindowID: window.ID,
		From:     clampedFrom,
		To:       clampedTo,
		Limit:    limit,
		Offset:   offset,
		Rows:     rows,
	}, nil
}
