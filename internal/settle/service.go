// Package settle orchestrates settlement and keep runs: window
// resolution, clamping, cumulative aggregation, delta computation, and
// the transactional commit that makes a run idempotent.
package settle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
)

// errConcurrentBatch signals that another run committed the same span
// while this one was computing. The caller re-reads and reports replay.
var errConcurrentBatch = errors.New("concurrent settlement of same span")

// Service runs settlement and keep commits.
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
		log:     observability.NewLogger("settle"),
		metrics: metrics,
	}
}

// SettleResult reports one settlement run.
type SettleResult struct {
	Batch         domain.SettleBatch
	CreatedCount  int
	AlreadyExists bool
	Window        domain.TimeWindow
	From, To      time.Time
}

// KeepResult reports one keep run.
type KeepResult struct {
	CreatedCount int
	Window       domain.TimeWindow
	From, To     time.Time
}

// Settle aggregates the host window's cumulative inflow up to the
// clamped to, computes per-number excess over the cap minus what prior
// batches already sent, and commits the positive deltas as a new batch.
// The clamped (from, to) span is the idempotency key: if a batch for the
// exact span exists the run is a no-op returning that batch. Zero from
// or to select the window edge on that side.
func (s *Service) Settle(ctx context.Context, from, to time.Time) (SettleResult, error) {
	if err := validateRange(from, to); err != nil {
		s.metrics.SettleRuns.WithLabelValues("error").Inc()
		return SettleResult{}, err
	}

	start := time.Now()
	var (
		res       SettleResult
		forwarded int64
	)

	err := s.store.Serializable(ctx, func(tx *sql.Tx) error {
		window, err := s.store.HostWindow(ctx, tx, from, to)
		if err != nil {
			return err
		}
		clampedFrom, clampedTo := window.Clamp(from, to)
		res.Window, res.From, res.To = window, clampedFrom, clampedTo
		if !clampedFrom.Before(clampedTo) {
			return fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
		}

		existing, err := s.store.FindBatch(ctx, tx, clampedFrom, clampedTo)
		if err == nil {
			count, err := s.store.BatchRecordCount(ctx, tx, existing.ID)
			if err != nil {
				return err
			}
			res.Batch, res.CreatedCount, res.AlreadyExists = existing, count, true
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		needs, err := s.computeNeeds(ctx, tx, window, clampedTo, needSettle)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		batch := domain.SettleBatch{ID: uuid.New(), From: clampedFrom, To: clampedTo, CreatedAt: now}
		records := make([]domain.ExcessRecord, len(needs))
		forwarded = 0
		for i, n := range needs {
			records[i] = domain.ExcessRecord{
				ID:        uuid.New(),
				BatchID:   batch.ID,
				Key:       n.Key,
				Amount:    n.Amount,
				CreatedAt: now,
			}
			forwarded += n.Amount
		}

		if err := s.store.CreateBatch(ctx, tx, batch, records); err != nil {
			if persistence.IsUniqueViolation(err) {
				return errConcurrentBatch
			}
			return err
		}
		res.Batch, res.CreatedCount = batch, len(records)
		return nil
	})

	if errors.Is(err, errConcurrentBatch) {
		existing, ferr := s.store.FindBatch(ctx, s.store.DB(), res.From, res.To)
		if ferr != nil {
			s.metrics.SettleRuns.WithLabelValues("error").Inc()
			return SettleResult{}, ferr
		}
		count, ferr := s.store.BatchRecordCount(ctx, s.store.DB(), existing.ID)
		if ferr != nil {
			s.metrics.SettleRuns.WithLabelValues("error").Inc()
			return SettleResult{}, ferr
		}
		res.Batch, res.CreatedCount, res.AlreadyExists = existing, count, true
		err = nil
	}
	if err != nil {
		s.metrics.SettleRuns.WithLabelValues("error").Inc()
		return SettleResult{}, err
	}

	s.metrics.SettleDuration.Observe(time.Since(start).Seconds())
	outcome := "created"
	if res.AlreadyExists {
		outcome = "replayed"
	} else {
		s.metrics.SettleRecords.Add(float64(res.CreatedCount))
		s.metrics.SettleForwarded.Add(float64(forwarded))
		if res.CreatedCount == 0 {
			outcome = "empty"
		}
	}
	s.metrics.SettleRuns.WithLabelValues(outcome).Inc()

	s.log.Info().
		Str("batch_id", res.Batch.ID.String()).
		Time("from", res.From).
		Time("to", res.To).
		Int("records", res.CreatedCount).
		Bool("replayed", res.AlreadyExists).
		Msg("settlement run complete")
	return res, nil
}

// AcceptKeep records the retained side: target = min(cumulative inflow,
// cap) minus what prior keep runs inside the same span already recorded.
// There is no batch entity; replaying an identical span computes zero
// deltas and inserts nothing.
func (s *Service) AcceptKeep(ctx context.Context, from, to time.Time) (KeepResult, error) {
	if err := validateRange(from, to); err != nil {
		s.metrics.KeepRuns.WithLabelValues("error").Inc()
		return KeepResult{}, err
	}

	start := time.Now()
	var res KeepResult

	err := s.store.Serializable(ctx, func(tx *sql.Tx) error {
		window, err := s.store.HostWindow(ctx, tx, from, to)
		if err != nil {
			return err
		}
		clampedFrom, clampedTo := window.Clamp(from, to)
		res.Window, res.From, res.To = window, clampedFrom, clampedTo
		if !clampedFrom.Before(clampedTo) {
			return fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, window.ID)
		}

		needs, err := s.computeNeeds(ctx, tx, window, clampedTo, needKeep)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		records := make([]domain.AcceptSelfRecord, len(needs))
		var retained int64
		for i, n := range needs {
			records[i] = domain.AcceptSelfRecord{
				ID:        uuid.New(),
				Key:       n.Key,
				Amount:    n.Amount,
				From:      clampedFrom,
				To:        clampedTo,
				CreatedAt: now,
			}
			retained += n.Amount
		}

		if err := s.store.CreateKeepRecords(ctx, tx, records); err != nil {
			return err
		}
		res.CreatedCount = len(records)
		s.metrics.KeepRetained.Add(float64(retained))
		return nil
	})
	if err != nil {
		s.metrics.KeepRuns.WithLabelValues("error").Inc()
		return KeepResult{}, err
	}

	s.metrics.KeepDuration.Observe(time.Since(start).Seconds())
	s.metrics.KeepRecords.Add(float64(res.CreatedCount))
	outcome := "created"
	if res.CreatedCount == 0 {
		outcome = "empty"
	}
	s.metrics.KeepRuns.WithLabelValues(outcome).Inc()

	s.log.Info().
		Time("from", res.From).
		Time("to", res.To).
		Int("records", res.CreatedCount).
		Msg("keep run complete")
	return res, nil
}

// IsSettled reports whether ts lies inside any committed batch span.
func (s *Service) IsSettled(ctx context.Context, ts time.Time) (bool, error) {
	return s.store.IsSettled(ctx, ts)
}

// Erase bulk-deletes everything derived for the clamped span: stakes,
// overlapping batches with their excess records, keep records, and the
// hosting windows' prize settings. The span re-settles from scratch
// afterwards.
func (s *Service) Erase(ctx context.Context, from, to time.Time) (persistence.PurgeCounts, domain.TimeWindow, error) {
	if err := validateRange(from, to); err != nil {
		return persistence.PurgeCounts{}, domain.TimeWindow{}, err
	}

	var (
		counts persistence.PurgeCounts
		window domain.TimeWindow
	)
	err := s.store.Serializable(ctx, func(tx *sql.Tx) error {
		w, err := s.store.HostWindow(ctx, tx, from, to)
		if err != nil {
			return err
		}
		clampedFrom, clampedTo := w.Clamp(from, to)
		if !clampedFrom.Before(clampedTo) {
			return fmt.Errorf("%w: span is empty after clamping to window %d", domain.ErrInvalidInput, w.ID)
		}
		window = w

		counts, err = s.store.PurgeWindow(ctx, tx, clampedFrom, clampedTo)
		return err
	})
	if err != nil {
		return persistence.PurgeCounts{}, domain.TimeWindow{}, err
	}

	s.metrics.PurgeRuns.Inc()
	s.metrics.PurgeRowsDeleted.WithLabelValues("stake_records").Add(float64(counts.Stakes))
	s.metrics.PurgeRowsDeleted.WithLabelValues("settle_batches").Add(float64(counts.Batches))
	s.metrics.PurgeRowsDeleted.WithLabelValues("excess_records").Add(float64(counts.Excess))
	s.metrics.PurgeRowsDeleted.WithLabelValues("accept_self_records").Add(float64(counts.Keeps))
	s.metrics.PurgeRowsDeleted.WithLabelValues("prize_settings").Add(float64(counts.Prizes))

	s.log.Warn().
		Int64("window_id", window.ID).
		Int64("stakes", counts.Stakes).
		Int64("batches", counts.Batches).
		Msg("bulk erase complete")
	return counts, window, nil
}

type needKind int

const (
	needSettle needKind = iota
	needKeep
)

// computeNeeds runs the shared pipeline: cumulative aggregation from the
// window start, boxed redistribution per the live rule, cap resolution,
// and the incremental delta against prior records in the span.
func (s *Service) computeNeeds(ctx context.Context, tx *sql.Tx, window domain.TimeWindow, clampedTo time.Time, kind needKind) ([]core.Need, error) {
	aggStart := time.Now()
	totals, err := s.store.AggregateTotals(ctx, tx, window.StartAt, clampedTo)
	if err != nil {
		return nil, err
	}
	s.metrics.AggregationDuration.Observe(time.Since(aggStart).Seconds())

	var numbers int
	for _, cat := range domain.Categories {
		numbers += len(totals.Keys(cat))
	}
	s.metrics.AggregationNumbers.Observe(float64(numbers))

	rule, err := s.store.LoadCapRule(ctx, tx)
	if err != nil {
		return nil, err
	}
	core.ApplyRedistribution(totals, rule.ConvertBoxed)
	caps := core.ResolveCaps(rule)

	if kind == needSettle {
		already, err := s.store.SumSentByNumber(ctx, tx, window.StartAt, clampedTo)
		if err != nil {
			return nil, err
		}
		return core.SettlementNeeds(totals, caps, already), nil
	}

	already, err := s.store.SumKeptByNumber(ctx, tx, window.StartAt, clampedTo)
	if err != nil {
		return nil, err
	}
	return core.KeepNeeds(totals, caps, already), nil
}

// validateRange rejects an inverted explicit range before any window
// lookup. Zero values are wildcards and always pass.
func validateRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return fmt.Errorf("%w: from %s is not before to %s", domain.ErrInvalidInput, from, to)
	}
	return nil
}
