package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimeWindow is a betting period [StartAt, EndAt). Caps and cumulative
// exposure are always measured from StartAt, never from an arbitrary
// caller-supplied from.
type TimeWindow struct {
	ID      int64
	StartAt time.Time
	EndAt   time.Time
}

// Contains reports whether t falls inside the half-open window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartAt) && t.Before(w.EndAt)
}

// Clamp restricts [from, to) to the window's bounds. Zero from/to select
// the window edge on that side.
func (w TimeWindow) Clamp(from, to time.Time) (time.Time, time.Time) {
	f, t := w.StartAt, w.EndAt
	if !from.IsZero() && from.After(f) {
		f = from
	}
	if !to.IsZero() && to.Before(t) {
		t = to
	}
	return f, t
}

// CapMode selects how per-category thresholds are resolved.
type CapMode string

const (
	CapModeManual CapMode = "MANUAL"
	CapModeAuto   CapMode = "AUTO"
)

// CapCategoryParams holds one category's slice of the cap rule.
// ManualThreshold applies in MANUAL mode; AutoCount/AutoThreshold/
// EffectiveAt are the AUTO-mode top-K snapshot.
type CapCategoryParams struct {
	ManualThreshold int64
	AutoCount       int
	AutoThreshold   int64
	EffectiveAt     time.Time
}

// CapRule is the singleton live cap configuration. Every save or
// recompute also appends a historical snapshot row.
type CapRule struct {
	Mode         CapMode
	ConvertBoxed bool // fold TOD3 stakes into TOP3 before cap accounting
	Categories   map[Category]CapCategoryParams
	UpdatedAt    time.Time
}

// Params returns the category's parameters, zero-valued when unset.
func (r CapRule) Params(c Category) CapCategoryParams {
	if r.Categories == nil {
		return CapCategoryParams{}
	}
	return r.Categories[c]
}

// SettleBatch is an immutable record of one settlement run, keyed by its
// exact clamped (From, To) span. The span is the idempotency key: a second
// run for the identical span returns this batch instead of recomputing.
type SettleBatch struct {
	ID        uuid.UUID
	From      time.Time
	To        time.Time
	CreatedAt time.Time
}

// ExcessRecord is the amount newly forwarded to the layoff counterparty
// for one number in one batch.
type ExcessRecord struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	Key       NumberKey
	Amount    int64
	CreatedAt time.Time
}

// AcceptSelfRecord is the kept-side mirror of ExcessRecord. It is scoped
// directly by the run's clamped time range rather than by a batch entity.
type AcceptSelfRecord struct {
	ID        uuid.UUID
	Key       NumberKey
	Amount    int64
	From      time.Time
	To        time.Time
	CreatedAt time.Time
}

// PrizeSetting carries a window's winning numbers and payout rate per unit
// staked, per category.
type PrizeSetting struct {
	TimeWindowID int64
	Win3         string // winning 3-digit combination
	WinLow2      string // winning 2-digit-low combination
	Payouts      map[Category]int64
}

// Clock supplies the current time. Services receive a Clock instead of
// calling time.Now so settlement runs stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
