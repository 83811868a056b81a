package cap

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/testutil"
)

var (
	metricsOnce sync.Once
	testMetrics *observability.Metrics
)

func sharedMetrics() *observability.Metrics {
	metricsOnce.Do(func() { testMetrics = observability.NewMetrics() })
	return testMetrics
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func setupService(t *testing.T) (*Service, *persistence.Store, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t, func(ctx context.Context, db *sql.DB) error {
		m := persistence.NewMigrator(db, "../../migrations",
			observability.NewLoggerWithLevel("migrator", zerolog.ErrorLevel))
		return m.Up(ctx)
	})
	store := persistence.NewStore(db)
	clock := fixedClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(store, clock, sharedMetrics()), store, cleanup
}

func seedStakes(t *testing.T, store *persistence.Store, start time.Time, amounts map[string]int64) {
	t.Helper()
	for num, amount := range amounts {
		key := domain.NumberKey{Category: domain.CategoryTop2, Number: num}
		if err := store.InsertStake(context.Background(), key, "u1", amount, start.Add(time.Hour)); err != nil {
			t.Fatalf("insert stake: %v", err)
		}
	}
}

func TestRecalcAutoThreshold(t *testing.T) {
	svc, store, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.CreateWindow(ctx, start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("create window: %v", err)
	}
	seedStakes(t, store, start, map[string]int64{"45": 100, "57": 90, "89": 90, "11": 10})

	res, err := svc.Recalc(ctx, domain.CategoryTop2, time.Time{}, time.Time{}, 2)
	if err != nil {
		t.Fatalf("recalc: %v", err)
	}
	if res.Threshold != 90 {
		t.Fatalf("threshold = %d, want 90 (2nd largest aggregate)", res.Threshold)
	}
	if res.K != 2 {
		t.Fatalf("k = %d, want 2", res.K)
	}
	if res.EffectiveAt.IsZero() {
		t.Fatal("effectiveAt not set")
	}
	if len(res.TopSample) != 4 {
		t.Fatalf("sample has %d entries, want all 4", len(res.TopSample))
	}
	if res.TopSample[0].Number != "45" || res.TopSample[0].Total != 100 {
		t.Fatalf("sample head = %+v", res.TopSample[0])
	}

	rule, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	params := rule.Params(domain.CategoryTop2)
	if params.AutoThreshold != 90 || params.AutoCount != 2 {
		t.Fatalf("stored params = %+v", params)
	}

	// stored auto count wins when no explicit K
	res2, err := svc.Recalc(ctx, domain.CategoryTop2, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("recalc without k: %v", err)
	}
	if res2.K != 2 {
		t.Fatalf("k precedence: got %d, want stored 2", res2.K)
	}
}

func TestRecalcAllCoversEveryCategory(t *testing.T) {
	svc, store, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.CreateWindow(ctx, start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("create window: %v", err)
	}
	seedStakes(t, store, start, map[string]int64{"45": 100})

	results, err := svc.RecalcAll(ctx, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("recalc all: %v", err)
	}
	if len(results) != len(domain.Categories) {
		t.Fatalf("got %d results, want %d", len(results), len(domain.Categories))
	}
	for i, cat := range domain.Categories {
		if results[i].Category != cat {
			t.Fatalf("result %d is %s, want canonical order %s", i, results[i].Category, cat)
		}
	}
}

func TestSaveKeepsAutoStateAndPreviewStaysPure(t *testing.T) {
	svc, store, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.CreateWindow(ctx, start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("create window: %v", err)
	}
	seedStakes(t, store, start, map[string]int64{"45": 100, "57": 90})

	if _, err := svc.Recalc(ctx, domain.CategoryTop2, time.Time{}, time.Time{}, 1); err != nil {
		t.Fatalf("recalc: %v", err)
	}

	saved, err := svc.Save(ctx, PreviewInput{
		Mode: domain.CapModeManual,
		Categories: map[domain.Category]domain.CapCategoryParams{
			domain.CategoryTop2: {ManualThreshold: 500},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	params := saved.Params(domain.CategoryTop2)
	if params.ManualThreshold != 500 {
		t.Fatalf("manual threshold = %d, want 500", params.ManualThreshold)
	}
	if params.AutoThreshold != 100 || params.AutoCount != 1 {
		t.Fatalf("save clobbered auto state: %+v", params)
	}

	preview, err := svc.Preview(ctx, PreviewInput{
		Mode: domain.CapModeManual,
		Categories: map[domain.Category]domain.CapCategoryParams{
			domain.CategoryTop2: {ManualThreshold: 42},
		},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview[domain.CategoryTop2].Threshold != 42 {
		t.Fatalf("preview threshold = %d, want candidate 42", preview[domain.CategoryTop2].Threshold)
	}

	// preview must not have touched the stored rule
	rule, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if rule.Params(domain.CategoryTop2).ManualThreshold != 500 {
		t.Fatal("preview mutated the stored rule")
	}
}
