package query

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PoolLedger/internal/domain"
	"PoolLedger/internal/observability"
	"PoolLedger/internal/persistence"
	"PoolLedger/internal/testutil"
)

func setupQuery(t *testing.T) (*Service, *persistence.Store, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t, func(ctx context.Context, db *sql.DB) error {
		m := persistence.NewMigrator(db, "../../migrations",
			observability.NewLoggerWithLevel("migrator", zerolog.ErrorLevel))
		return m.Up(ctx)
	})
	store := persistence.NewStore(db)
	return NewService(store), store, cleanup
}

func seedSettledWindow(t *testing.T, store *persistence.Store) domain.TimeWindow {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window, err := store.CreateWindow(ctx, start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("create window: %v", err)
	}

	key := domain.NumberKey{Category: domain.CategoryTop3, Number: "457"}
	if err := store.InsertStake(ctx, key, "u1", 500, start.Add(time.Hour)); err != nil {
		t.Fatalf("insert stake: %v", err)
	}

	// one committed batch that forwarded 200 of the 500
	now := start.Add(2 * time.Hour)
	batch := domain.SettleBatch{ID: uuid.New(), From: start, To: now, CreatedAt: now}
	err = store.Serializable(ctx, func(tx *sql.Tx) error {
		return store.CreateBatch(ctx, tx, batch, []domain.ExcessRecord{
			{ID: uuid.New(), BatchID: batch.ID, Key: key, Amount: 200, CreatedAt: now},
		})
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	setting := domain.PrizeSetting{
		TimeWindowID: window.ID,
		Win3:         "457",
		WinLow2:      "89",
		Payouts:      map[domain.Category]int64{domain.CategoryTop3: 2},
	}
	if err := store.UpsertPrizeSetting(ctx, setting); err != nil {
		t.Fatalf("upsert prize setting: %v", err)
	}
	return window
}

func TestBuildSummarySplitsLiability(t *testing.T) {
	svc, store, cleanup := setupQuery(t)
	defer cleanup()

	seedSettledWindow(t, store)

	summary, err := svc.BuildSummary(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	top3 := summary.Categories[domain.CategoryTop3]
	if top3.Inflow != 500 || top3.Sent != 200 || top3.Kept != 300 {
		t.Fatalf("top3 flows = %+v", top3)
	}
	if top3.SelfLiability != 600 {
		t.Errorf("self liability = %d, want kept 300 * payout 2", top3.SelfLiability)
	}
	if top3.DealerLiability != 400 {
		t.Errorf("dealer liability = %d, want sent 200 * payout 2", top3.DealerLiability)
	}
	if summary.Totals.Inflow != 500 || summary.Totals.SelfLiability != 600 || summary.Totals.DealerLiability != 400 {
		t.Fatalf("totals = %+v", summary.Totals)
	}
}

func TestBuildSummaryWithoutPrizeSetting(t *testing.T) {
	svc, store, cleanup := setupQuery(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.CreateWindow(ctx, start, start.Add(24*time.Hour)); err != nil {
		t.Fatalf("create window: %v", err)
	}
	key := domain.NumberKey{Category: domain.CategoryTop3, Number: "457"}
	if err := store.InsertStake(ctx, key, "u1", 500, start.Add(time.Hour)); err != nil {
		t.Fatalf("insert stake: %v", err)
	}

	summary, err := svc.BuildSummary(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("summary without prize setting: %v", err)
	}
	top3 := summary.Categories[domain.CategoryTop3]
	if top3.Inflow != 500 {
		t.Fatalf("inflow = %d, want 500", top3.Inflow)
	}
	if top3.SelfLiability != 0 || top3.DealerLiability != 0 {
		t.Fatalf("liability should be zero without winning numbers: %+v", top3)
	}
}

func TestViewsPageThroughRecords(t *testing.T) {
	svc, store, cleanup := setupQuery(t)
	defer cleanup()
	ctx := context.Background()

	seedSettledWindow(t, store)

	page, err := svc.SettleView(ctx, time.Time{}, time.Time{}, 10, 0)
	if err != nil {
		t.Fatalf("settle view: %v", err)
	}
	if len(page.Rows) != 1 {
		t.Fatalf("settle view rows = %d, want 1", len(page.Rows))
	}
	row := page.Rows[0]
	if row.Category != domain.CategoryTop3 || row.Number != "457" || row.Amount != 200 {
		t.Fatalf("settle view row = %+v", row)
	}

	// keep side
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err = store.Serializable(ctx, func(tx *sql.Tx) error {
		return store.CreateKeepRecords(ctx, tx, []domain.AcceptSelfRecord{{
			ID:        uuid.New(),
			Key:       domain.NumberKey{Category: domain.CategoryTop3, Number: "457"},
			Amount:    300,
			From:      start,
			To:        start.Add(2 * time.Hour),
			CreatedAt: start.Add(2 * time.Hour),
		}})
	})
	if err != nil {
		t.Fatalf("create keep record: %v", err)
	}

	keepPage, err := svc.KeepView(ctx, time.Time{}, time.Time{}, 10, 0)
	if err != nil {
		t.Fatalf("keep view: %v", err)
	}
	if len(keepPage.Rows) != 1 || keepPage.Rows[0].Amount != 300 {
		t.Fatalf("keep view rows = %+v", keepPage.Rows)
	}
}
