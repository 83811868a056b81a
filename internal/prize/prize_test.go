package prize

import (
	"math"
	"testing"

	"PoolLedger/internal/domain"
)

func TestMultiplier(t *testing.T) {
	const win3, winLow2 = "457", "89"

	cases := []struct {
		cat  domain.Category
		num  string
		want int64
	}{
		{domain.CategoryTop3, "457", 1},
		{domain.CategoryTop3, "475", 0},
		{domain.CategoryTod3, "475", 1},
		{domain.CategoryTod3, "745", 1},
		{domain.CategoryTod3, "455", 0},
		{domain.CategoryTop2, "57", 1},
		{domain.CategoryTop2, "45", 0},
		{domain.CategoryBottom2, "89", 1},
		{domain.CategoryBottom2, "98", 0},
		{domain.CategoryRunTop, "4", 1},
		{domain.CategoryRunTop, "5", 1},
		{domain.CategoryRunTop, "9", 0},
		{domain.CategoryRunBottom, "8", 1},
		{domain.CategoryRunBottom, "9", 1},
		{domain.CategoryRunBottom, "4", 0},
	}
	for _, tc := range cases {
		if got := Multiplier(tc.cat, tc.num, win3, winLow2); got != tc.want {
			t.Errorf("Multiplier(%s, %q) = %d, want %d", tc.cat, tc.num, got, tc.want)
		}
	}
}

func TestMultiplierRepeatedDigits(t *testing.T) {
	if got := Multiplier(domain.CategoryRunTop, "7", "777", "77"); got != 3 {
		t.Fatalf("run-top on 777 = %d, want 3", got)
	}
	if got := Multiplier(domain.CategoryRunBottom, "7", "777", "77"); got != 2 {
		t.Fatalf("run-bottom on 77 = %d, want 2", got)
	}
	if got := Multiplier(domain.CategoryRunTop, "7", "727", "27"); got != 2 {
		t.Fatalf("run-top on 727 = %d, want 2", got)
	}
}

func TestComputeLiabilitySplit(t *testing.T) {
	setting := domain.PrizeSetting{
		Win3:    "457",
		WinLow2: "89",
		Payouts: map[domain.Category]int64{
			domain.CategoryTop3:    500,
			domain.CategoryTop2:    60,
			domain.CategoryRunTop:  3,
		},
	}
	flows := map[domain.NumberKey]Flow{
		// winning number, partially forwarded
		{Category: domain.CategoryTop3, Number: "457"}: {Inflow: 1000, Sent: 400},
		// losing number still counts into inflow totals
		{Category: domain.CategoryTop3, Number: "111"}: {Inflow: 300, Sent: 0},
		{Category: domain.CategoryTop2, Number: "57"}:  {Inflow: 200, Sent: 200},
		{Category: domain.CategoryRunTop, Number: "4"}: {Inflow: 50, Sent: 0},
	}

	res := ComputeLiability(setting, flows)

	top3 := res.Categories[domain.CategoryTop3]
	if top3.Inflow != 1300 || top3.Kept != 900 || top3.Sent != 400 {
		t.Fatalf("top3 flows = %+v", top3)
	}
	if top3.SelfLiability != 600*500 {
		t.Errorf("top3 self liability = %d, want %d", top3.SelfLiability, 600*500)
	}
	if top3.DealerLiability != 400*500 {
		t.Errorf("top3 dealer liability = %d, want %d", top3.DealerLiability, 400*500)
	}

	top2 := res.Categories[domain.CategoryTop2]
	if top2.SelfLiability != 0 || top2.DealerLiability != 200*60 {
		t.Errorf("top2 liabilities = %d/%d", top2.SelfLiability, top2.DealerLiability)
	}

	run := res.Categories[domain.CategoryRunTop]
	if run.SelfLiability != 50*3 {
		t.Errorf("run-top self liability = %d, want %d", run.SelfLiability, 50*3)
	}

	wantSelf := int64(600*500 + 50*3)
	wantDealer := int64(400*500 + 200*60)
	if res.SelfTotal != wantSelf || res.DealerTotal != wantDealer {
		t.Fatalf("totals = %d/%d, want %d/%d", res.SelfTotal, res.DealerTotal, wantSelf, wantDealer)
	}
	if res.Total() != wantSelf+wantDealer {
		t.Fatalf("combined total = %d", res.Total())
	}
}

func TestComputeLiabilityLargeStakeSaturates(t *testing.T) {
	setting := domain.PrizeSetting{
		Win3:    "457",
		WinLow2: "89",
		Payouts: map[domain.Category]int64{domain.CategoryTop3: 900},
	}
	// kept x rate = 2^55 * 900, well past int64 max
	flows := map[domain.NumberKey]Flow{
		{Category: domain.CategoryTop3, Number: "457"}: {Inflow: 1 << 55},
	}

	res := ComputeLiability(setting, flows)

	top3 := res.Categories[domain.CategoryTop3]
	if top3.SelfLiability < 0 {
		t.Fatalf("self liability wrapped negative: %d", top3.SelfLiability)
	}
	if top3.SelfLiability != math.MaxInt64 {
		t.Fatalf("self liability = %d, want saturation at %d", top3.SelfLiability, int64(math.MaxInt64))
	}
	if res.SelfTotal != math.MaxInt64 || res.DealerTotal != 0 {
		t.Fatalf("totals = %d/%d", res.SelfTotal, res.DealerTotal)
	}
	if res.Total() < 0 {
		t.Fatalf("combined total wrapped negative: %d", res.Total())
	}
}

func TestComputeLiabilityClampsSent(t *testing.T) {
	setting := domain.PrizeSetting{
		Win3:    "123",
		WinLow2: "45",
		Payouts: map[domain.Category]int64{domain.CategoryTop3: 100},
	}
	flows := map[domain.NumberKey]Flow{
		{Category: domain.CategoryTop3, Number: "123"}: {Inflow: 100, Sent: 250},
	}
	res := ComputeLiability(setting, flows)
	top3 := res.Categories[domain.CategoryTop3]
	if top3.Kept != 0 || top3.Sent != 100 {
		t.Fatalf("clamp failed: kept=%d sent=%d", top3.Kept, top3.Sent)
	}
	if top3.SelfLiability != 0 || top3.DealerLiability != 100*100 {
		t.Fatalf("clamped liabilities = %d/%d", top3.SelfLiability, top3.DealerLiability)
	}
}
