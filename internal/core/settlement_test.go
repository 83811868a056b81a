package core_test

import (
	"PoolLedger/internal/core"
	"PoolLedger/internal/domain"
	"testing"
)

func key(cat domain.Category, num string) domain.NumberKey {
	return domain.NumberKey{Category: cat, Number: num}
}

func TestSettlementNeeds_CapBoundary(t *testing.T) {
	caps := map[domain.Category]int64{domain.CategoryTop3: 500}

	atCap := core.NewTotals()
	atCap.Add(domain.CategoryTop3, "123", 500)
	if needs := core.SettlementNeeds(atCap, caps, nil); len(needs) != 0 {
		t.Errorf("inflow == cap must send nothing, got %v", needs)
	}

	overByOne := core.NewTotals()
	overByOne.Add(domain.CategoryTop3, "123", 501)
	needs := core.SettlementNeeds(overByOne, caps, nil)
	if len(needs) != 1 || needs[0].Amount != 1 {
		t.Errorf("inflow == cap+1 must send exactly 1, got %v", needs)
	}
}

func TestSettlementNeeds_IncrementalScenario(t *testing.T) {
	// Window scenario: stakes on "123" arrive as 300 then 400, cap 500.
	caps := map[domain.Category]int64{domain.CategoryTop3: 500}
	k := key(domain.CategoryTop3, "123")

	// First run sees only the 300: under cap, nothing to send.
	firstRun := core.NewTotals()
	firstRun.Add(domain.CategoryTop3, "123", 300)
	if needs := core.SettlementNeeds(firstRun, caps, nil); len(needs) != 0 {
		t.Fatalf("cumulative 300 <= 500 must send nothing, got %v", needs)
	}

	// Second run sees the cumulative 700; demand 200 and nothing sent yet.
	secondRun := core.NewTotals()
	secondRun.Add(domain.CategoryTop3, "123", 700)
	needs := core.SettlementNeeds(secondRun, caps, nil)
	if len(needs) != 1 || needs[0].Amount != 200 {
		t.Fatalf("cumulative 700 must send 200, got %v", needs)
	}

	// Replay after the 200 was recorded: delta is zero, no new record.
	already := map[domain.NumberKey]int64{k: 200}
	if needs := core.SettlementNeeds(secondRun, caps, already); len(needs) != 0 {
		t.Errorf("replay must produce no new records, got %v", needs)
	}
}

func TestSettlementNeeds_MonotonicUnion(t *testing.T) {
	// Incremental runs [w,t1) then [w,t2) must together equal one run over
	// [w,t2): the second run's delta fills the gap exactly.
	caps := map[domain.Category]int64{domain.CategoryTop2: 100}

	t1 := core.NewTotals()
	t1.Add(domain.CategoryTop2, "45", 180)
	firstNeeds := core.SettlementNeeds(t1, caps, nil)
	if len(firstNeeds) != 1 || firstNeeds[0].Amount != 80 {
		t.Fatalf("first run: got %v, want 80", firstNeeds)
	}

	t2 := core.NewTotals()
	t2.Add(domain.CategoryTop2, "45", 250)
	already := map[domain.NumberKey]int64{key(domain.CategoryTop2, "45"): 80}
	secondNeeds := core.SettlementNeeds(t2, caps, already)
	if len(secondNeeds) != 1 || secondNeeds[0].Amount != 70 {
		t.Fatalf("second run: got %v, want 70", secondNeeds)
	}

	oneShot := core.SettlementNeeds(t2, caps, nil)
	if oneShot[0].Amount != firstNeeds[0].Amount+secondNeeds[0].Amount {
		t.Errorf("union %d+%d must equal one-shot %d",
			firstNeeds[0].Amount, secondNeeds[0].Amount, oneShot[0].Amount)
	}
}

func TestKeepNeeds_MirrorsSettlement(t *testing.T) {
	caps := map[domain.Category]int64{domain.CategoryTop3: 500}

	totals := core.NewTotals()
	totals.Add(domain.CategoryTop3, "123", 700) // keep target = min(700, 500)
	totals.Add(domain.CategoryTop3, "456", 200) // keep target = 200

	needs := core.KeepNeeds(totals, caps, nil)
	byKey := map[domain.NumberKey]int64{}
	for _, n := range needs {
		byKey[n.Key] = n.Amount
	}
	if byKey[key(domain.CategoryTop3, "123")] != 500 {
		t.Errorf("123: got %d, want 500", byKey[key(domain.CategoryTop3, "123")])
	}
	if byKey[key(domain.CategoryTop3, "456")] != 200 {
		t.Errorf("456: got %d, want 200", byKey[key(domain.CategoryTop3, "456")])
	}

	// Replay keeps nothing new.
	if replay := core.KeepNeeds(totals, caps, byKey); len(replay) != 0 {
		t.Errorf("replay must keep nothing, got %v", replay)
	}
}

func TestConservation_KeptPlusSentNeverExceedsInflow(t *testing.T) {
	caps := map[domain.Category]int64{domain.CategoryTop3: 300}

	// Simulate a sequence of widening cumulative runs with both ledgers.
	cumulatives := []int64{100, 250, 300, 450, 900}
	sent := map[domain.NumberKey]int64{}
	kept := map[domain.NumberKey]int64{}
	k := key(domain.CategoryTop3, "007")

	for _, inflow := range cumulatives {
		totals := core.NewTotals()
		totals.Add(domain.CategoryTop3, "007", inflow)

		for _, n := range core.SettlementNeeds(totals, caps, sent) {
			sent[n.Key] += n.Amount
		}
		for _, n := range core.KeepNeeds(totals, caps, kept) {
			kept[n.Key] += n.Amount
		}

		if sent[k]+kept[k] > inflow {
			t.Fatalf("at inflow %d: sent %d + kept %d exceeds inflow",
				inflow, sent[k], kept[k])
		}
	}

	// At the end everything staked is accounted for exactly.
	if sent[k] != 600 || kept[k] != 300 {
		t.Errorf("final: sent %d kept %d, want 600/300", sent[k], kept[k])
	}
}

func TestSettlementNeeds_DeterministicOrder(t *testing.T) {
	caps := map[domain.Category]int64{
		domain.CategoryTop3: 0,
		domain.CategoryTop2: 0,
	}
	totals := core.NewTotals()
	totals.Add(domain.CategoryTop2, "99", 10)
	totals.Add(domain.CategoryTop3, "111", 10)
	totals.Add(domain.CategoryTop3, "000", 10)

	needs := core.SettlementNeeds(totals, caps, nil)
	want := []domain.NumberKey{
		key(domain.CategoryTop3, "000"),
		key(domain.CategoryTop3, "111"),
		key(domain.CategoryTop2, "99"),
	}
	if len(needs) != len(want) {
		t.Fatalf("got %d needs, want %d", len(needs), len(want))
	}
	for i := range want {
		if needs[i].Key != want[i] {
			t.Errorf("needs[%d] = %v, want %v", i, needs[i].Key, want[i])
		}
	}
}
