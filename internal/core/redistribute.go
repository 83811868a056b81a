package core

import (
	"PoolLedger/internal/domain"
	"PoolLedger/internal/money"
)

// Redistribute fans each boxed (TOD3) number's aggregate across its distinct
// digit permutations and returns the per-straight-number contributions.
// Each permutation receives amount/len(perms) rounded half-even, so the
// total drift per boxed number is bounded by permutationCount-1 units.
// When convert is false the result is empty and TOD3 aggregates stand.
func Redistribute(boxedTotals map[string]int64, convert bool) map[string]int64 {
	if !convert || len(boxedTotals) == 0 {
		return map[string]int64{}
	}

	out := make(map[string]int64, len(boxedTotals)*6)
	for num, amount := range boxedTotals {
		perms := domain.Permutations3(num)
		perEach := money.DivInt64(amount, int64(len(perms)), money.RoundHalfEven)
		for _, p := range perms {
			out[p] += perEach
		}
	}
	return out
}

// ApplyRedistribution merges boxed stakes into TOP3 and empties TOD3.
// After this, TOD3 always reports zero demand and a zero threshold: its
// stake has been fully reassigned to the straight category.
func ApplyRedistribution(totals Totals, convert bool) {
	if !convert {
		return
	}
	redistributed := Redistribute(totals[domain.CategoryTod3], true)
	for num, amount := range redistributed {
		totals.Add(domain.CategoryTop3, num, amount)
	}
	delete(totals, domain.CategoryTod3)
}
