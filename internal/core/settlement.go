package core

import "PoolLedger/internal/domain"

// Need is one positive incremental delta a settlement or keep run must
// record for a number.
type Need struct {
	Key    domain.NumberKey
	Amount int64
}

// SettlementNeeds computes the excess amounts a run must newly forward.
//
// For each number: demand = max(cumulativeInflow - cap, 0); the run records
// demand - alreadySent when positive. Inflow is cumulative from the host
// window's start, and alreadySent sums every prior batch inside the same
// span, so repeated or widening runs never double-send. Numbers whose
// delta is zero or negative produce no record at all.
//
// Results are ordered by canonical category order then number, so record
// insertion order is deterministic across runs.
func SettlementNeeds(totals Totals, caps map[domain.Category]int64, alreadySent map[domain.NumberKey]int64) []Need {
	return needs(totals, func(cat domain.Category, inflow int64) int64 {
		demand := inflow - caps[cat]
		if demand < 0 {
			return 0
		}
		return demand
	}, alreadySent)
}

// KeepNeeds is the retained-side mirror: target = min(cumulativeInflow, cap),
// minus what previous runs already kept.
func KeepNeeds(totals Totals, caps map[domain.Category]int64, alreadyKept map[domain.NumberKey]int64) []Need {
	return needs(totals, func(cat domain.Category, inflow int64) int64 {
		if cap := caps[cat]; inflow > cap {
			return cap
		}
		return inflow
	}, alreadyKept)
}

func needs(totals Totals, target func(domain.Category, int64) int64, already map[domain.NumberKey]int64) []Need {
	var out []Need
	for _, cat := range domain.Categories {
		for _, num := range totals.Keys(cat) {
			inflow := totals.Get(cat, num)
			if inflow <= 0 {
				continue
			}
			key := domain.NumberKey{Category: cat, Number: num}
			need := target(cat, inflow) - already[key]
			if need > 0 {
				out = append(out, Need{Key: key, Amount: need})
			}
		}
	}
	return out
}
