// Package prize computes prize liability for a window: how much the
// operator owes on kept stakes and how much the layoff counterparty owes
// on forwarded stakes, given the winning numbers and payout rates.
// The calculator is pure and read-only; it can run any number of times
// against the same flows.
package prize

import (
	"math/big"
	"strings"

	"PoolLedger/internal/domain"
	"PoolLedger/internal/money"
)

// Flow is one number's inflow and forwarded amount over the report range.
type Flow struct {
	Inflow int64
	Sent   int64
}

// CategoryLiability aggregates one category's exposure split.
type CategoryLiability struct {
	Inflow          int64 `json:"inflow"`
	Kept            int64 `json:"kept"`
	Sent            int64 `json:"sent"`
	SelfLiability   int64 `json:"selfLiability"`
	DealerLiability int64 `json:"dealerLiability"`
}

// Result is the full liability report.
type Result struct {
	Categories  map[domain.Category]*CategoryLiability
	SelfTotal   int64
	DealerTotal int64
}

// Total returns combined liability across both sides, saturating at the
// int64 bound.
func (r Result) Total() int64 {
	sum := new(big.Int).Add(big.NewInt(r.SelfTotal), big.NewInt(r.DealerTotal))
	return money.SatInt64(sum)
}

// Multiplier returns how many payout units one staked unit on (cat, num)
// wins under the configured winning numbers:
//
//	TOP3       1 on the exact 3-digit combination
//	TOD3       1 on any digit permutation of it (pre-redistribution bets)
//	TOP2       1 on its last two digits
//	BOTTOM2    1 on the exact 2-digit-low combination
//	RUN_TOP    occurrences of the digit within the 3-digit combination (0-3)
//	RUN_BOTTOM occurrences within the 2-digit-low combination (0-2)
func Multiplier(cat domain.Category, num, win3, winLow2 string) int64 {
	switch cat {
	case domain.CategoryTop3:
		if len(win3) == 3 && num == win3 {
			return 1
		}
	case domain.CategoryTod3:
		if len(win3) == 3 && len(num) == 3 && domain.SortedDigits(num) == domain.SortedDigits(win3) {
			return 1
		}
	case domain.CategoryTop2:
		if len(win3) == 3 && num == win3[1:] {
			return 1
		}
	case domain.CategoryBottom2:
		if len(winLow2) == 2 && num == winLow2 {
			return 1
		}
	case domain.CategoryRunTop:
		if len(num) == 1 {
			return int64(strings.Count(win3, num))
		}
	case domain.CategoryRunBottom:
		if len(num) == 1 {
			return int64(strings.Count(winLow2, num))
		}
	}
	return 0
}

// ComputeLiability splits prize liability between kept and forwarded
// stakes. Sent is clamped into [0, inflow] first, so a stale excess row
// can never push kept negative. The amount x rate x multiplier products
// run through big.Int and the reported liabilities saturate at the int64
// bounds instead of wrapping.
func ComputeLiability(setting domain.PrizeSetting, flows map[domain.NumberKey]Flow) Result {
	res := Result{Categories: make(map[domain.Category]*CategoryLiability, len(domain.Categories))}
	self := make(map[domain.Category]*big.Int, len(domain.Categories))
	dealer := make(map[domain.Category]*big.Int, len(domain.Categories))
	for _, cat := range domain.Categories {
		res.Categories[cat] = &CategoryLiability{}
		self[cat] = new(big.Int)
		dealer[cat] = new(big.Int)
	}

	for key, f := range flows {
		cl, ok := res.Categories[key.Category]
		if !ok {
			continue
		}

		inflow := f.Inflow
		if inflow < 0 {
			inflow = 0
		}
		sent := f.Sent
		if sent < 0 {
			sent = 0
		}
		if sent > inflow {
			sent = inflow
		}
		kept := inflow - sent

		cl.Inflow += inflow
		cl.Kept += kept
		cl.Sent += sent

		mult := Multiplier(key.Category, key.Number, setting.Win3, setting.WinLow2)
		if mult == 0 {
			continue
		}
		rate := setting.Payouts[key.Category]
		self[key.Category].Add(self[key.Category], liabilityProduct(kept, rate, mult))
		dealer[key.Category].Add(dealer[key.Category], liabilityProduct(sent, rate, mult))
	}

	selfTotal := new(big.Int)
	dealerTotal := new(big.Int)
	for _, cat := range domain.Categories {
		cl := res.Categories[cat]
		cl.SelfLiability = money.SatInt64(self[cat])
		cl.DealerLiability = money.SatInt64(dealer[cat])
		selfTotal.Add(selfTotal, self[cat])
		dealerTotal.Add(dealerTotal, dealer[cat])
	}
	res.SelfTotal = money.SatInt64(selfTotal)
	res.DealerTotal = money.SatInt64(dealerTotal)
	return res
}

func liabilityProduct(amount, rate, mult int64) *big.Int {
	p := money.Mul(amount, rate)
	return p.Mul(p, big.NewInt(mult))
}
