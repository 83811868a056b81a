package core

import "PoolLedger/internal/domain"

// DefaultTopK is the AUTO-mode rank count used when a category has no
// configured count.
const DefaultTopK = 300

// SampleSize is how many top entries a recompute persists for operator
// review.
const SampleSize = 10

// ResolveCaps returns the effective per-category threshold.
//
// MANUAL mode reads the fixed per-category amount; missing or negative
// values resolve to 0, which means no cap: every staked unit is
// forwarded. AUTO mode resolves to the stored top-K threshold snapshot.
// When boxed conversion is on, TOD3 always resolves to 0 because its
// stake lives in TOP3 by the time caps apply.
func ResolveCaps(rule domain.CapRule) map[domain.Category]int64 {
	caps := make(map[domain.Category]int64, len(domain.Categories))
	for _, cat := range domain.Categories {
		p := rule.Params(cat)
		var v int64
		if rule.Mode == domain.CapModeAuto {
			v = p.AutoThreshold
		} else {
			v = p.ManualThreshold
		}
		if v < 0 {
			v = 0
		}
		if cat == domain.CategoryTod3 && rule.ConvertBoxed {
			v = 0
		}
		caps[cat] = v
	}
	return caps
}

// AutoThreshold computes the top-K threshold from a descending ranking:
// the K-th largest aggregate, or 0 when K <= 0 or the ranking is empty.
//
// Ties at the boundary are not rank-broken: the engine later caps by
// amount comparison, so every number whose aggregate ties the threshold
// is exempt even if that exceeds K numbers. This is a deliberate
// simplification of the cap policy, not an off-by-one.
func AutoThreshold(ranked []RankEntry, k int) int64 {
	if k <= 0 || len(ranked) == 0 {
		return 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[k-1].Total
}

// EffectiveTopK picks the rank count: an explicit request wins, then the
// stored per-category count, then DefaultTopK.
func EffectiveTopK(requested, stored int) int {
	if requested > 0 {
		return requested
	}
	if stored > 0 {
		return stored
	}
	return DefaultTopK
}
