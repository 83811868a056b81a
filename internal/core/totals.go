package core

import (
	"sort"

	"PoolLedger/internal/domain"
)

// Totals is the in-memory aggregation arena: per-category, per-number stake
// sums for one time range. The 3-digit categories top out at 1000 numbers,
// so a settlement pass over the whole arena stays cheap.
type Totals map[domain.Category]map[string]int64

func NewTotals() Totals {
	return make(Totals, len(domain.Categories))
}

// Add accumulates amount onto (cat, number).
func (t Totals) Add(cat domain.Category, number string, amount int64) {
	m, ok := t[cat]
	if !ok {
		m = make(map[string]int64)
		t[cat] = m
	}
	m[number] += amount
}

// Get returns the aggregate for (cat, number), zero when absent.
func (t Totals) Get(cat domain.Category, number string) int64 {
	return t[cat][number]
}

// Sum returns the grand total across one category.
func (t Totals) Sum(cat domain.Category) int64 {
	var sum int64
	for _, v := range t[cat] {
		sum += v
	}
	return sum
}

// Keys returns the category's numbers in ascending order. Iteration order
// must be stable so repeated runs emit records deterministically.
func (t Totals) Keys(cat domain.Category) []string {
	m := t[cat]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RankEntry is one row of a category ranking: a number and its aggregate.
type RankEntry struct {
	Number string `json:"number"`
	Total  int64  `json:"total"`
}

// Rank returns the category's numbers ordered by aggregate descending,
// ties broken by number ascending so rankings are deterministic.
func (t Totals) Rank(cat domain.Category) []RankEntry {
	m := t[cat]
	out := make([]RankEntry, 0, len(m))
	for num, total := range m {
		out = append(out, RankEntry{Number: num, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Number < out[j].Number
	})
	return out
}
