package domain_test

import (
	"PoolLedger/internal/domain"
	"sort"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"TOP3", "TOD3", "TOP2", "BOTTOM2", "RUN_TOP", "RUN_BOTTOM"} {
		if _, err := domain.ParseCategory(s); err != nil {
			t.Errorf("ParseCategory(%q): %v", s, err)
		}
	}
	if _, err := domain.ParseCategory("TOP4"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestCategory_ValidNumber(t *testing.T) {
	cases := []struct {
		cat  domain.Category
		num  string
		want bool
	}{
		{domain.CategoryTop3, "123", true},
		{domain.CategoryTop3, "12", false},
		{domain.CategoryTop3, "12a", false},
		{domain.CategoryTod3, "007", true},
		{domain.CategoryTop2, "45", true},
		{domain.CategoryTop2, "456", false},
		{domain.CategoryRunTop, "7", true},
		{domain.CategoryRunBottom, "", false},
	}
	for _, tc := range cases {
		if got := tc.cat.ValidNumber(tc.num); got != tc.want {
			t.Errorf("%s.ValidNumber(%q) = %v, want %v", tc.cat, tc.num, got, tc.want)
		}
	}
}

func TestPermutations3(t *testing.T) {
	cases := []struct {
		num  string
		want []string
	}{
		{"111", []string{"111"}},
		{"112", []string{"112", "121", "211"}},
		{"123", []string{"123", "132", "213", "231", "312", "321"}},
	}
	for _, tc := range cases {
		got := domain.Permutations3(tc.num)
		sort.Strings(got)
		sort.Strings(tc.want)
		if len(got) != len(tc.want) {
			t.Fatalf("Permutations3(%q) = %v, want %v", tc.num, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Permutations3(%q) = %v, want %v", tc.num, got, tc.want)
				break
			}
		}
	}
}

func TestSortedDigits(t *testing.T) {
	if got := domain.SortedDigits("321"); got != "123" {
		t.Errorf("SortedDigits(321) = %q", got)
	}
	if got := domain.SortedDigits("100"); got != "001" {
		t.Errorf("SortedDigits(100) = %q", got)
	}
}

func TestTimeWindow_Clamp(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)
	w := domain.TimeWindow{ID: 1, StartAt: start, EndAt: end}

	// zero values select window edges
	f, to := w.Clamp(time.Time{}, time.Time{})
	if !f.Equal(start) || !to.Equal(end) {
		t.Errorf("zero clamp: got [%v, %v)", f, to)
	}

	// before start / after end clamp inward
	f, to = w.Clamp(start.Add(-time.Hour), end.Add(time.Hour))
	if !f.Equal(start) || !to.Equal(end) {
		t.Errorf("outer clamp: got [%v, %v)", f, to)
	}

	// interior span kept as-is
	f, to = w.Clamp(start.Add(time.Hour), start.Add(2*time.Hour))
	if !f.Equal(start.Add(time.Hour)) || !to.Equal(start.Add(2*time.Hour)) {
		t.Errorf("interior clamp: got [%v, %v)", f, to)
	}
}

func TestTimeWindow_Contains(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := domain.TimeWindow{StartAt: start, EndAt: start.Add(time.Hour)}
	if !w.Contains(start) {
		t.Error("start should be inside (half-open)")
	}
	if w.Contains(start.Add(time.Hour)) {
		t.Error("end should be outside (half-open)")
	}
}
