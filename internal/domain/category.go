package domain

import "fmt"

// Category is one of the six bet categories accepted by the pool.
// Three digit-length classes (3, 2, 1), each with a straight and a
// complementary variant.
type Category string

const (
	CategoryTop3      Category = "TOP3"       // 3-digit straight
	CategoryTod3      Category = "TOD3"       // 3-digit boxed (wins on any permutation)
	CategoryTop2      Category = "TOP2"       // 2-digit high
	CategoryBottom2   Category = "BOTTOM2"    // 2-digit low
	CategoryRunTop    Category = "RUN_TOP"    // 1-digit running-high
	CategoryRunBottom Category = "RUN_BOTTOM" // 1-digit running-low
)

// Categories lists all categories in canonical order. Recompute-all and
// report rendering iterate this slice so output ordering is stable.
var Categories = []Category{
	CategoryTop3, CategoryTod3, CategoryTop2,
	CategoryBottom2, CategoryRunTop, CategoryRunBottom,
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// DigitLen returns the fixed digit-string length for the category.
func (c Category) DigitLen() int {
	switch c {
	case CategoryTop3, CategoryTod3:
		return 3
	case CategoryTop2, CategoryBottom2:
		return 2
	case CategoryRunTop, CategoryRunBottom:
		return 1
	default:
		return 0
	}
}

func (c Category) String() string { return string(c) }

// ValidNumber reports whether num is a well-formed digit string for c.
func (c Category) ValidNumber(num string) bool {
	if len(num) != c.DigitLen() {
		return false
	}
	for i := 0; i < len(num); i++ {
		if num[i] < '0' || num[i] > '9' {
			return false
		}
	}
	return true
}
