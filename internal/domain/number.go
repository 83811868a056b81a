package domain

// NumberKey identifies a number within a category. Number rows are created
// lazily the first time a stake (or a boxed redistribution) references them.
type NumberKey struct {
	Category Category
	Number   string
}

func (k NumberKey) String() string {
	return string(k.Category) + "|" + k.Number
}

// Permutations3 returns the distinct digit arrangements of a 3-digit string:
// 1 when all digits are equal, 3 when exactly two match, 6 when all differ.
// Inputs that are not 3 characters long are returned as a single-element set.
func Permutations3(s string) []string {
	if len(s) != 3 {
		return []string{s}
	}
	a, b, c := s[0], s[1], s[2]
	candidates := [6]string{
		string([]byte{a, b, c}), string([]byte{a, c, b}),
		string([]byte{b, a, c}), string([]byte{b, c, a}),
		string([]byte{c, a, b}), string([]byte{c, b, a}),
	}
	seen := make(map[string]struct{}, 6)
	out := make([]string, 0, 6)
	for _, p := range candidates {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SortedDigits returns the digits of s in ascending order. Two 3-digit
// numbers are boxed-equivalent iff their sorted digits match.
func SortedDigits(s string) string {
	b := []byte(s)
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1] > b[j]; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
	return string(b)
}
