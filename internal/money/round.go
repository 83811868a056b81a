package money

import (
	"math"
	"math/big"
	"sync"
)

// Stake amounts are int64 in the smallest currency unit. Intermediate
// products (amount x payout rate x multiplier) can exceed int64, so
// multiplication goes through big.Int.

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // banker's rounding (default)
	RoundDown
	RoundUp
)

var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// Mul performs a * b without overflow.
func Mul(a, b int64) *big.Int {
	result := getBig()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// Div performs numerator / denominator with the given rounding.
// Denominator must be positive.
func Div(numerator *big.Int, denominator int64, mode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getBig()
	remainder := getBig()

	quotient.DivMod(numerator, denom, remainder)
	result := quotient.Int64()

	switch mode {
	case RoundHalfEven:
		doubled := getBig()
		doubled.Lsh(remainder, 1) // remainder * 2
		cmp := doubled.Cmp(denom)
		if cmp > 0 {
			result++
		} else if cmp == 0 && result%2 != 0 {
			// exact half: round to even
			result++
		}
		putBig(doubled)
	case RoundUp:
		if remainder.Sign() != 0 {
			result++
		}
	case RoundDown:
		// truncation already happened
	}

	putBig(quotient)
	putBig(remainder)

	return result
}

// DivInt64 divides a by b with rounding, for amounts known to fit int64.
func DivInt64(a, b int64, mode RoundingMode) int64 {
	n := getBig()
	n.SetInt64(a)
	result := Div(n, b, mode)
	putBig(n)
	return result
}

// SatInt64 converts v to int64, clamping values outside the int64 range
// to the nearest bound.
func SatInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}

// MulDiv computes a * b / c with rounding, using a big.Int intermediate.
func MulDiv(a, b, c int64, mode RoundingMode) int64 {
	n := Mul(a, b)
	result := Div(n, c, mode)
	putBig(n)
	return result
}
