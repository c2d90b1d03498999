package domain

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Fixed-point conventions shared by the whole engine.
const (
	// BPS is the basis-point denominator: 10000 = 100%.
	BPS uint64 = 10_000
	// LeverageUnit is leverage ×1.00 (leverage is stored in percent).
	LeverageUnit uint64 = 100
	// SharePriceDecimal is the decimal scale of settlement share prices.
	SharePriceDecimal uint8 = 8
	// SharePriceUnit is a share price of exactly 1.0.
	SharePriceUnit uint64 = 100_000_000
)

// MulDiv returns floor(x*y/d) computed with a 256-bit intermediate.
// Fails with ErrOverflow when d is zero or the result does not fit in uint64.
func MulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(x), uint256.NewInt(y), uint256.NewInt(d))
	if overflow || !z.IsUint64() {
		return 0, fmt.Errorf("%w: %d*%d/%d", ErrOverflow, x, y, d)
	}
	return z.Uint64(), nil
}

// SignedMulDiv returns x*y/d truncated toward zero, keeping the sign of x.
func SignedMulDiv(x int64, y, d uint64) (int64, error) {
	neg := x < 0
	mag, err := MulDiv(AbsInt64(x), y, d)
	if err != nil {
		return 0, err
	}
	return applySign(mag, neg)
}

// Pow10 returns 10^n, failing once the result would overflow uint64.
func Pow10(n uint8) (uint64, error) {
	if n > 19 {
		return 0, fmt.Errorf("%w: 10^%d", ErrOverflow, n)
	}
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v, nil
}

// ScaleDecimals re-expresses amount from one token decimal scale to another.
// Scaling down truncates.
func ScaleDecimals(amount uint64, from, to uint8) (uint64, error) {
	switch {
	case from == to:
		return amount, nil
	case to > from:
		f, err := Pow10(to - from)
		if err != nil {
			return 0, err
		}
		return MulDiv(amount, f, 1)
	default:
		f, err := Pow10(from - to)
		if err != nil {
			return 0, err
		}
		return amount / f, nil
	}
}

// AddUint64 adds with an overflow check.
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// AddInt64 adds two signed values with an overflow check.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// AbsInt64 is the magnitude of x, valid for math.MinInt64.
func AbsInt64(x int64) uint64 {
	if x >= 0 {
		return uint64(x)
	}
	// -(MinInt64) does not fit in int64, go through x+1.
	return uint64(-(x + 1)) + 1
}

func applySign(mag uint64, neg bool) (int64, error) {
	if !neg {
		if mag > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d exceeds int64", ErrOverflow, mag)
		}
		return int64(mag), nil
	}
	if mag > uint64(math.MaxInt64)+1 {
		return 0, fmt.Errorf("%w: -%d below int64", ErrOverflow, mag)
	}
	if mag == uint64(math.MaxInt64)+1 {
		return math.MinInt64, nil
	}
	return -int64(mag), nil
}

func minUint64(vals ...uint64) uint64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
