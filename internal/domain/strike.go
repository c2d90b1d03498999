package domain

import "fmt"

// DeriveStrike returns price*bp/10000 (truncated) rounded up to the next
// multiple of increment. A zero increment leaves the raw strike untouched.
func DeriveStrike(price, bp, increment uint64) (uint64, error) {
	raw, err := MulDiv(price, bp, BPS)
	if err != nil {
		return 0, err
	}
	return roundUp(raw, increment)
}

// ResolveStrikes fills Strike on a copy of legs from the activation spot.
// Single structures derive every leg directly. Spreads derive the first leg
// and place the others at the original strike-to-strike distance, itself
// rounded up to the increment, so the spread width survives rounding.
func ResolveStrikes(t OptionType, legs []Leg, price, increment uint64) ([]Leg, error) {
	if len(legs) == 0 {
		return nil, ErrStrikeRequired
	}
	out := append([]Leg(nil), legs...)

	first, err := DeriveStrike(price, out[0].StrikeBp, increment)
	if err != nil {
		return nil, err
	}
	if first == 0 {
		return nil, fmt.Errorf("%w: leg 0 resolved to zero", ErrStrikeRequired)
	}
	out[0].Strike = first

	for i := 1; i < len(out); i++ {
		if !t.IsSpread() {
			k, err := DeriveStrike(price, out[i].StrikeBp, increment)
			if err != nil {
				return nil, err
			}
			if k == 0 {
				return nil, fmt.Errorf("%w: leg %d resolved to zero", ErrStrikeRequired, i)
			}
			out[i].Strike = k
			continue
		}

		bp0, bpi := out[0].StrikeBp, out[i].StrikeBp
		var gapBp uint64
		if bpi >= bp0 {
			gapBp = bpi - bp0
		} else {
			gapBp = bp0 - bpi
		}
		gap, err := DeriveStrike(price, gapBp, increment)
		if err != nil {
			return nil, err
		}
		if bpi >= bp0 {
			k, err := AddUint64(first, gap)
			if err != nil {
				return nil, err
			}
			out[i].Strike = k
		} else {
			if gap >= first {
				return nil, fmt.Errorf("%w: leg %d below zero", ErrStrikeRequired, i)
			}
			out[i].Strike = first - gap
		}
	}
	return out, nil
}

// MaxAuctionSize is the largest lot-aligned size (base units) whose worst-case
// loss stays within collateral value times leverage:
//
//	floor(value * leverage/100 * 10^base / maxLossPerUnit / lot) * lot
func MaxAuctionSize(collateralValue, leverage, maxLossPerUnit, lot uint64, baseDecimal uint8) (uint64, error) {
	if maxLossPerUnit == 0 {
		return 0, ErrMaxLossNotNegative
	}
	if lot == 0 {
		return 0, fmt.Errorf("%w: zero lot size", ErrLotSizeViolation)
	}
	levered, err := MulDiv(collateralValue, leverage, LeverageUnit)
	if err != nil {
		return 0, err
	}
	unit, err := Pow10(baseDecimal)
	if err != nil {
		return 0, err
	}
	units, err := MulDiv(levered, unit, maxLossPerUnit)
	if err != nil {
		return 0, err
	}
	return units / lot * lot, nil
}

// ConvertByPrice converts amount of a token into another using price, the
// value of one whole `from` token in `to` units at priceDecimal.
func ConvertByPrice(amount, price uint64, priceDecimal, fromDecimal, toDecimal uint8) (uint64, error) {
	scale, err := Pow10(priceDecimal)
	if err != nil {
		return 0, err
	}
	v, err := MulDiv(amount, price, scale)
	if err != nil {
		return 0, err
	}
	return ScaleDecimals(v, fromDecimal, toDecimal)
}

// ConvertByInversePrice converts amount of the priced token's counterpart
// back into the priced token: amount * 10^pd / price.
func ConvertByInversePrice(amount, price uint64, priceDecimal, fromDecimal, toDecimal uint8) (uint64, error) {
	if price == 0 {
		return 0, fmt.Errorf("%w: zero price", ErrOverflow)
	}
	scale, err := Pow10(priceDecimal)
	if err != nil {
		return 0, err
	}
	v, err := MulDiv(amount, scale, price)
	if err != nil {
		return 0, err
	}
	return ScaleDecimals(v, fromDecimal, toDecimal)
}

// IsLotMultiple reports whether size is a whole number of lots.
func IsLotMultiple(size, lot uint64) bool {
	return lot == 0 || size%lot == 0
}

func roundUp(v, increment uint64) (uint64, error) {
	if increment == 0 {
		return v, nil
	}
	rem := v % increment
	if rem == 0 {
		return v, nil
	}
	return AddUint64(v, increment-rem)
}
