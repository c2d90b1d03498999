package domain

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// MaxPivotPrice is the upper extreme evaluated by MaxLossPerUnit.
const MaxPivotPrice uint64 = math.MaxUint64

// OptionPayoff returns the buyer payoff of one leg at price, at the oracle
// price scale:
//
//	call-style:  max(0, (price-strike)*10^pd/price)   fraction of one underlying
//	put-style:   max(0, strike-price)                 quote per underlying
//	capped call: max(0, price-strike)                 quote per underlying
func OptionPayoff(t OptionType, price, strike uint64, priceDecimal uint8) (uint64, error) {
	switch t {
	case OptionCall, OptionCallSpread:
		if price <= strike {
			return 0, nil
		}
		scale, err := Pow10(priceDecimal)
		if err != nil {
			return 0, err
		}
		return MulDiv(price-strike, scale, price)
	case OptionPut, OptionPutSpread:
		if strike <= price {
			return 0, nil
		}
		return strike - price, nil
	case OptionCappedCall:
		if price <= strike {
			return 0, nil
		}
		return price - strike, nil
	}
	return 0, fmt.Errorf("%w: option type %d", ErrInvalidConfig, t)
}

// PortfolioPayoff returns the vault's signed payoff for size contracts (base
// token units) at price, in payoff-token units. Seller legs count negative,
// buyer legs positive. The weighted legs are netted at full precision and then
// scaled once:
//
//	net * leverage * size * 10^payoff / (LeverageUnit * 10^(price+base))
//
// truncating toward zero.
func PortfolioPayoff(t OptionType, legs []Leg, price, size, leverage uint64, d Decimals) (int64, error) {
	var gain, loss uint256.Int
	bps := uint256.NewInt(BPS)
	for i, leg := range legs {
		v, err := OptionPayoff(t, price, leg.Strike, d.Price)
		if err != nil {
			return 0, fmt.Errorf("leg %d: %w", i, err)
		}
		w := new(uint256.Int).Mul(uint256.NewInt(v), uint256.NewInt(leg.Weight))
		w.Div(w, bps)
		if leg.Side == SideBuyer {
			gain.Add(&gain, w)
		} else {
			loss.Add(&loss, w)
		}
	}

	neg := loss.Gt(&gain)
	var net uint256.Int
	if neg {
		net.Sub(&loss, &gain)
	} else {
		net.Sub(&gain, &loss)
	}
	if net.IsZero() || size == 0 || leverage == 0 {
		return 0, nil
	}

	num := new(uint256.Int).Mul(&net, uint256.NewInt(leverage))
	if _, overflow := num.MulOverflow(num, uint256.NewInt(size)); overflow {
		return 0, fmt.Errorf("%w: payoff numerator", ErrOverflow)
	}
	if _, overflow := num.MulOverflow(num, pow10U256(d.Payoff)); overflow {
		return 0, fmt.Errorf("%w: payoff numerator", ErrOverflow)
	}
	den := new(uint256.Int).Mul(uint256.NewInt(LeverageUnit), pow10U256(d.Price+d.Base))
	num.Div(num, den)
	if !num.IsUint64() {
		return 0, fmt.Errorf("%w: payoff exceeds 64 bits", ErrOverflow)
	}
	return applySign(num.Uint64(), neg)
}

// PivotPrices returns the prices at which a piecewise payoff can reach its
// extremes: zero, every resolved strike, and MaxPivotPrice.
func PivotPrices(legs []Leg) []uint64 {
	pivots := make([]uint64, 0, len(legs)+2)
	pivots = append(pivots, 0)
	for _, l := range legs {
		pivots = append(pivots, l.Strike)
	}
	return append(pivots, MaxPivotPrice)
}

// MaxLossPerUnit returns the magnitude of the worst payoff of one whole
// contract (10^base units) over the pivot set. Any pivot with a positive
// payoff, or a worst case that is not strictly negative, is an invariant
// violation.
func MaxLossPerUnit(t OptionType, legs []Leg, d Decimals) (uint64, error) {
	unit, err := Pow10(d.Base)
	if err != nil {
		return 0, err
	}
	var worst int64
	for _, p := range PivotPrices(legs) {
		v, err := PortfolioPayoff(t, legs, p, unit, LeverageUnit, d)
		if err != nil {
			return 0, fmt.Errorf("pivot %d: %w", p, err)
		}
		if v > 0 {
			return 0, fmt.Errorf("%w: payoff %d at pivot %d", ErrMaxLossNotNegative, v, p)
		}
		if v < worst {
			worst = v
		}
	}
	if worst >= 0 {
		return 0, ErrMaxLossNotNegative
	}
	return AbsInt64(worst), nil
}

func pow10U256(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
