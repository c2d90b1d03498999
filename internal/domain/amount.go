package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an integer amount at the given decimal scale, e.g.
// 1500000 at 6 decimals is "1.5".
func FormatAmount(amount uint64, decimals uint8) string {
	return ToDecimal(amount, decimals).String()
}

// ToDecimal lifts a fixed-point amount into a decimal for display.
func ToDecimal(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// FormatSharePrice renders a settlement share price as a multiplier.
func FormatSharePrice(p uint64) string {
	return ToDecimal(p, SharePriceDecimal).StringFixed(int32(SharePriceDecimal))
}
