package domain

import "strings"

// PegRegistry lists token pairs treated as 1:1 when re-denominating
// incentives. Membership is explicit; token names are never inspected.
type PegRegistry struct {
	pairs map[[2]string]struct{}
}

// NewPegRegistry builds a registry from symbol pairs. Pairs are symmetric.
func NewPegRegistry(pairs ...[2]string) *PegRegistry {
	r := &PegRegistry{pairs: make(map[[2]string]struct{}, len(pairs))}
	for _, p := range pairs {
		r.Add(p[0], p[1])
	}
	return r
}

// Add registers a and b as pegged to each other.
func (r *PegRegistry) Add(a, b string) {
	a, b = normSymbol(a), normSymbol(b)
	r.pairs[[2]string{a, b}] = struct{}{}
	r.pairs[[2]string{b, a}] = struct{}{}
}

// Pegged reports whether a and b can be exchanged 1:1. A token is always
// pegged to itself.
func (r *PegRegistry) Pegged(a, b string) bool {
	a, b = normSymbol(a), normSymbol(b)
	if a == b {
		return true
	}
	if r == nil {
		return false
	}
	_, ok := r.pairs[[2]string{a, b}]
	return ok
}

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// TheoreticalIncentive is the per-round bp incentive in deposit units:
// supply * bp / 10000 / periodsPerYear.
func TheoreticalIncentive(shareSupply, incentiveBp uint64, p Period) (uint64, error) {
	v, err := MulDiv(shareSupply, incentiveBp, BPS)
	if err != nil {
		return 0, err
	}
	return v / p.PeriodsPerYear(), nil
}

// Tranche returns the share of a per-round amount earned by delivering size
// out of maxSize.
func Tranche(amount, size, maxSize uint64) (uint64, error) {
	if maxSize == 0 || size == 0 {
		return 0, nil
	}
	if size >= maxSize {
		return amount, nil
	}
	return MulDiv(amount, size, maxSize)
}

// CapGrant clamps a theoretical incentive by the protocol pool balance and the
// vault's remaining budget.
func CapGrant(theoretical, poolBalance, budget uint64) uint64 {
	return minUint64(theoretical, poolBalance, budget)
}

// FixedIncentiveAvailable is the fixed incentive a vault may still pay:
// the operator ceiling clamped by what is left in its local balance.
func FixedIncentiveAvailable(ceiling, balance uint64) uint64 {
	return minUint64(ceiling, balance)
}

// TokenAmount is an amount of a named token.
type TokenAmount struct {
	Token  string
	Amount uint64
}

// IncentiveGrant is what one delivery receives from the incentive pools.
type IncentiveGrant struct {
	Token       string // bp incentive token
	Amount      uint64 // gross bp incentive
	Fee         uint64
	FixedToken  string
	FixedAmount uint64 // gross fixed incentive
	FixedFee    uint64
}

// Net returns the amounts that reach depositors, bp incentive first.
func (g IncentiveGrant) Net() []TokenAmount {
	var out []TokenAmount
	if g.Amount > g.Fee {
		out = append(out, TokenAmount{Token: g.Token, Amount: g.Amount - g.Fee})
	}
	if g.FixedAmount > g.FixedFee {
		out = append(out, TokenAmount{Token: g.FixedToken, Amount: g.FixedAmount - g.FixedFee})
	}
	return out
}
