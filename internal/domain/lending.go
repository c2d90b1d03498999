package domain

import (
	"fmt"
	"strings"
	"time"
)

// LendingProtocol identifies an external lending integration.
type LendingProtocol uint8

const (
	LendingScallop LendingProtocol = iota + 1
	LendingNavi
	LendingSuilend
)

func (p LendingProtocol) String() string {
	switch p {
	case LendingScallop:
		return "scallop"
	case LendingNavi:
		return "navi"
	case LendingSuilend:
		return "suilend"
	}
	return "none"
}

// ParseLendingProtocol accepts the names produced by String.
func ParseLendingProtocol(s string) (LendingProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scallop":
		return LendingScallop, nil
	case "navi":
		return LendingNavi, nil
	case "suilend":
		return LendingSuilend, nil
	}
	return 0, fmt.Errorf("%w: unknown lending protocol %q", ErrInvalidConfig, s)
}

// LendingState is where a vault's idle collateral currently sits. Exactly one
// variant holds at a time, so two protocols can never share the collateral.
type LendingState interface {
	lendingState()
}

// NoLending: collateral is held by the ledger.
type NoLending struct{}

// ScallopSupply: collateral supplied to a Scallop market for market coins.
type ScallopSupply struct {
	Principal   uint64
	MarketCoins uint64
	Since       time.Time
}

// NaviSupply: collateral supplied to a Navi pool, tracked as a scaled balance.
type NaviSupply struct {
	Principal     uint64
	ScaledBalance uint64
	Since         time.Time
}

// SuilendSupply: collateral deposited into a Suilend obligation for cTokens.
type SuilendSupply struct {
	Principal    uint64
	ObligationID string
	CTokens      uint64
	Since        time.Time
}

func (NoLending) lendingState()     {}
func (ScallopSupply) lendingState() {}
func (NaviSupply) lendingState()    {}
func (SuilendSupply) lendingState() {}

// LendingOf returns the protocol holding the collateral, or false when the
// ledger holds it.
func LendingOf(s LendingState) (LendingProtocol, bool) {
	switch s.(type) {
	case ScallopSupply:
		return LendingScallop, true
	case NaviSupply:
		return LendingNavi, true
	case SuilendSupply:
		return LendingSuilend, true
	}
	return 0, false
}

// LendingPrincipal is the collateral amount handed to the protocol.
func LendingPrincipal(s LendingState) uint64 {
	switch v := s.(type) {
	case ScallopSupply:
		return v.Principal
	case NaviSupply:
		return v.Principal
	case SuilendSupply:
		return v.Principal
	}
	return 0
}

// LendingWithdrawal is what a protocol returns on withdraw.
type LendingWithdrawal struct {
	Principal uint64
	Reward    uint64
}
