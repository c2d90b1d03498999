package domain

import (
	"fmt"
	"strings"
)

// OptionType is the payoff family of a vault's option structure.
type OptionType uint8

const (
	// OptionCall is a covered call: collateral and payoff in the base token.
	OptionCall OptionType = iota
	// OptionPut is a cash-secured put: collateral and payoff in the quote token.
	OptionPut
	// OptionCallSpread pairs calls, settled in the base token.
	OptionCallSpread
	// OptionPutSpread pairs puts, settled in the quote token.
	OptionPutSpread
	// OptionCappedCall pairs calls settled in the quote token (price - strike, unscaled).
	OptionCappedCall
)

func (t OptionType) String() string {
	switch t {
	case OptionCall:
		return "call"
	case OptionPut:
		return "put"
	case OptionCallSpread:
		return "call_spread"
	case OptionPutSpread:
		return "put_spread"
	case OptionCappedCall:
		return "capped_call"
	}
	return "unknown"
}

// ParseOptionType accepts the names produced by String.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionCall, nil
	case "put":
		return OptionPut, nil
	case "call_spread":
		return OptionCallSpread, nil
	case "put_spread":
		return OptionPutSpread, nil
	case "capped_call":
		return OptionCappedCall, nil
	}
	return 0, fmt.Errorf("%w: unknown option type %q", ErrInvalidConfig, s)
}

// SettlesInBase is true when collateral and payoff are denominated in the
// underlying (base) token; otherwise they are in the quote token.
func (t OptionType) SettlesInBase() bool {
	return t == OptionCall || t == OptionCallSpread
}

// IsSpread is true for structures whose legs are resolved relative to the first one.
func (t OptionType) IsSpread() bool {
	return t == OptionCallSpread || t == OptionPutSpread || t == OptionCappedCall
}

// Side is who holds a leg from the vault's point of view.
type Side uint8

const (
	SideSeller Side = iota
	SideBuyer
)

func (s Side) String() string {
	if s == SideBuyer {
		return "buyer"
	}
	return "seller"
}

// ParseSide accepts "seller" or "buyer".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seller", "sell", "short":
		return SideSeller, nil
	case "buyer", "buy", "long":
		return SideBuyer, nil
	}
	return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidConfig, s)
}

// Leg is one component option of a vault's payoff structure.
type Leg struct {
	StrikeBp uint64 // strike as bp of the activation spot price
	Weight   uint64 // bp of one contract unit
	Side     Side
	Strike   uint64 // resolved at activation, oracle decimal
}

// AuctionParams are the Dutch auction decay parameters. Prices are in bid
// token units per whole contract.
type AuctionParams struct {
	DecaySpeed   uint64
	InitialPrice uint64
	FinalPrice   uint64
}

// VaultConfig is one snapshot of option structure and auction parameters.
// Warmup is staged by operators between rounds and copied into Active on
// activation; Active is immutable for the round except strike resolution.
type VaultConfig struct {
	Legs            []Leg
	StrikeIncrement uint64
	Auction         AuctionParams
}

// Clone returns a deep copy.
func (c VaultConfig) Clone() VaultConfig {
	out := c
	out.Legs = append([]Leg(nil), c.Legs...)
	return out
}

// Validate checks the structure before it can be staged.
func (c VaultConfig) Validate(t OptionType) error {
	if len(c.Legs) == 0 {
		return fmt.Errorf("%w: no legs", ErrStrikeRequired)
	}
	if t.IsSpread() && len(c.Legs) < 2 {
		return fmt.Errorf("%w: %s needs at least two legs", ErrInvalidConfig, t)
	}
	for i, l := range c.Legs {
		if l.StrikeBp == 0 {
			return fmt.Errorf("%w: leg %d strike bp is zero", ErrStrikeRequired, i)
		}
		if l.Weight == 0 {
			return fmt.Errorf("%w: leg %d weight is zero", ErrInvalidConfig, i)
		}
	}
	if c.Auction.InitialPrice < c.Auction.FinalPrice {
		return fmt.Errorf("%w: auction initial price below final price", ErrInvalidConfig)
	}
	return nil
}

// Decimals bundles the scales payoff math needs.
type Decimals struct {
	Price  uint8 // oracle price decimal
	Base   uint8 // underlying token decimal (contract size unit)
	Payoff uint8 // decimal of the token payoff is expressed in
}
