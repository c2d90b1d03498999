package domain

import (
	"fmt"
	"time"
)

// TokenInfo is a token symbol and its decimal scale.
type TokenInfo struct {
	Symbol   string
	Decimals uint8
}

// VaultTokens are the tokens a vault touches.
type VaultTokens struct {
	Deposit TokenInfo
	Bid     TokenInfo
	Base    TokenInfo // underlying, oracle base
	Quote   TokenInfo // oracle quote
}

// PayoffToken is the token payoff math is expressed in.
func (t VaultTokens) PayoffToken(o OptionType) TokenInfo {
	if o.SettlesInBase() {
		return t.Base
	}
	return t.Quote
}

// OracleTokens is what an oracle reports about the pair it prices.
type OracleTokens struct {
	BaseSymbol  string
	QuoteSymbol string
	BaseType    string
	QuoteType   string
}

// Listing is everything needed to list a new vault.
type Listing struct {
	OptionType OptionType
	Period     Period
	Tokens     VaultTokens
	Settings   Settings
	Config     VaultConfig
	Activation time.Time
	SafetyNet  bool
}

// Vault is one structured-product instance and its round state.
type Vault struct {
	Index      uint64
	OptionType OptionType
	Period     Period
	Tokens     VaultTokens
	Settings   Settings
	SafetyNet  bool

	Active VaultConfig
	Warmup VaultConfig

	Round      uint64
	Status     Status
	Activation time.Time
	Expiration time.Time

	// Per-round state, reset on activation.
	ActivationPrice   uint64
	PriceDecimal      uint8
	Collateral        uint64
	MaxSize           uint64
	Delivered         uint64
	Totals            DeliveryTotals
	Deliveries        []DeliveryRecord
	AuctionStart      time.Time
	AuctionEnd        time.Time
	RecoupAt          time.Time
	RecoupRefund      uint64
	IncentiveBudget   uint64 // available incentive amount: bp budget drawn from the protocol pool
	RoundBudget       uint64 // IncentiveBudget at activation
	FixedRoundAmount  uint64 // fixed incentive paid over this round's full size
	FixedAvailable    uint64 // min(ceiling, remaining fixed balance), re-derived per spend

	Lending        LendingState
	Attachments    Attachments
	LastSettlement *SettlementInfo
}

// NewVault builds a vault at the cycle boundary before its first round.
func NewVault(index uint64, l Listing) (*Vault, error) {
	if err := l.Config.Validate(l.OptionType); err != nil {
		return nil, err
	}
	if l.Settings.Leverage == 0 {
		return nil, fmt.Errorf("%w: leverage must be positive", ErrInvalidConfig)
	}
	if l.Settings.BidLotSize == 0 {
		return nil, fmt.Errorf("%w: bid lot size must be positive", ErrInvalidConfig)
	}
	if l.Settings.OracleID == "" {
		return nil, fmt.Errorf("%w: oracle id required", ErrInvalidConfig)
	}
	return &Vault{
		Index:       index,
		OptionType:  l.OptionType,
		Period:      l.Period,
		Tokens:      l.Tokens,
		Settings:    l.Settings,
		SafetyNet:   l.SafetyNet,
		Active:      l.Config.Clone(),
		Warmup:      l.Config.Clone(),
		Status:      StatusSettle,
		Activation:  l.Activation,
		Expiration:  l.Period.Next(l.Activation),
		Lending:     NoLending{},
		Attachments: Attachments{},
	}, nil
}

// Remaining is the size still available for delivery this round.
func (v *Vault) Remaining() uint64 {
	if v.Delivered >= v.MaxSize {
		return 0
	}
	return v.MaxSize - v.Delivered
}

// Decimals returns the scales payoff math needs for this vault.
func (v *Vault) Decimals() Decimals {
	return Decimals{
		Price:  v.PriceDecimal,
		Base:   v.Tokens.Base.Decimals,
		Payoff: v.Tokens.PayoffToken(v.OptionType).Decimals,
	}
}

// IncentiveToken is the token bp incentives are paid in.
func (v *Vault) IncentiveToken() string {
	if v.Settings.IncentiveToken != "" {
		return v.Settings.IncentiveToken
	}
	return v.Tokens.Bid.Symbol
}

// Pairs reports whether the vault trades or pays incentives in symbol.
func (v *Vault) Pairs(symbol string) bool {
	switch symbol {
	case v.Tokens.Deposit.Symbol, v.Tokens.Bid.Symbol, v.Tokens.Base.Symbol, v.Tokens.Quote.Symbol, v.IncentiveToken():
		return true
	}
	return false
}

// LendingBusy reports whether an external protocol holds the collateral.
func (v *Vault) LendingBusy() bool {
	_, busy := LendingOf(v.Lending)
	return busy
}

// Clone returns a deep copy safe to mutate independently.
func (v *Vault) Clone() *Vault {
	out := *v
	out.Active = v.Active.Clone()
	out.Warmup = v.Warmup.Clone()
	out.Deliveries = append([]DeliveryRecord(nil), v.Deliveries...)
	out.Attachments = v.Attachments.Clone()
	if v.LastSettlement != nil {
		s := *v.LastSettlement
		out.LastSettlement = &s
	}
	return &out
}

// resetRound clears the per-round delivery state.
func (v *Vault) resetRound() {
	v.MaxSize = 0
	v.Delivered = 0
	v.Totals = DeliveryTotals{}
	v.Deliveries = nil
	v.RecoupRefund = 0
}

// BeginRound copies Warmup into Active and clears last round's deliveries.
func (v *Vault) BeginRound() {
	v.Active = v.Warmup.Clone()
	v.resetRound()
}

// Advance moves the vault one period forward after a settlement.
func (v *Vault) Advance() {
	v.Round++
	v.Activation = v.Expiration
	v.Expiration = v.Period.Next(v.Expiration)
	v.Status = StatusSettle
}

// SetStatus moves to next if the lifecycle allows it.
func (v *Vault) SetStatus(next Status) error {
	if !v.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAction, v.Status, next)
	}
	v.Status = next
	return nil
}
