package domain

import (
	"fmt"
	"time"
)

// Settings is the operator-settable configuration surface of a vault.
type Settings struct {
	OracleID      string
	QuoteOracleID string // prices the deposit token in the payoff token when they differ

	DepositLotSize uint64
	BidLotSize     uint64
	MinDepositSize uint64
	MinBidSize     uint64
	UserDepositCap uint64 // entry cap per depositor, enforced by the ledger
	Capacity       uint64

	DepositFeeBp   uint64
	BidFeeBp       uint64
	IncentiveFeeBp uint64

	DepositIncentiveBp   uint64
	IncentiveToken       string // bp incentive token; empty means the bid token
	FixedIncentiveAmount uint64 // per-round ceiling

	AuctionDelay    time.Duration
	AuctionDuration time.Duration
	RecoupDelay     time.Duration

	Leverage  uint64 // percent, 100 = x1.00
	RiskLevel uint64
}

// ConfigUpdate is a partial Settings update; nil fields stay unchanged.
type ConfigUpdate struct {
	OracleID      *string
	QuoteOracleID *string

	DepositLotSize *uint64
	BidLotSize     *uint64
	MinDepositSize *uint64
	MinBidSize     *uint64
	UserDepositCap *uint64
	Capacity       *uint64

	DepositFeeBp   *uint64
	BidFeeBp       *uint64
	IncentiveFeeBp *uint64

	DepositIncentiveBp   *uint64
	IncentiveToken       *string
	FixedIncentiveAmount *uint64

	AuctionDelay    *time.Duration
	AuctionDuration *time.Duration
	RecoupDelay     *time.Duration

	Leverage  *uint64
	RiskLevel *uint64
}

// ValidateBps range-checks every bp field present in the update.
func (u ConfigUpdate) ValidateBps() error {
	for name, v := range map[string]*uint64{
		"deposit_fee_bp":       u.DepositFeeBp,
		"bid_fee_bp":           u.BidFeeBp,
		"incentive_fee_bp":     u.IncentiveFeeBp,
		"deposit_incentive_bp": u.DepositIncentiveBp,
	} {
		if v != nil && *v > BPS {
			return fmt.Errorf("%w: %s=%d exceeds %d", ErrInvalidConfig, name, *v, BPS)
		}
	}
	if u.Leverage != nil && *u.Leverage == 0 {
		return fmt.Errorf("%w: leverage must be positive", ErrInvalidConfig)
	}
	if u.BidLotSize != nil && *u.BidLotSize == 0 {
		return fmt.Errorf("%w: bid lot size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Apply returns s with every non-nil field of u applied.
func (u ConfigUpdate) Apply(s Settings) Settings {
	setStr(&s.OracleID, u.OracleID)
	setStr(&s.QuoteOracleID, u.QuoteOracleID)
	setU64(&s.DepositLotSize, u.DepositLotSize)
	setU64(&s.BidLotSize, u.BidLotSize)
	setU64(&s.MinDepositSize, u.MinDepositSize)
	setU64(&s.MinBidSize, u.MinBidSize)
	setU64(&s.UserDepositCap, u.UserDepositCap)
	setU64(&s.Capacity, u.Capacity)
	setU64(&s.DepositFeeBp, u.DepositFeeBp)
	setU64(&s.BidFeeBp, u.BidFeeBp)
	setU64(&s.IncentiveFeeBp, u.IncentiveFeeBp)
	setU64(&s.DepositIncentiveBp, u.DepositIncentiveBp)
	setStr(&s.IncentiveToken, u.IncentiveToken)
	setU64(&s.FixedIncentiveAmount, u.FixedIncentiveAmount)
	setDur(&s.AuctionDelay, u.AuctionDelay)
	setDur(&s.AuctionDuration, u.AuctionDuration)
	setDur(&s.RecoupDelay, u.RecoupDelay)
	setU64(&s.Leverage, u.Leverage)
	setU64(&s.RiskLevel, u.RiskLevel)
	return s
}

func setU64(dst *uint64, v *uint64) {
	if v != nil {
		*dst = *v
	}
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDur(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
