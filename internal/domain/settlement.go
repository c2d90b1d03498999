package domain

import (
	"fmt"
	"time"
)

// SettlementInfo is the snapshot archived when a round closes. Skipped rounds
// carry a neutral share price and no payoff.
type SettlementInfo struct {
	Vault          uint64
	Round          uint64
	OraclePrice    uint64
	OracleDecimal  uint8
	SettleBalance  uint64 // collateral at risk before payoff
	SettledBalance uint64 // collateral left for depositors
	SharePrice     uint64 // SharePriceDecimal scale
	Payoff         int64  // vault payoff, never positive
	DeliveredSize  uint64
	Skipped        bool
	Timestamp      time.Time
}

// SettleResult is what Settle reports to the caller.
type SettleResult struct {
	Settled *SettlementInfo  // nil when no round was open
	Skipped []SettlementInfo // rounds fast-forwarded without payoff
}

// SettleTransfer is the ledger mutation of a settlement: buyers receive the
// loss and every active share is repriced by SharePrice.
type SettleTransfer struct {
	Round      uint64
	Loss       uint64 // deposit token, owed to bid receipt holders
	LossToken  string
	SharePrice uint64
}

// SharePrice returns settled*10^8/settle, or exactly 1.0 for an empty round.
func SharePrice(settleBalance, settledBalance uint64) (uint64, error) {
	if settleBalance == 0 {
		return SharePriceUnit, nil
	}
	if settledBalance > settleBalance {
		return 0, fmt.Errorf("%w: settled %d above settle %d", ErrOverflow, settledBalance, settleBalance)
	}
	return MulDiv(settledBalance, SharePriceUnit, settleBalance)
}
