package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Settle closes the round at its expiration. The realized payoff of the
// delivered size is paid out of the round's collateral and the remainder
// becomes the new share price. Every further expiration already past is
// skipped with a neutral share price and no payoff.
func (e *Engine) Settle(ctx context.Context, index uint64, now time.Time) (domain.SettleResult, error) {
	return mutate(ctx, e, index, "settle", func(v *domain.Vault) (domain.SettleResult, error) {
		var res domain.SettleResult
		switch v.Status {
		case domain.StatusRecoup:
		case domain.StatusSettle:
			// between rounds: only catch up on expirations nobody activated
			if now.Before(v.Expiration) {
				return res, nil
			}
		default:
			return res, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if now.Before(v.Expiration) {
			return res, fmt.Errorf("%w: expires at %s", domain.ErrNotYetExpired, v.Expiration.Format(time.RFC3339))
		}
		if v.LendingBusy() {
			return res, domain.ErrLendingNotWithdrawn
		}

		if v.Status == domain.StatusRecoup {
			info, err := e.settleRound(ctx, v, now)
			if err != nil {
				return res, err
			}
			res.Settled = &info
		}

		for !now.Before(v.Expiration) {
			info := domain.SettlementInfo{
				Vault:         v.Index,
				Round:         v.Round,
				OracleDecimal: v.PriceDecimal,
				SharePrice:    domain.SharePriceUnit,
				Skipped:       true,
				Timestamp:     now,
			}
			res.Skipped = append(res.Skipped, info)
			v.LastSettlement = &info
			v.Advance()
		}
		return res, nil
	})
}

// settleRound prices the delivered position at expiration, pays the loss to
// buyers and advances the vault one period.
func (e *Engine) settleRound(ctx context.Context, v *domain.Vault, now time.Time) (domain.SettlementInfo, error) {
	price, pd, err := e.oracle.GetPrice(ctx, v.Settings.OracleID, now)
	if err != nil {
		return domain.SettlementInfo{}, fmt.Errorf("oracle %s: %w", v.Settings.OracleID, err)
	}
	if v.Delivered > 0 && pd != v.PriceDecimal {
		return domain.SettlementInfo{}, fmt.Errorf("%w: oracle decimal changed %d -> %d", domain.ErrInvalidConfig, v.PriceDecimal, pd)
	}
	balance, err := e.ledger.ActiveBalance(ctx, v.Index)
	if err != nil {
		return domain.SettlementInfo{}, fmt.Errorf("ledger active balance: %w", err)
	}

	d := v.Decimals()
	d.Price = pd
	payoff, err := domain.PortfolioPayoff(v.OptionType, v.Active.Legs, price, v.Delivered, domain.LeverageUnit, d)
	if err != nil {
		return domain.SettlementInfo{}, err
	}
	if payoff > 0 {
		return domain.SettlementInfo{}, fmt.Errorf("%w: payoff %d at %d", domain.ErrMaxLossNotNegative, payoff, price)
	}

	var loss uint64
	if payoff < 0 {
		if loss, err = e.depositValue(ctx, v, domain.AbsInt64(payoff), now); err != nil {
			return domain.SettlementInfo{}, err
		}
	}
	loss = min(loss, balance)
	settled := balance - loss
	sharePrice, err := domain.SharePrice(balance, settled)
	if err != nil {
		return domain.SettlementInfo{}, err
	}

	if err := e.ledger.Settle(ctx, v.Index, domain.SettleTransfer{
		Round:      v.Round,
		Loss:       loss,
		LossToken:  v.Tokens.Deposit.Symbol,
		SharePrice: sharePrice,
	}); err != nil {
		return domain.SettlementInfo{}, fmt.Errorf("ledger settle: %w", err)
	}

	info := domain.SettlementInfo{
		Vault:          v.Index,
		Round:          v.Round,
		OraclePrice:    price,
		OracleDecimal:  pd,
		SettleBalance:  balance,
		SettledBalance: settled,
		SharePrice:     sharePrice,
		Payoff:         payoff,
		DeliveredSize:  v.Delivered,
		Timestamp:      now,
	}
	v.LastSettlement = &info
	if err := v.SetStatus(domain.StatusSettle); err != nil {
		return domain.SettlementInfo{}, err
	}
	v.Advance()
	return info, nil
}
