package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Activate opens the vault's next round: the warmup config becomes active,
// strikes are resolved from spot and the auction is sized against the
// worst-case loss. A round that cannot sell anything, or whose expiration has
// already passed, goes straight to Recoup through a zero-priced delivery.
func (e *Engine) Activate(ctx context.Context, index uint64, now time.Time) (*domain.Vault, error) {
	return mutate(ctx, e, index, "activate", func(v *domain.Vault) (*domain.Vault, error) {
		if v.Status == domain.StatusActivate {
			return v.Clone(), nil
		}
		if !v.Status.IsCycleBoundary() {
			return nil, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if now.Before(v.Activation) {
			return nil, fmt.Errorf("%w: activation at %s", domain.ErrNotYetActivated, v.Activation.Format(time.RFC3339))
		}
		if v.LendingBusy() {
			return nil, domain.ErrLendingNotWithdrawn
		}

		v.BeginRound()
		if err := v.SetStatus(domain.StatusActivate); err != nil {
			return nil, err
		}

		price, pd, err := e.oracle.GetPrice(ctx, v.Settings.OracleID, now)
		if err != nil {
			return nil, fmt.Errorf("oracle %s: %w", v.Settings.OracleID, err)
		}
		legs, err := domain.ResolveStrikes(v.OptionType, v.Active.Legs, price, v.Active.StrikeIncrement)
		if err != nil {
			return nil, err
		}
		v.Active.Legs = legs
		v.ActivationPrice = price
		v.PriceDecimal = pd

		maxLoss, err := domain.MaxLossPerUnit(v.OptionType, v.Active.Legs, v.Decimals())
		if err != nil {
			return nil, err
		}

		// Warmup joins active on activation; the ledger moves it last.
		bal, err := e.ledger.Balances(ctx, v.Index, "")
		if err != nil {
			return nil, fmt.Errorf("ledger balances: %w", err)
		}
		collateral, err := domain.AddUint64(bal.Active, bal.Warmup)
		if err != nil {
			return nil, err
		}
		v.Collateral = collateral

		value, err := e.collateralValue(ctx, v, collateral, now)
		if err != nil {
			return nil, err
		}
		size, err := domain.MaxAuctionSize(value, v.Settings.Leverage, maxLoss, v.Settings.BidLotSize, v.Tokens.Base.Decimals)
		if err != nil {
			return nil, err
		}
		v.MaxSize = size

		v.AuctionStart = v.Activation.Add(v.Settings.AuctionDelay)
		v.AuctionEnd = v.AuctionStart.Add(v.Settings.AuctionDuration)
		v.RecoupAt = v.AuctionEnd.Add(v.Settings.RecoupDelay)

		v.RoundBudget = v.IncentiveBudget
		var fixed uint64
		if b, ok := v.Attachments.Balance(domain.KeyFixedIncentive); ok {
			fixed = b.Amount
		}
		v.FixedRoundAmount = domain.FixedIncentiveAvailable(v.Settings.FixedIncentiveAmount, fixed)
		v.FixedAvailable = v.FixedRoundAmount

		st := e.begin(v.Index)
		defer st.rollback()

		switch {
		case size == 0 || !now.Before(v.Expiration):
			if _, err := e.deliver(ctx, st, v, fill{channel: domain.ChannelAuction}, now); err != nil {
				return nil, err
			}
			if err := v.SetStatus(domain.StatusRecoup); err != nil {
				return nil, err
			}
		case v.SafetyNet:
			if err := v.SetStatus(domain.StatusDelivery); err != nil {
				return nil, err
			}
		}

		active, err := e.ledger.Activate(ctx, v.Index, v.Round)
		if err != nil {
			return nil, fmt.Errorf("ledger activate: %w", err)
		}
		if active != collateral {
			slog.Error("vault: ledger activated a different collateral",
				"vault", v.Index, "round", v.Round, "sized", collateral, "active", active)
		}
		if err := st.commit(ctx); err != nil {
			return nil, err
		}
		return v.Clone(), nil
	})
}

// collateralValue expresses amount of the deposit token in the payoff token,
// through the quote oracle when the two are not pegged.
func (e *Engine) collateralValue(ctx context.Context, v *domain.Vault, amount uint64, now time.Time) (uint64, error) {
	dep := v.Tokens.Deposit
	pay := v.Tokens.PayoffToken(v.OptionType)
	if e.pegs.Pegged(dep.Symbol, pay.Symbol) {
		return domain.ScaleDecimals(amount, dep.Decimals, pay.Decimals)
	}
	if v.Settings.QuoteOracleID == "" {
		return 0, fmt.Errorf("%w: no quote oracle for %s->%s", domain.ErrInvalidConfig, dep.Symbol, pay.Symbol)
	}
	price, pd, err := e.oracle.GetPrice(ctx, v.Settings.QuoteOracleID, now)
	if err != nil {
		return 0, fmt.Errorf("oracle %s: %w", v.Settings.QuoteOracleID, err)
	}
	return domain.ConvertByPrice(amount, price, pd, dep.Decimals, pay.Decimals)
}

// depositValue is the inverse of collateralValue: a payoff token amount
// expressed in the deposit token.
func (e *Engine) depositValue(ctx context.Context, v *domain.Vault, amount uint64, now time.Time) (uint64, error) {
	dep := v.Tokens.Deposit
	pay := v.Tokens.PayoffToken(v.OptionType)
	if e.pegs.Pegged(dep.Symbol, pay.Symbol) {
		return domain.ScaleDecimals(amount, pay.Decimals, dep.Decimals)
	}
	if v.Settings.QuoteOracleID == "" {
		return 0, fmt.Errorf("%w: no quote oracle for %s->%s", domain.ErrInvalidConfig, pay.Symbol, dep.Symbol)
	}
	price, pd, err := e.oracle.GetPrice(ctx, v.Settings.QuoteOracleID, now)
	if err != nil {
		return 0, fmt.Errorf("oracle %s: %w", v.Settings.QuoteOracleID, err)
	}
	return domain.ConvertByInversePrice(amount, price, pd, pay.Decimals, dep.Decimals)
}
