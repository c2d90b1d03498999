package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// grantIncentives computes the incentives earned by delivering size and
// draws the protocol part through st.
//
// The bp incentive is the tranche size/maxSize of supply*bp/10000/periods,
// re-denominated from the deposit token into the incentive token, then capped
// by the protocol pool and the vault's remaining budget. The fixed incentive
// is the same tranche of the round's fixed amount, capped by what the vault's
// local balance still allows.
func (e *Engine) grantIncentives(ctx context.Context, st *stage, v *domain.Vault, size uint64, now time.Time) (domain.IncentiveGrant, error) {
	var g domain.IncentiveGrant
	if size == 0 || v.MaxSize == 0 {
		return g, nil
	}

	if bp := v.Settings.DepositIncentiveBp; bp > 0 && v.IncentiveBudget > 0 {
		supply, err := e.ledger.ShareSupply(ctx, v.Index)
		if err != nil {
			return g, fmt.Errorf("ledger share supply: %w", err)
		}
		theoretical, err := domain.TheoreticalIncentive(supply, bp, v.Period)
		if err != nil {
			return g, err
		}
		part, err := domain.Tranche(theoretical, size, v.MaxSize)
		if err != nil {
			return g, err
		}
		token := v.IncentiveToken()
		part, err = e.redenominate(ctx, v, part, token, now)
		if err != nil {
			return g, err
		}

		g.Token = token
		g.Amount = st.draw(token, min(part, v.IncentiveBudget))
		v.IncentiveBudget -= g.Amount
		if g.Fee, err = domain.MulDiv(g.Amount, v.Settings.IncentiveFeeBp, domain.BPS); err != nil {
			return domain.IncentiveGrant{}, err
		}
	}

	if b, ok := v.Attachments.Balance(domain.KeyFixedIncentive); ok && v.FixedAvailable > 0 {
		part, err := domain.Tranche(v.FixedRoundAmount, size, v.MaxSize)
		if err != nil {
			return domain.IncentiveGrant{}, err
		}
		part = min(part, v.FixedAvailable, b.Amount)
		fee, err := domain.MulDiv(part, v.Settings.IncentiveFeeBp, domain.BPS)
		if err != nil {
			return domain.IncentiveGrant{}, err
		}
		b.Amount -= part
		v.Attachments[domain.KeyFixedIncentive] = b
		v.FixedAvailable = domain.FixedIncentiveAvailable(v.FixedAvailable-part, b.Amount)

		g.FixedToken = b.Token
		g.FixedAmount = part
		g.FixedFee = fee
	}
	return g, nil
}

// redenominate converts a deposit token amount into token. Pegged tokens
// only change decimal scale; otherwise the vault oracle prices base in quote,
// so a base-denominated deposit is multiplied by the price and a
// quote-denominated one divided by it.
func (e *Engine) redenominate(ctx context.Context, v *domain.Vault, amount uint64, token string, now time.Time) (uint64, error) {
	dep := v.Tokens.Deposit
	to, err := e.tokenDecimals(v, token)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}
	if e.pegs.Pegged(dep.Symbol, token) {
		return domain.ScaleDecimals(amount, dep.Decimals, to)
	}

	base, quote := v.Tokens.Base.Symbol, v.Tokens.Quote.Symbol
	depIsBase := e.pegs.Pegged(dep.Symbol, base)
	depIsQuote := e.pegs.Pegged(dep.Symbol, quote)
	toBase := e.pegs.Pegged(token, base)
	toQuote := e.pegs.Pegged(token, quote)
	if !(depIsBase && toQuote) && !(depIsQuote && toBase) {
		return 0, fmt.Errorf("%w: no price path %s->%s", domain.ErrTokenMismatch, dep.Symbol, token)
	}

	price, pd, err := e.oracle.GetPrice(ctx, v.Settings.OracleID, now)
	if err != nil {
		return 0, fmt.Errorf("oracle %s: %w", v.Settings.OracleID, err)
	}
	if depIsBase {
		return domain.ConvertByPrice(amount, price, pd, dep.Decimals, to)
	}
	return domain.ConvertByInversePrice(amount, price, pd, dep.Decimals, to)
}
