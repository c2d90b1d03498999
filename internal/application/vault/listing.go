package vault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// NewVault lists a vault and registers it with the ledger. The oracle must
// price the vault's base token in its quote token.
func (e *Engine) NewVault(ctx context.Context, l domain.Listing) (*domain.Vault, error) {
	if e.suspended.Load() {
		return nil, &domain.VaultError{Op: "new_vault", Err: domain.ErrSuspended}
	}
	tokens, err := e.oracle.GetToken(ctx, l.Settings.OracleID)
	if err != nil {
		return nil, fmt.Errorf("vault.NewVault: oracle %q: %w", l.Settings.OracleID, err)
	}
	if !e.pegs.Pegged(tokens.BaseSymbol, l.Tokens.Base.Symbol) || !e.pegs.Pegged(tokens.QuoteSymbol, l.Tokens.Quote.Symbol) {
		return nil, fmt.Errorf("vault.NewVault: oracle prices %s/%s, vault is %s/%s: %w",
			tokens.BaseSymbol, tokens.QuoteSymbol, l.Tokens.Base.Symbol, l.Tokens.Quote.Symbol, domain.ErrTokenMismatch)
	}
	deposit := l.Tokens.PayoffToken(l.OptionType)
	if !e.pegs.Pegged(l.Tokens.Deposit.Symbol, deposit.Symbol) && l.Settings.QuoteOracleID == "" {
		return nil, fmt.Errorf("vault.NewVault: deposit %s settles in %s without a quote oracle: %w",
			l.Tokens.Deposit.Symbol, deposit.Symbol, domain.ErrInvalidConfig)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	index := e.next
	v, err := domain.NewVault(index, l)
	if err != nil {
		return nil, &domain.VaultError{Index: index, Op: "new_vault", Err: err}
	}
	if err := e.ledger.Open(ctx, index, v.Tokens); err != nil {
		return nil, fmt.Errorf("vault.NewVault: ledger open %d: %w", index, err)
	}
	e.slots[index] = &slot{v: v}
	e.next++

	slog.Info("vault: listed",
		"vault", index,
		"type", v.OptionType,
		"period", v.Period,
		"deposit", v.Tokens.Deposit.Symbol,
		"bid", v.Tokens.Bid.Symbol,
		"activation", v.Activation,
	)
	return v.Clone(), nil
}

// Decommission drains the ledger and removes the vault. Only allowed between
// rounds with no lending position open.
func (e *Engine) Decommission(ctx context.Context, index uint64) (domain.LedgerBalances, error) {
	out, err := mutate(ctx, e, index, "decommission", func(v *domain.Vault) (domain.LedgerBalances, error) {
		if !v.Status.IsCycleBoundary() {
			return domain.LedgerBalances{}, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if v.LendingBusy() {
			return domain.LedgerBalances{}, domain.ErrLendingNotWithdrawn
		}
		drained, err := e.ledger.Drain(ctx, v.Index)
		if err != nil {
			return domain.LedgerBalances{}, fmt.Errorf("ledger drain: %w", err)
		}
		if b, ok := v.Attachments.Balance(domain.KeyFixedIncentive); ok && b.Amount > 0 {
			drained.Earned = append(drained.Earned, domain.TokenAmount{Token: b.Token, Amount: b.Amount})
		}
		return drained, nil
	})
	if err != nil {
		return domain.LedgerBalances{}, err
	}

	e.mu.Lock()
	delete(e.slots, index)
	e.mu.Unlock()
	slog.Info("vault: decommissioned", "vault", index)
	return out, nil
}

// Deposit checks user's deposit against the vault's lot, minimum and caps,
// takes the deposit fee and credits the rest to the ledger's warmup pool.
func (e *Engine) Deposit(ctx context.Context, index uint64, user string, amount uint64) (uint64, error) {
	return mutate(ctx, e, index, "deposit", func(v *domain.Vault) (uint64, error) {
		s := v.Settings
		if amount == 0 || !domain.IsLotMultiple(amount, s.DepositLotSize) {
			return 0, fmt.Errorf("%w: %d not a multiple of %d", domain.ErrLotSizeViolation, amount, s.DepositLotSize)
		}
		if amount < s.MinDepositSize {
			return 0, fmt.Errorf("%w: %d below %d", domain.ErrMinSizeViolation, amount, s.MinDepositSize)
		}

		total, err := e.ledger.Balances(ctx, v.Index, "")
		if err != nil {
			return 0, fmt.Errorf("ledger balances: %w", err)
		}
		if s.Capacity > 0 && total.Warmup+total.Active+amount > s.Capacity {
			return 0, fmt.Errorf("%w: capacity %d", domain.ErrMaxSizeViolation, s.Capacity)
		}
		if s.UserDepositCap > 0 {
			mine, err := e.ledger.Balances(ctx, v.Index, user)
			if err != nil {
				return 0, fmt.Errorf("ledger balances: %w", err)
			}
			if mine.Warmup+mine.Active+amount > s.UserDepositCap {
				return 0, fmt.Errorf("%w: user cap %d", domain.ErrMaxSizeViolation, s.UserDepositCap)
			}
		}

		fee, err := domain.MulDiv(amount, s.DepositFeeBp, domain.BPS)
		if err != nil {
			return 0, err
		}
		net := amount - fee
		if err := e.ledger.Deposit(ctx, v.Index, user, net); err != nil {
			return 0, fmt.Errorf("ledger deposit: %w", err)
		}
		e.treasury.AddFee(v.Tokens.Deposit.Symbol, fee)
		return net, nil
	})
}
