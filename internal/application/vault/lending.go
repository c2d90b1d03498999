package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
)

// DepositLending hands the round's active collateral to protocol while the
// vault waits for expiration. Only one protocol can hold it at a time.
func (e *Engine) DepositLending(ctx context.Context, index uint64, protocol domain.LendingProtocol, now time.Time) (domain.LendingState, error) {
	adapter, err := e.lendingAdapter(protocol)
	if err != nil {
		return nil, &domain.VaultError{Index: index, Op: "deposit_lending", Err: err}
	}
	return mutate(ctx, e, index, "deposit_lending", func(v *domain.Vault) (domain.LendingState, error) {
		switch v.Status {
		case domain.StatusActivate, domain.StatusNewAuction, domain.StatusDelivery, domain.StatusRecoup:
		default:
			return nil, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if held, busy := domain.LendingOf(v.Lending); busy {
			return nil, fmt.Errorf("%w: held by %s", domain.ErrLendingNotWithdrawn, held)
		}

		amount, err := e.ledger.WithdrawForLending(ctx, v.Index)
		if err != nil {
			return nil, fmt.Errorf("ledger withdraw for lending: %w", err)
		}
		var capability *domain.CapabilityAttachment
		if c, ok := v.Attachments.Capability(domain.CapabilityKey(protocol)); ok {
			capability = &c
		}
		state, err := adapter.Deposit(ctx, v.Index, amount, now, capability)
		if err != nil {
			if rerr := e.ledger.DepositFromLending(ctx, v.Index, amount, 0); rerr != nil {
				slog.Error("vault: lending rollback failed", "vault", v.Index, "protocol", protocol, "err", rerr)
			}
			return nil, fmt.Errorf("%s deposit: %w", protocol, err)
		}
		if s, ok := state.(domain.SuilendSupply); ok && s.ObligationID != "" {
			v.Attachments[domain.CapabilityKey(protocol)] = domain.CapabilityAttachment{Protocol: protocol, Handle: s.ObligationID}
		}
		v.Lending = state
		slog.Info("vault: collateral lent", "vault", v.Index, "protocol", protocol, "amount", amount)
		return state, nil
	})
}

// WithdrawLending takes the collateral back from whichever protocol holds it
// and credits the reward to depositors.
func (e *Engine) WithdrawLending(ctx context.Context, index uint64, now time.Time) (domain.LendingWithdrawal, error) {
	return mutate(ctx, e, index, "withdraw_lending", func(v *domain.Vault) (domain.LendingWithdrawal, error) {
		protocol, busy := domain.LendingOf(v.Lending)
		if !busy {
			return domain.LendingWithdrawal{}, domain.ErrLendingEmpty
		}
		adapter, err := e.lendingAdapter(protocol)
		if err != nil {
			return domain.LendingWithdrawal{}, err
		}
		w, err := adapter.Withdraw(ctx, v.Index, v.Lending, now)
		if err != nil {
			return domain.LendingWithdrawal{}, fmt.Errorf("%s withdraw: %w", protocol, err)
		}
		if err := e.ledger.DepositFromLending(ctx, v.Index, w.Principal, w.Reward); err != nil {
			return domain.LendingWithdrawal{}, fmt.Errorf("ledger deposit from lending: %w", err)
		}
		v.Lending = domain.NoLending{}
		slog.Info("vault: collateral returned", "vault", v.Index, "protocol", protocol, "principal", w.Principal, "reward", w.Reward)
		return w, nil
	})
}

// LendingReward reports the yield accrued by the vault's open position.
func (e *Engine) LendingReward(ctx context.Context, index uint64, now time.Time) (uint64, error) {
	v, err := e.Vault(index)
	if err != nil {
		return 0, err
	}
	protocol, busy := domain.LendingOf(v.Lending)
	if !busy {
		return 0, nil
	}
	adapter, err := e.lendingAdapter(protocol)
	if err != nil {
		return 0, err
	}
	return adapter.Reward(ctx, v.Lending, now)
}

func (e *Engine) lendingAdapter(p domain.LendingProtocol) (ports.LendingAdapter, error) {
	a, ok := e.lending[p]
	if !ok {
		return nil, fmt.Errorf("%w: no %s adapter", domain.ErrInvalidConfig, p)
	}
	return a, nil
}
