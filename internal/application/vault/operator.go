package vault

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// UpdateConfig applies a partial settings update.
func (e *Engine) UpdateConfig(ctx context.Context, index uint64, u domain.ConfigUpdate) (domain.Settings, error) {
	return mutate(ctx, e, index, "update_config", func(v *domain.Vault) (domain.Settings, error) {
		if err := u.ValidateBps(); err != nil {
			return domain.Settings{}, err
		}
		if (u.OracleID != nil || u.QuoteOracleID != nil) && !v.Status.IsCycleBoundary() {
			return domain.Settings{}, fmt.Errorf("%w: oracle change mid-round", domain.ErrInvalidAction)
		}
		if u.OracleID != nil && *u.OracleID == "" {
			return domain.Settings{}, fmt.Errorf("%w: oracle id required", domain.ErrInvalidConfig)
		}
		v.Settings = u.Apply(v.Settings)
		return v.Settings, nil
	})
}

// UpdateWarmupConfig stages the option structure and auction parameters
// copied into the active config at the next activation.
func (e *Engine) UpdateWarmupConfig(ctx context.Context, index uint64, cfg domain.VaultConfig) (domain.VaultConfig, error) {
	return mutate(ctx, e, index, "update_warmup", func(v *domain.Vault) (domain.VaultConfig, error) {
		if err := cfg.Validate(v.OptionType); err != nil {
			return domain.VaultConfig{}, err
		}
		v.Warmup = cfg.Clone()
		for i := range v.Warmup.Legs {
			v.Warmup.Legs[i].Strike = 0
		}
		return v.Warmup.Clone(), nil
	})
}

// TopUpProtocolIncentive adds amount of the vault's incentive token to the
// protocol pool and raises the vault's incentive budget by the same amount.
func (e *Engine) TopUpProtocolIncentive(ctx context.Context, index uint64, amount uint64) (uint64, error) {
	return mutate(ctx, e, index, "top_up_incentive", func(v *domain.Vault) (uint64, error) {
		budget, err := domain.AddUint64(v.IncentiveBudget, amount)
		if err != nil {
			return 0, err
		}
		if err := e.treasury.TopUp(v.IncentiveToken(), amount); err != nil {
			return 0, err
		}
		v.IncentiveBudget = budget
		return budget, nil
	})
}

// TopUpFixedIncentive adds to the vault-local fixed incentive balance. The
// balance holds a single token.
func (e *Engine) TopUpFixedIncentive(ctx context.Context, index uint64, token string, amount uint64) (domain.BalanceAttachment, error) {
	return mutate(ctx, e, index, "top_up_fixed", func(v *domain.Vault) (domain.BalanceAttachment, error) {
		if _, err := e.tokenDecimals(v, token); err != nil {
			return domain.BalanceAttachment{}, err
		}
		b, ok := v.Attachments.Balance(domain.KeyFixedIncentive)
		if ok && b.Amount > 0 && b.Token != token {
			return domain.BalanceAttachment{}, fmt.Errorf("%w: fixed incentive held in %s", domain.ErrTokenMismatch, b.Token)
		}
		total, err := domain.AddUint64(b.Amount, amount)
		if err != nil {
			return domain.BalanceAttachment{}, err
		}
		b = domain.BalanceAttachment{Token: token, Amount: total}
		v.Attachments[domain.KeyFixedIncentive] = b
		return b, nil
	})
}

// WithdrawFixedIncentive takes amount back out of the fixed incentive
// balance. Only between rounds, so an open round keeps what it was promised.
func (e *Engine) WithdrawFixedIncentive(ctx context.Context, index uint64, amount uint64) (domain.TokenAmount, error) {
	return mutate(ctx, e, index, "withdraw_fixed", func(v *domain.Vault) (domain.TokenAmount, error) {
		if !v.Status.IsCycleBoundary() {
			return domain.TokenAmount{}, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		b, ok := v.Attachments.Balance(domain.KeyFixedIncentive)
		if !ok || b.Amount < amount {
			return domain.TokenAmount{}, fmt.Errorf("%w: fixed incentive balance %d below %d", domain.ErrMaxSizeViolation, b.Amount, amount)
		}
		b.Amount -= amount
		v.Attachments[domain.KeyFixedIncentive] = b
		return domain.TokenAmount{Token: b.Token, Amount: amount}, nil
	})
}
