package lending_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/adapters/lending"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var since = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestSimulated_PositionShapes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		protocol domain.LendingProtocol
		check    func(t *testing.T, s domain.LendingState)
	}{
		{domain.LendingScallop, func(t *testing.T, s domain.LendingState) {
			v, ok := s.(domain.ScallopSupply)
			require.True(t, ok)
			assert.Equal(t, uint64(1_000), v.MarketCoins)
		}},
		{domain.LendingNavi, func(t *testing.T, s domain.LendingState) {
			v, ok := s.(domain.NaviSupply)
			require.True(t, ok)
			assert.Equal(t, uint64(1_000), v.ScaledBalance)
		}},
		{domain.LendingSuilend, func(t *testing.T, s domain.LendingState) {
			v, ok := s.(domain.SuilendSupply)
			require.True(t, ok)
			assert.Equal(t, "obligation-3-1", v.ObligationID)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.protocol.String(), func(t *testing.T) {
			a := lending.NewSimulated(tt.protocol, 500)
			assert.Equal(t, tt.protocol, a.Protocol())
			s, err := a.Deposit(ctx, 3, 1_000, since, nil)
			require.NoError(t, err)
			tt.check(t, s)
			assert.Equal(t, uint64(1_000), domain.LendingPrincipal(s))
		})
	}
}

func TestSimulated_SuilendReusesCapability(t *testing.T) {
	a := lending.NewSimulated(domain.LendingSuilend, 0)
	capability := &domain.CapabilityAttachment{Protocol: domain.LendingSuilend, Handle: "obligation-known"}
	s, err := a.Deposit(context.Background(), 3, 1_000, since, capability)
	require.NoError(t, err)
	assert.Equal(t, "obligation-known", s.(domain.SuilendSupply).ObligationID)
}

func TestSimulated_RewardAndWithdraw(t *testing.T) {
	ctx := context.Background()
	a := lending.NewSimulated(domain.LendingScallop, 1_000)
	s, err := a.Deposit(ctx, 0, 1_000_000, since, nil)
	require.NoError(t, err)

	halfYear := since.Add(365 * 12 * time.Hour)
	reward, err := a.Reward(ctx, s, halfYear)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), reward)

	w, err := a.Withdraw(ctx, 0, s, halfYear)
	require.NoError(t, err)
	assert.Equal(t, domain.LendingWithdrawal{Principal: 1_000_000, Reward: 50_000}, w)

	_, err = a.Withdraw(ctx, 0, domain.NaviSupply{Principal: 1}, halfYear)
	assert.ErrorIs(t, err, domain.ErrLendingEmpty)

	_, err = a.Deposit(ctx, 0, 0, since, nil)
	assert.Error(t, err)
}
