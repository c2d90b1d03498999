package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// LendingAdapter earns yield on idle collateral in one external protocol.
type LendingAdapter interface {
	Protocol() domain.LendingProtocol

	// Deposit supplies amount and returns the position. capability is the
	// handle a previous deposit issued, nil on first use.
	Deposit(ctx context.Context, vault, amount uint64, now time.Time, capability *domain.CapabilityAttachment) (domain.LendingState, error)

	// Withdraw closes the position held in state.
	Withdraw(ctx context.Context, vault uint64, state domain.LendingState, now time.Time) (domain.LendingWithdrawal, error)

	// Reward is the yield accrued by state so far.
	Reward(ctx context.Context, state domain.LendingState, now time.Time) (uint64, error)
}
