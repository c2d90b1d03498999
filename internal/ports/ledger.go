package ports

import (
	"context"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Ledger keeps the share pools and token movements of every vault. The
// engine decides what moves; the ledger applies it.
type Ledger interface {
	// Open registers a freshly listed vault.
	Open(ctx context.Context, vault uint64, tokens domain.VaultTokens) error

	// Deposit credits amount to user's warmup pool.
	Deposit(ctx context.Context, vault uint64, user string, amount uint64) error

	// Balances returns user's pools, or the vault totals when user is empty.
	Balances(ctx context.Context, vault uint64, user string) (domain.LedgerBalances, error)

	// Activate moves warmup into active for round and returns the active
	// collateral backing the round.
	Activate(ctx context.Context, vault, round uint64) (uint64, error)

	// Delivery pays premium and incentives to active depositors and mints a
	// bid receipt for each buyer. The transfers apply together or not at all.
	Delivery(ctx context.Context, vault uint64, ts ...domain.DeliveryTransfer) error

	// Recoup returns undelivered/maxSize of active collateral to warmup and
	// reports the amount moved.
	Recoup(ctx context.Context, vault, round, undelivered, maxSize uint64) (uint64, error)

	// ActiveBalance is the collateral at risk.
	ActiveBalance(ctx context.Context, vault uint64) (uint64, error)

	// ShareSupply is the total active share supply.
	ShareSupply(ctx context.Context, vault uint64) (uint64, error)

	// Settle pays the loss to bid receipt holders and reprices active shares.
	Settle(ctx context.Context, vault uint64, t domain.SettleTransfer) error

	// WithdrawForLending releases the active collateral to a lending protocol.
	WithdrawForLending(ctx context.Context, vault uint64) (uint64, error)

	// DepositFromLending takes collateral back, crediting reward to active depositors.
	DepositFromLending(ctx context.Context, vault uint64, principal, reward uint64) error

	// Drain closes the vault and returns what was left in it.
	Drain(ctx context.Context, vault uint64) (domain.LedgerBalances, error)
}
