package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Recoup returns the undelivered fraction (maxSize-delivered)/maxSize of the
// round's collateral to depositors. The collateral must be back from any
// lending protocol. From NewAuction it is allowed only once the auction book
// is gone.
func (e *Engine) Recoup(ctx context.Context, index uint64, now time.Time) (*domain.Vault, error) {
	return mutate(ctx, e, index, "recoup", func(v *domain.Vault) (*domain.Vault, error) {
		switch v.Status {
		case domain.StatusRecoup:
			return v.Clone(), nil
		case domain.StatusNewAuction:
			if e.auction.IsOpen(ctx, v.Index) {
				return nil, domain.ErrAuctionAlreadyOpen
			}
		case domain.StatusActivate, domain.StatusDelivery:
		default:
			return nil, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if now.Before(v.RecoupAt) {
			return nil, fmt.Errorf("%w: recoup at %s", domain.ErrRecoupNotReady, v.RecoupAt.Format(time.RFC3339))
		}
		if v.LendingBusy() {
			return nil, domain.ErrLendingNotWithdrawn
		}

		refund, err := e.ledger.Recoup(ctx, v.Index, v.Round, v.Remaining(), v.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("ledger recoup: %w", err)
		}
		v.RecoupRefund = refund
		if err := v.SetStatus(domain.StatusRecoup); err != nil {
			return nil, err
		}
		return v.Clone(), nil
	})
}
