package ports

import (
	"context"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Notifier presents vault state to an operator.
type Notifier interface {
	NotifySettlements(ctx context.Context, s []domain.SettlementInfo) error
	NotifyDeliveries(ctx context.Context, d []domain.DeliveryRecord) error
	NotifyVaults(ctx context.Context, v []*domain.Vault) error
}
