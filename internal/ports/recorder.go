package ports

import (
	"context"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Recorder persists settlement snapshots and the delivery log.
type Recorder interface {
	SaveSettlement(ctx context.Context, s domain.SettlementInfo) error
	SaveDelivery(ctx context.Context, d domain.DeliveryRecord) error

	// GetSettlements returns vault's snapshots, oldest round first.
	GetSettlements(ctx context.Context, vault uint64) ([]domain.SettlementInfo, error)

	// GetDeliveries returns vault's records for round in fill order.
	GetDeliveries(ctx context.Context, vault, round uint64) ([]domain.DeliveryRecord, error)

	// Close releases the underlying database.
	Close() error
}
