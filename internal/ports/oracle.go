package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Oracle serves spot prices with an explicit staleness bound.
type Oracle interface {
	// GetPrice returns the latest price of oracleID and its decimal scale.
	// Fails with domain.ErrStaleOracle when now-lastUpdate >= the bound;
	// a stale read is never served.
	GetPrice(ctx context.Context, oracleID string, now time.Time) (price uint64, decimal uint8, err error)

	// GetToken describes the pair oracleID prices.
	GetToken(ctx context.Context, oracleID string) (domain.OracleTokens, error)
}

// PriceSource fetches fresh prices from outside the process so an oracle can
// be kept updated.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (domain.PriceQuote, error)
}
