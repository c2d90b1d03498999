package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Auction is the Dutch auction price-discovery engine.
type Auction interface {
	Open(ctx context.Context, req domain.AuctionRequest) error
	IsOpen(ctx context.Context, vault uint64) bool

	// Preview returns the fills Close would produce at now without closing.
	Preview(ctx context.Context, vault uint64, now time.Time) (domain.AuctionResult, error)

	// Close ends the auction at now, possibly before its scheduled end, and
	// returns the winning fills at the clearing price.
	Close(ctx context.Context, vault uint64, now time.Time) (domain.AuctionResult, error)
}
