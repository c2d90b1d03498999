package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
)

// Feed describes one priced pair.
type Feed struct {
	ID        string
	Tokens    domain.OracleTokens
	Decimal   uint8
	Staleness time.Duration // zero disables the check
}

type feedState struct {
	Feed
	price   uint64
	updated time.Time
}

// Fixture is an in-process oracle whose prices are pushed by the caller,
// either by hand or from a ports.PriceSource through Refresh.
type Fixture struct {
	mu    sync.RWMutex
	feeds map[string]*feedState
}

// NewFixture registers feeds with no price yet.
func NewFixture(feeds ...Feed) *Fixture {
	f := &Fixture{feeds: make(map[string]*feedState, len(feeds))}
	for _, feed := range feeds {
		f.Register(feed)
	}
	return f
}

// Register adds or replaces a feed.
func (f *Fixture) Register(feed Feed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[feed.ID] = &feedState{Feed: feed}
}

// Update records a new price for id observed at at.
func (f *Fixture) Update(id string, price uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.feeds[id]
	if !ok {
		return fmt.Errorf("oracle.Update: %q: %w", id, domain.ErrUnknownOracle)
	}
	s.price = price
	s.updated = at
	return nil
}

// GetPrice implements ports.Oracle.
func (f *Fixture) GetPrice(_ context.Context, id string, now time.Time) (uint64, uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.feeds[id]
	if !ok {
		return 0, 0, fmt.Errorf("oracle.GetPrice: %q: %w", id, domain.ErrUnknownOracle)
	}
	if s.updated.IsZero() {
		return 0, 0, fmt.Errorf("oracle.GetPrice: %q never updated: %w", id, domain.ErrStaleOracle)
	}
	if s.Staleness > 0 && now.Sub(s.updated) >= s.Staleness {
		return 0, 0, fmt.Errorf("oracle.GetPrice: %q updated %s, bound %s: %w",
			id, s.updated.Format(time.RFC3339), s.Staleness, domain.ErrStaleOracle)
	}
	return s.price, s.Decimal, nil
}

// GetToken implements ports.Oracle.
func (f *Fixture) GetToken(_ context.Context, id string) (domain.OracleTokens, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.feeds[id]
	if !ok {
		return domain.OracleTokens{}, fmt.Errorf("oracle.GetToken: %q: %w", id, domain.ErrUnknownOracle)
	}
	return s.Tokens, nil
}

// Refresh pulls the latest quote of every feed's base symbol from src and
// rescales it to the feed's decimal. Feeds src cannot price are skipped and
// reported in the returned error.
func (f *Fixture) Refresh(ctx context.Context, src ports.PriceSource) error {
	f.mu.RLock()
	feeds := make([]Feed, 0, len(f.feeds))
	for _, s := range f.feeds {
		feeds = append(feeds, s.Feed)
	}
	f.mu.RUnlock()

	var failed []string
	for _, feed := range feeds {
		q, err := src.FetchPrice(ctx, feed.Tokens.BaseSymbol+"/"+feed.Tokens.QuoteSymbol)
		if err != nil {
			failed = append(failed, feed.ID)
			continue
		}
		price, err := domain.ScaleDecimals(q.Price, q.Decimal, feed.Decimal)
		if err != nil {
			failed = append(failed, feed.ID)
			continue
		}
		if err := f.Update(feed.ID, price, q.At); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("oracle.Refresh: %d feeds failed: %v", len(failed), failed)
	}
	return nil
}
