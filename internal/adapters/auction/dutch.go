package auction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

var (
	// ErrNoAuction is returned when a vault has no open auction.
	ErrNoAuction = errors.New("auction: not open")
	// ErrAuctionClosed is returned for a bid outside the auction window.
	ErrAuctionClosed = errors.New("auction: outside bidding window")
)

// bid is one escrowed bid. Value was paid at the price current when it was
// placed; the difference to the clearing price is refunded at close.
type bid struct {
	bidder string
	size   uint64
	price  uint64
	value  uint64
	seq    int
}

type book struct {
	req  domain.AuctionRequest
	bids []bid
}

// Dutch is a descending-price auction. The price falls from InitialPrice to
// FinalPrice over the window; DecaySpeed is the exponent of the decay curve
// (0 holds the initial price, 1 is linear, higher values drop faster early).
// Every winner pays the clearing price, the lowest winning bid.
type Dutch struct {
	mu      sync.Mutex
	books   map[uint64]*book
	refunds map[string]uint64 // losing or partially filled bids, bid token
}

// NewDutch returns an auction house with nothing open.
func NewDutch() *Dutch {
	return &Dutch{
		books:   make(map[uint64]*book),
		refunds: make(map[string]uint64),
	}
}

// Open implements ports.Auction.
func (d *Dutch) Open(_ context.Context, req domain.AuctionRequest) error {
	if !req.End.After(req.Start) {
		return fmt.Errorf("auction.Open: vault %d: empty window", req.Vault)
	}
	if req.Params.InitialPrice < req.Params.FinalPrice {
		return fmt.Errorf("auction.Open: vault %d: %w", req.Vault, domain.ErrInvalidConfig)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.books[req.Vault]; ok {
		return fmt.Errorf("auction.Open: vault %d: %w", req.Vault, domain.ErrAuctionAlreadyOpen)
	}
	d.books[req.Vault] = &book{req: req}
	return nil
}

// IsOpen implements ports.Auction.
func (d *Dutch) IsOpen(_ context.Context, vault uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.books[vault]
	return ok
}

// Price is the current auction price of vault at now.
func (d *Dutch) Price(vault uint64, now time.Time) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.books[vault]
	if !ok {
		return 0, fmt.Errorf("auction.Price: vault %d: %w", vault, ErrNoAuction)
	}
	return priceAt(b.req, now)
}

// priceAt evaluates final + (initial-final) * (remaining/window)^decay.
func priceAt(req domain.AuctionRequest, now time.Time) (uint64, error) {
	p := req.Params
	if !now.After(req.Start) {
		return p.InitialPrice, nil
	}
	if !now.Before(req.End) {
		return p.FinalPrice, nil
	}
	window := uint64(req.End.Sub(req.Start))
	remaining := uint64(req.End.Sub(now))
	span := p.InitialPrice - p.FinalPrice
	for i := uint64(0); i < p.DecaySpeed && span > 0; i++ {
		var err error
		if span, err = domain.MulDiv(span, remaining, window); err != nil {
			return 0, err
		}
	}
	return p.FinalPrice + span, nil
}

// Bid escrows a bid for size at the current price and returns what was paid.
func (d *Dutch) Bid(_ context.Context, vault uint64, bidder string, size uint64, now time.Time) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.books[vault]
	if !ok {
		return 0, fmt.Errorf("auction.Bid: vault %d: %w", vault, ErrNoAuction)
	}
	if now.Before(b.req.Start) || !now.Before(b.req.End) {
		return 0, fmt.Errorf("auction.Bid: vault %d: %w", vault, ErrAuctionClosed)
	}
	if size == 0 || !domain.IsLotMultiple(size, b.req.Lot) {
		return 0, fmt.Errorf("auction.Bid: size %d: %w", size, domain.ErrLotSizeViolation)
	}
	if size < b.req.MinSize {
		return 0, fmt.Errorf("auction.Bid: size %d: %w", size, domain.ErrMinSizeViolation)
	}
	price, err := priceAt(b.req, now)
	if err != nil {
		return 0, fmt.Errorf("auction.Bid: %w", err)
	}
	value, err := domain.BidValue(price, size, b.req.SizeDecimal)
	if err != nil {
		return 0, fmt.Errorf("auction.Bid: %w", err)
	}
	b.bids = append(b.bids, bid{bidder: bidder, size: size, price: price, value: value, seq: len(b.bids)})
	return value, nil
}

// Preview implements ports.Auction.
func (d *Dutch) Preview(_ context.Context, vault uint64, _ time.Time) (domain.AuctionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.books[vault]
	if !ok {
		return domain.AuctionResult{}, fmt.Errorf("auction.Preview: vault %d: %w", vault, ErrNoAuction)
	}
	res, _, err := b.clear()
	if err != nil {
		return domain.AuctionResult{}, fmt.Errorf("auction.Preview: %w", err)
	}
	return res, nil
}

// Close implements ports.Auction. Bids that win nothing are refunded in full.
func (d *Dutch) Close(_ context.Context, vault uint64, _ time.Time) (domain.AuctionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.books[vault]
	if !ok {
		return domain.AuctionResult{}, fmt.Errorf("auction.Close: vault %d: %w", vault, ErrNoAuction)
	}
	res, losers, err := b.clear()
	if err != nil {
		return domain.AuctionResult{}, fmt.Errorf("auction.Close: %w", err)
	}
	delete(d.books, vault)
	for _, l := range losers {
		d.refunds[l.bidder] += l.value
	}
	return res, nil
}

// clear fills bids highest price first, then in arrival order, until the
// auctioned size is exhausted. The last winner may be filled partially.
func (b *book) clear() (domain.AuctionResult, []bid, error) {
	bids := append([]bid(nil), b.bids...)
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].price != bids[j].price {
			return bids[i].price > bids[j].price
		}
		return bids[i].seq < bids[j].seq
	})

	type win struct {
		bid
		filled uint64
	}
	var wins []win
	var losers []bid
	left := b.req.Size
	for _, bd := range bids {
		if left == 0 {
			losers = append(losers, bd)
			continue
		}
		n := min(bd.size, left)
		if b.req.Lot > 0 {
			n = n / b.req.Lot * b.req.Lot
		}
		if n == 0 {
			losers = append(losers, bd)
			continue
		}
		wins = append(wins, win{bid: bd, filled: n})
		left -= n
	}
	if len(wins) == 0 {
		return domain.AuctionResult{}, losers, nil
	}

	clearing := wins[len(wins)-1].price
	res := domain.AuctionResult{Price: clearing}
	for _, w := range wins {
		value, err := domain.BidValue(clearing, w.filled, b.req.SizeDecimal)
		if err != nil {
			return domain.AuctionResult{}, nil, err
		}
		res.Fills = append(res.Fills, domain.AuctionFill{
			Bidder: w.bidder,
			Size:   w.filled,
			Value:  value,
			Refund: w.value - value,
		})
	}
	return res, losers, nil
}

// Refunded is the total refunded to bidder for bids that won nothing.
func (d *Dutch) Refunded(bidder string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refunds[bidder]
}
