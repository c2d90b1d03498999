package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// NewAuction opens a Dutch auction for the round's undelivered size.
func (e *Engine) NewAuction(ctx context.Context, index uint64, now time.Time) (*domain.Vault, error) {
	return mutate(ctx, e, index, "new_auction", func(v *domain.Vault) (*domain.Vault, error) {
		if v.Status == domain.StatusNewAuction {
			return nil, domain.ErrAuctionAlreadyOpen
		}
		if v.Status != domain.StatusActivate {
			return nil, fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
		}
		if now.Before(v.AuctionStart) {
			return nil, fmt.Errorf("%w: starts at %s", domain.ErrAuctionNotStarted, v.AuctionStart.Format(time.RFC3339))
		}
		if !now.Before(v.Expiration) {
			return nil, fmt.Errorf("%w: round expired at %s", domain.ErrInvalidAction, v.Expiration.Format(time.RFC3339))
		}

		size := v.Remaining()
		end := now.Add(v.Settings.AuctionDuration)
		if err := e.auction.Open(ctx, domain.AuctionRequest{
			Vault:       v.Index,
			Round:       v.Round,
			Size:        size,
			SizeDecimal: v.Tokens.Base.Decimals,
			BidToken:    v.Tokens.Bid.Symbol,
			Lot:         v.Settings.BidLotSize,
			MinSize:     v.Settings.MinBidSize,
			Params:      v.Active.Auction,
			Start:       now,
			End:         end,
		}); err != nil {
			return nil, fmt.Errorf("auction open: %w", err)
		}

		v.AuctionStart = now
		v.AuctionEnd = end
		v.RecoupAt = end.Add(v.Settings.RecoupDelay)
		if err := v.SetStatus(domain.StatusNewAuction); err != nil {
			return nil, err
		}
		return v.Clone(), nil
	})
}

// DeliverAuction closes the auction and delivers every winning fill. With
// early set the auction may close before its scheduled end. Fills beyond the
// remaining size are cut down, the excess value refunded to the bidder.
//
// The fills are priced and staged from a preview; the auction closes only
// once every fill has been staged. A ledger failure after the close leaves
// the vault in NewAuction without a book, which Recoup accepts.
func (e *Engine) DeliverAuction(ctx context.Context, index uint64, early bool, now time.Time) ([]domain.DeliveryRecord, error) {
	return mutate(ctx, e, index, "deliver_auction", func(v *domain.Vault) ([]domain.DeliveryRecord, error) {
		if v.Status != domain.StatusNewAuction {
			return nil, fmt.Errorf("%w: status %s", domain.ErrAuctionNotStarted, v.Status)
		}
		if !early && now.Before(v.AuctionEnd) {
			return nil, fmt.Errorf("%w: ends at %s", domain.ErrAuctionNotEnded, v.AuctionEnd.Format(time.RFC3339))
		}

		res, err := e.auction.Preview(ctx, v.Index, now)
		if err != nil {
			return nil, fmt.Errorf("auction preview: %w", err)
		}
		if now.Before(v.AuctionEnd) {
			v.AuctionEnd = now
			v.RecoupAt = now.Add(v.Settings.RecoupDelay)
		}

		st := e.begin(v.Index)
		defer st.rollback()

		var records []domain.DeliveryRecord
		for _, f := range res.Fills {
			remaining := v.Remaining()
			if remaining == 0 || f.Size == 0 {
				continue
			}
			size, value, refund := f.Size, f.Value, f.Refund
			if size > remaining {
				cut, err := domain.MulDiv(value, remaining, size)
				if err != nil {
					return nil, err
				}
				refund += value - cut
				size, value = remaining, cut
			}
			r, err := e.deliver(ctx, st, v, fill{
				channel: domain.ChannelAuction,
				buyer:   f.Bidder,
				price:   res.Price,
				size:    size,
				value:   value,
				refund:  refund,
			}, now)
			if err != nil {
				return nil, fmt.Errorf("bidder %s: %w", f.Bidder, err)
			}
			records = append(records, r)
		}

		next := domain.StatusDelivery
		if v.Remaining() == 0 {
			next = domain.StatusRecoup
		}
		if err := v.SetStatus(next); err != nil {
			return nil, err
		}

		if _, err := e.auction.Close(ctx, v.Index, now); err != nil {
			return nil, fmt.Errorf("auction close: %w", err)
		}
		if err := st.commit(ctx); err != nil {
			return nil, err
		}
		return records, nil
	})
}

// AuctionOpen reports whether the vault at index has an auction book.
func (e *Engine) AuctionOpen(ctx context.Context, index uint64) bool {
	return e.auction.IsOpen(ctx, index)
}
