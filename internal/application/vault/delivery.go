package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// safetyNetBuyer receives the size sold through the safety-net channel.
const safetyNetBuyer = "safety_net"

// fill is one tranche leaving the vault, whatever the channel.
type fill struct {
	channel domain.Channel
	buyer   string
	price   uint64
	size    uint64
	value   uint64 // gross bid value paid
	refund  uint64
}

// DeliverOTC fills a negotiated deal at the caller's price.
func (e *Engine) DeliverOTC(ctx context.Context, index uint64, deal domain.Deal, now time.Time) (domain.DeliveryRecord, error) {
	return mutate(ctx, e, index, "deliver_otc", func(v *domain.Vault) (domain.DeliveryRecord, error) {
		if err := checkOutOfBand(v, deal.Size, true); err != nil {
			return domain.DeliveryRecord{}, err
		}
		value, err := domain.BidValue(deal.Price, deal.Size, v.Tokens.Base.Decimals)
		if err != nil {
			return domain.DeliveryRecord{}, err
		}
		records, err := e.deliverOutOfBand(ctx, v, now, fill{
			channel: domain.ChannelOTC,
			buyer:   deal.Buyer,
			price:   deal.Price,
			size:    deal.Size,
			value:   value,
		})
		if err != nil {
			return domain.DeliveryRecord{}, err
		}
		return records[0], nil
	})
}

// DeliverSafetyNet sells size to the vault's safety net at price.
func (e *Engine) DeliverSafetyNet(ctx context.Context, index uint64, price, size uint64, now time.Time) (domain.DeliveryRecord, error) {
	return mutate(ctx, e, index, "safety_net", func(v *domain.Vault) (domain.DeliveryRecord, error) {
		if !v.SafetyNet {
			return domain.DeliveryRecord{}, fmt.Errorf("%w: vault has no safety net", domain.ErrInvalidAction)
		}
		if err := checkOutOfBand(v, size, true); err != nil {
			return domain.DeliveryRecord{}, err
		}
		value, err := domain.BidValue(price, size, v.Tokens.Base.Decimals)
		if err != nil {
			return domain.DeliveryRecord{}, err
		}
		records, err := e.deliverOutOfBand(ctx, v, now, fill{
			channel: domain.ChannelSafetyNet,
			buyer:   safetyNetBuyer,
			price:   price,
			size:    size,
			value:   value,
		})
		if err != nil {
			return domain.DeliveryRecord{}, err
		}
		return records[0], nil
	})
}

// Airdrop hands size to recipients for free. Depositors still receive their
// incentive tranche for the airdropped size.
func (e *Engine) Airdrop(ctx context.Context, index uint64, shares []domain.AirdropShare, now time.Time) ([]domain.DeliveryRecord, error) {
	return mutate(ctx, e, index, "airdrop", func(v *domain.Vault) ([]domain.DeliveryRecord, error) {
		if len(shares) == 0 {
			return nil, fmt.Errorf("%w: no recipients", domain.ErrInvalidAction)
		}
		var total uint64
		fills := make([]fill, 0, len(shares))
		for _, s := range shares {
			if s.Size == 0 || !domain.IsLotMultiple(s.Size, v.Settings.BidLotSize) {
				return nil, fmt.Errorf("%w: %s gets %d", domain.ErrLotSizeViolation, s.Recipient, s.Size)
			}
			var err error
			if total, err = domain.AddUint64(total, s.Size); err != nil {
				return nil, err
			}
			fills = append(fills, fill{
				channel: domain.ChannelAirdrop,
				buyer:   s.Recipient,
				size:    s.Size,
			})
		}
		if err := checkOutOfBand(v, total, false); err != nil {
			return nil, err
		}
		return e.deliverOutOfBand(ctx, v, now, fills...)
	})
}

// checkOutOfBand validates a fill outside the auction.
func checkOutOfBand(v *domain.Vault, size uint64, enforceMin bool) error {
	if !v.Status.AcceptsDelivery() {
		return fmt.Errorf("%w: status %s", domain.ErrInvalidAction, v.Status)
	}
	if size == 0 || !domain.IsLotMultiple(size, v.Settings.BidLotSize) {
		return fmt.Errorf("%w: %d not a multiple of %d", domain.ErrLotSizeViolation, size, v.Settings.BidLotSize)
	}
	if enforceMin && size < v.Settings.MinBidSize {
		return fmt.Errorf("%w: %d below %d", domain.ErrMinSizeViolation, size, v.Settings.MinBidSize)
	}
	if size > v.Remaining() {
		return fmt.Errorf("%w: %d exceeds remaining %d", domain.ErrMaxSizeViolation, size, v.Remaining())
	}
	return nil
}

// deliverOutOfBand delivers fills as one unit and moves the vault to Recoup
// once nothing is left to sell, otherwise to Delivery.
func (e *Engine) deliverOutOfBand(ctx context.Context, v *domain.Vault, now time.Time, fills ...fill) ([]domain.DeliveryRecord, error) {
	st := e.begin(v.Index)
	defer st.rollback()

	records := make([]domain.DeliveryRecord, 0, len(fills))
	for _, f := range fills {
		r, err := e.deliver(ctx, st, v, f, now)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	next := domain.StatusDelivery
	if v.Remaining() == 0 {
		next = domain.StatusRecoup
	}
	if v.Status != next {
		if err := v.SetStatus(next); err != nil {
			return nil, err
		}
	}
	if err := st.commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// deliver is the bookkeeping shared by every channel: cap the size, split
// the bid value into premium and fee, grant incentives and log the record.
// Token movements are staged on st.
func (e *Engine) deliver(ctx context.Context, st *stage, v *domain.Vault, f fill, now time.Time) (domain.DeliveryRecord, error) {
	delivered, err := domain.AddUint64(v.Delivered, f.size)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	if delivered > v.MaxSize {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %d+%d exceeds %d", domain.ErrMaxSizeViolation, v.Delivered, f.size, v.MaxSize)
	}

	fee, err := domain.MulDiv(f.value, v.Settings.BidFeeBp, domain.BPS)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	premium := f.value - fee

	grant, err := e.grantIncentives(ctx, st, v, f.size, now)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}

	transfer := domain.DeliveryTransfer{
		Round:   v.Round,
		Channel: f.channel,
		Buyer:   f.buyer,
		Size:    f.size,
		Premium: premium,
	}
	for _, amt := range grant.Net() {
		if amt.Token == v.Tokens.Bid.Symbol {
			if transfer.Premium, err = domain.AddUint64(transfer.Premium, amt.Amount); err != nil {
				return domain.DeliveryRecord{}, err
			}
			continue
		}
		transfer.Extra = append(transfer.Extra, amt)
	}

	r := domain.DeliveryRecord{
		ID:                  uuid.New().String(),
		Vault:               v.Index,
		Round:               v.Round,
		Channel:             f.channel,
		Buyer:               f.buyer,
		Price:               f.price,
		Size:                f.size,
		BidderValue:         f.value,
		BidderFee:           fee,
		IncentiveToken:      grant.Token,
		IncentiveValue:      grant.Amount,
		IncentiveFee:        grant.Fee,
		FixedIncentiveToken: grant.FixedToken,
		FixedIncentiveValue: grant.FixedAmount,
		FixedIncentiveFee:   grant.FixedFee,
		Refund:              f.refund,
		Timestamp:           now,
	}
	totals, err := v.Totals.Add(r)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}

	st.transfer(transfer)
	st.fee(v.Tokens.Bid.Symbol, fee)
	st.fee(grant.Token, grant.Fee)
	st.fee(grant.FixedToken, grant.FixedFee)

	v.Totals = totals
	v.Delivered = delivered
	v.Deliveries = append(v.Deliveries, r)
	return r, nil
}
