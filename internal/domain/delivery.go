package domain

import (
	"fmt"
	"time"
)

// Channel is the way size left the vault.
type Channel uint8

const (
	ChannelAuction Channel = iota
	ChannelOTC
	ChannelSafetyNet
	ChannelAirdrop
)

func (c Channel) String() string {
	switch c {
	case ChannelAuction:
		return "auction"
	case ChannelOTC:
		return "otc"
	case ChannelSafetyNet:
		return "safety_net"
	case ChannelAirdrop:
		return "airdrop"
	}
	return "unknown"
}

// ParseChannel is the inverse of Channel.String.
func ParseChannel(s string) (Channel, error) {
	for _, c := range []Channel{ChannelAuction, ChannelOTC, ChannelSafetyNet, ChannelAirdrop} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown delivery channel %q", ErrInvalidConfig, s)
}

// DeliveryRecord is one filled tranche. Values are in bid token units unless
// the field names a token.
type DeliveryRecord struct {
	ID      string
	Vault   uint64
	Round   uint64
	Channel Channel
	Buyer   string
	Price   uint64 // bid token per whole contract
	Size    uint64 // base token units

	BidderValue uint64 // gross value paid by the buyer
	BidderFee   uint64

	IncentiveToken string
	IncentiveValue uint64
	IncentiveFee   uint64

	FixedIncentiveToken string
	FixedIncentiveValue uint64
	FixedIncentiveFee   uint64

	Refund    uint64 // returned to the buyer by the auction
	Timestamp time.Time
}

// Premium is what reaches depositors from the buyer's payment.
func (r DeliveryRecord) Premium() uint64 {
	return r.BidderValue - r.BidderFee
}

// DeliveryTotals accumulates the records of one round.
type DeliveryTotals struct {
	Size                uint64
	BidderValue         uint64
	BidderFee           uint64
	IncentiveValue      uint64
	IncentiveFee        uint64
	FixedIncentiveValue uint64
	FixedIncentiveFee   uint64
}

// Add folds r into t with overflow checks.
func (t DeliveryTotals) Add(r DeliveryRecord) (DeliveryTotals, error) {
	var err error
	pairs := []struct {
		dst *uint64
		v   uint64
	}{
		{&t.Size, r.Size},
		{&t.BidderValue, r.BidderValue},
		{&t.BidderFee, r.BidderFee},
		{&t.IncentiveValue, r.IncentiveValue},
		{&t.IncentiveFee, r.IncentiveFee},
		{&t.FixedIncentiveValue, r.FixedIncentiveValue},
		{&t.FixedIncentiveFee, r.FixedIncentiveFee},
	}
	for _, p := range pairs {
		if *p.dst, err = AddUint64(*p.dst, p.v); err != nil {
			return DeliveryTotals{}, err
		}
	}
	return t, nil
}

// Deal is a negotiated fill at a caller-supplied price.
type Deal struct {
	Buyer string
	Price uint64 // bid token per whole contract
	Size  uint64
}

// AirdropShare is a zero-priced fill to a recipient.
type AirdropShare struct {
	Recipient string
	Size      uint64
}

// DeliveryTransfer is the ledger mutation a fill produces: premium and
// incentives move to depositors and the buyer receives a claim on size.
type DeliveryTransfer struct {
	Round   uint64
	Channel Channel
	Buyer   string
	Size    uint64
	Premium uint64        // bid token, incentives in the bid token included
	Extra   []TokenAmount // incentives paid in other tokens
}
