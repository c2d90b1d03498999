package domain

import "time"

// AuctionRequest opens a Dutch auction for one round's remaining size.
type AuctionRequest struct {
	Vault       uint64
	Round       uint64
	Size        uint64
	SizeDecimal uint8
	BidToken    string
	Lot         uint64
	MinSize     uint64
	Params      AuctionParams
	Start       time.Time
	End         time.Time
}

// AuctionFill is one winning bid. Value is what the bidder pays at the
// clearing price; Refund is their overbid returned.
type AuctionFill struct {
	Bidder string
	Size   uint64
	Value  uint64
	Refund uint64
}

// AuctionResult is the outcome of closing an auction.
type AuctionResult struct {
	Price uint64 // clearing price, bid token per whole contract
	Fills []AuctionFill
}

// Size is the total size filled.
func (r AuctionResult) Size() uint64 {
	var n uint64
	for _, f := range r.Fills {
		n += f.Size
	}
	return n
}

// BidValue is what size costs at price: price * size / 10^sizeDecimal.
func BidValue(price, size uint64, sizeDecimal uint8) (uint64, error) {
	unit, err := Pow10(sizeDecimal)
	if err != nil {
		return 0, err
	}
	return MulDiv(price, size, unit)
}
