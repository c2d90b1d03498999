package domain

import "time"

// PriceQuote is a price observed by an external source.
type PriceQuote struct {
	Symbol  string
	Price   uint64
	Decimal uint8
	At      time.Time
}
