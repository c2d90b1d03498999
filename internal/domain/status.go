package domain

// Status is the position of a vault inside its round lifecycle.
type Status uint8

const (
	StatusActivate Status = iota
	StatusNewAuction
	StatusDelivery
	StatusRecoup
	StatusSettle
)

func (s Status) String() string {
	switch s {
	case StatusActivate:
		return "ACTIVATE"
	case StatusNewAuction:
		return "NEW_AUCTION"
	case StatusDelivery:
		return "DELIVERY"
	case StatusRecoup:
		return "RECOUP"
	case StatusSettle:
		return "SETTLE"
	}
	return "UNKNOWN"
}

// IsCycleBoundary is true between rounds: the previous round is settled and
// the next one has not been activated.
func (s Status) IsCycleBoundary() bool {
	return s == StatusSettle
}

// CanTransition reports whether the lifecycle allows moving from s to next.
//
//	Settle     -> Activate
//	Activate   -> NewAuction | Delivery | Recoup
//	NewAuction -> Delivery | Recoup
//	Delivery   -> Delivery | Recoup
//	Recoup     -> Settle
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusSettle:
		return next == StatusActivate
	case StatusActivate:
		return next == StatusNewAuction || next == StatusDelivery || next == StatusRecoup
	case StatusNewAuction:
		return next == StatusDelivery || next == StatusRecoup
	case StatusDelivery:
		return next == StatusDelivery || next == StatusRecoup
	case StatusRecoup:
		return next == StatusSettle
	}
	return false
}

// AcceptsDelivery reports whether out-of-band channels (OTC, safety net,
// airdrop) may fill size in this status.
func (s Status) AcceptsDelivery() bool {
	return s == StatusActivate || s == StatusDelivery
}
