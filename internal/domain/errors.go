package domain

import (
	"errors"
	"fmt"
)

// Sequencing errors: the caller invoked an operation out of order. A well-behaved
// keeper never sees these.
var (
	ErrInvalidAction       = errors.New("invalid action")
	ErrNotYetActivated     = errors.New("not yet activated")
	ErrNotYetExpired       = errors.New("not yet expired")
	ErrAuctionAlreadyOpen  = errors.New("auction already open")
	ErrAuctionNotStarted   = errors.New("auction not yet started")
	ErrAuctionNotEnded     = errors.New("auction not yet ended")
	ErrRecoupNotReady      = errors.New("recoup delay not yet passed")
	ErrRoundMismatch       = errors.New("round mismatch")
	ErrLendingNotWithdrawn = errors.New("lending protocol not yet withdrawn")
	ErrLendingEmpty        = errors.New("no lending position")
	ErrSuspended           = errors.New("engine suspended")
	ErrVaultNotFound       = errors.New("vault not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTokenMismatch       = errors.New("token type mismatch")
)

// Size and parameter errors.
var (
	ErrLotSizeViolation = errors.New("lot size violation")
	ErrMinSizeViolation = errors.New("min size violation")
	ErrMaxSizeViolation = errors.New("max size violation")
	ErrStrikeRequired   = errors.New("strike required")
	ErrInvalidConfig    = errors.New("invalid config")
	ErrStaleOracle      = errors.New("oracle price stale")
	ErrUnknownOracle    = errors.New("unknown oracle")
)

// Invariant violations: a misconfigured option structure or arithmetic that
// cannot be represented.
var (
	ErrMaxLossNotNegative = errors.New("worst-case loss not negative")
	ErrOverflow           = errors.New("arithmetic overflow")
)

// VaultError ties a failure to the vault and operation that produced it.
type VaultError struct {
	Index uint64
	Op    string
	Err   error
}

func (e *VaultError) Error() string {
	return fmt.Sprintf("vault %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *VaultError) Unwrap() error { return e.Err }

// IsSequencing reports whether err signals caller or operator misuse.
func IsSequencing(err error) bool {
	for _, target := range []error{
		ErrInvalidAction, ErrNotYetActivated, ErrNotYetExpired, ErrAuctionAlreadyOpen,
		ErrAuctionNotStarted, ErrAuctionNotEnded, ErrRecoupNotReady, ErrRoundMismatch,
		ErrLendingNotWithdrawn, ErrLendingEmpty, ErrSuspended,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariant reports whether err signals a misconfigured option structure.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrMaxLossNotNegative) || errors.Is(err, ErrOverflow)
}
