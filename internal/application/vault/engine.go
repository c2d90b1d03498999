package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
)

// Deps are the collaborators the engine consumes.
type Deps struct {
	Oracle  ports.Oracle
	Ledger  ports.Ledger
	Auction ports.Auction
	Lending []ports.LendingAdapter
	Pegs    *domain.PegRegistry

	// Decimals of tokens that are neither deposit nor bid token of a vault,
	// e.g. a third incentive token.
	Decimals map[string]uint8
}

// Engine runs the round lifecycle of every listed vault. Calls on one vault
// are serialized and applied all-or-nothing; different vaults proceed in
// parallel.
type Engine struct {
	oracle   ports.Oracle
	ledger   ports.Ledger
	auction  ports.Auction
	lending  map[domain.LendingProtocol]ports.LendingAdapter
	pegs     *domain.PegRegistry
	decimals map[string]uint8

	treasury  *Treasury
	suspended atomic.Bool

	mu    sync.RWMutex // guards slots and next
	slots map[uint64]*slot
	next  uint64
}

// slot serializes every call on one vault.
type slot struct {
	mu sync.Mutex
	v  *domain.Vault
}

// New builds an engine with no vaults listed.
func New(d Deps) *Engine {
	lending := make(map[domain.LendingProtocol]ports.LendingAdapter, len(d.Lending))
	for _, a := range d.Lending {
		lending[a.Protocol()] = a
	}
	decimals := make(map[string]uint8, len(d.Decimals))
	for k, v := range d.Decimals {
		decimals[k] = v
	}
	return &Engine{
		oracle:   d.Oracle,
		ledger:   d.Ledger,
		auction:  d.Auction,
		lending:  lending,
		pegs:     d.Pegs,
		decimals: decimals,
		treasury: NewTreasury(),
		slots:    make(map[uint64]*slot),
	}
}

// Treasury exposes the protocol-wide incentive and fee pools.
func (e *Engine) Treasury() *Treasury { return e.treasury }

// Suspend freezes every mutating call until Resume.
func (e *Engine) Suspend() {
	e.suspended.Store(true)
	slog.Warn("vault: engine suspended")
}

// Resume lifts a Suspend.
func (e *Engine) Resume() {
	e.suspended.Store(false)
	slog.Info("vault: engine resumed")
}

// Suspended reports whether mutating calls are frozen.
func (e *Engine) Suspended() bool { return e.suspended.Load() }

// Vault returns a snapshot of the vault at index.
func (e *Engine) Vault(index uint64) (*domain.Vault, error) {
	s, err := e.slot(index)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.Clone(), nil
}

// Vaults returns snapshots of every listed vault ordered by index.
func (e *Engine) Vaults() []*domain.Vault {
	e.mu.RLock()
	slots := make([]*slot, 0, len(e.slots))
	for _, s := range e.slots {
		slots = append(slots, s)
	}
	e.mu.RUnlock()

	out := make([]*domain.Vault, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		out = append(out, s.v.Clone())
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (e *Engine) slot(index uint64) (*slot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.slots[index]
	if !ok {
		return nil, &domain.VaultError{Index: index, Op: "lookup", Err: domain.ErrVaultNotFound}
	}
	return s, nil
}

// mutate runs fn on a private copy of the vault and commits the copy only if
// fn succeeds, so a failed call leaves no trace on the vault.
func mutate[T any](ctx context.Context, e *Engine, index uint64, op string, fn func(v *domain.Vault) (T, error)) (T, error) {
	var zero T
	if e.suspended.Load() {
		return zero, &domain.VaultError{Index: index, Op: op, Err: domain.ErrSuspended}
	}
	if err := ctx.Err(); err != nil {
		return zero, &domain.VaultError{Index: index, Op: op, Err: err}
	}
	s, err := e.slot(index)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.v.Clone()
	out, err := fn(next)
	if err != nil {
		slog.Debug("vault: call rejected", "vault", index, "op", op, "status", s.v.Status, "err", err)
		return zero, &domain.VaultError{Index: index, Op: op, Err: err}
	}
	if next.Status != s.v.Status || next.Round != s.v.Round {
		slog.Info("vault: transition",
			"vault", index,
			"op", op,
			"round", next.Round,
			"from", s.v.Status,
			"status", next.Status,
		)
	}
	s.v = next
	return out, nil
}

// tokenDecimals resolves the decimal scale of symbol from the vault's own
// tokens first, then from the engine registry.
func (e *Engine) tokenDecimals(v *domain.Vault, symbol string) (uint8, error) {
	for _, t := range []domain.TokenInfo{v.Tokens.Deposit, v.Tokens.Bid, v.Tokens.Base, v.Tokens.Quote} {
		if t.Symbol == symbol {
			return t.Decimals, nil
		}
	}
	if d, ok := e.decimals[symbol]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: unknown token %q", domain.ErrTokenMismatch, symbol)
}
