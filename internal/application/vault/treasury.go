package vault

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// Treasury holds the protocol-wide pools shared by every vault: incentives
// waiting to be granted, and fees collected from deliveries and deposits.
// Pools only shrink through Draw and only grow through TopUp and AddFee.
type Treasury struct {
	mu         sync.Mutex
	incentives map[string]uint64
	fees       map[string]uint64
}

// NewTreasury returns empty pools.
func NewTreasury() *Treasury {
	return &Treasury{
		incentives: make(map[string]uint64),
		fees:       make(map[string]uint64),
	}
}

// TopUp adds amount of token to the incentive pool.
func (t *Treasury) TopUp(token string, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, err := domain.AddUint64(t.incentives[token], amount)
	if err != nil {
		return fmt.Errorf("vault.Treasury.TopUp: %w", err)
	}
	t.incentives[token] = v
	return nil
}

// Draw takes up to want of token from the incentive pool and returns what
// was taken.
func (t *Treasury) Draw(token string, want uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	got := min(want, t.incentives[token])
	t.incentives[token] -= got
	return got
}

// Restore puts back an amount taken by Draw whose delivery failed.
func (t *Treasury) Restore(token string, amount uint64) {
	if amount == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.incentives[token] += amount
}

// AddFee credits a fee to the fee pool.
func (t *Treasury) AddFee(token string, amount uint64) {
	if amount == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fees[token] += amount
}

// Incentive is the incentive pool balance of token.
func (t *Treasury) Incentive(token string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.incentives[token]
}

// Fee is the fee pool balance of token.
func (t *Treasury) Fee(token string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fees[token]
}

// Fees lists every non-zero fee balance ordered by token.
func (t *Treasury) Fees() []domain.TokenAmount {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TokenAmount, 0, len(t.fees))
	for k, v := range t.fees {
		if v > 0 {
			out = append(out, domain.TokenAmount{Token: k, Amount: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}
