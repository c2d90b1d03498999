package vault

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// stage collects the side effects of one call outside the vault copy.
// Treasury draws are taken as they are computed, so two vaults never grant
// the same pool balance, and handed back by rollback. Ledger transfers and
// fees wait for commit, which hands every transfer to the ledger at once.
type stage struct {
	e     *Engine
	vault uint64
	done  bool

	draws     []domain.TokenAmount
	fees      []domain.TokenAmount
	transfers []domain.DeliveryTransfer
}

func (e *Engine) begin(vault uint64) *stage {
	return &stage{e: e, vault: vault}
}

// draw takes up to want of token from the protocol incentive pool.
func (s *stage) draw(token string, want uint64) uint64 {
	got := s.e.treasury.Draw(token, want)
	if got > 0 {
		s.draws = append(s.draws, domain.TokenAmount{Token: token, Amount: got})
	}
	return got
}

func (s *stage) fee(token string, amount uint64) {
	if amount > 0 {
		s.fees = append(s.fees, domain.TokenAmount{Token: token, Amount: amount})
	}
}

func (s *stage) transfer(t domain.DeliveryTransfer) {
	s.transfers = append(s.transfers, t)
}

// commit applies the staged transfers and fees. On a ledger error nothing
// was applied and the draws are still held for rollback.
func (s *stage) commit(ctx context.Context) error {
	if s.done {
		return nil
	}
	if len(s.transfers) > 0 {
		if err := s.e.ledger.Delivery(ctx, s.vault, s.transfers...); err != nil {
			return fmt.Errorf("ledger delivery: %w", err)
		}
	}
	for _, f := range s.fees {
		s.e.treasury.AddFee(f.Token, f.Amount)
	}
	s.done = true
	return nil
}

// rollback returns the draws of an uncommitted stage. Safe to defer.
func (s *stage) rollback() {
	if s.done {
		return
	}
	for _, d := range s.draws {
		s.e.treasury.Restore(d.Token, d.Amount)
	}
	s.draws = nil
	s.done = true
}
