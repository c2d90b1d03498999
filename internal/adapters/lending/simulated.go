package lending

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

const year = 365 * 24 * time.Hour

// Simulated is a lending market that accrues simple interest at a fixed
// APR. It speaks the position shape of one protocol: Scallop market coins,
// a Navi scaled balance, or a Suilend obligation with cTokens.
type Simulated struct {
	protocol domain.LendingProtocol
	aprBp    uint64

	mu          sync.Mutex
	obligations int
}

// NewSimulated builds an adapter for protocol paying aprBp per year.
func NewSimulated(protocol domain.LendingProtocol, aprBp uint64) *Simulated {
	return &Simulated{protocol: protocol, aprBp: aprBp}
}

// Protocol implements ports.LendingAdapter.
func (s *Simulated) Protocol() domain.LendingProtocol { return s.protocol }

// Deposit implements ports.LendingAdapter.
func (s *Simulated) Deposit(_ context.Context, vault, amount uint64, now time.Time, capability *domain.CapabilityAttachment) (domain.LendingState, error) {
	if amount == 0 {
		return nil, fmt.Errorf("lending.Deposit: %s: nothing to supply", s.protocol)
	}
	switch s.protocol {
	case domain.LendingScallop:
		return domain.ScallopSupply{Principal: amount, MarketCoins: amount, Since: now}, nil
	case domain.LendingNavi:
		return domain.NaviSupply{Principal: amount, ScaledBalance: amount, Since: now}, nil
	case domain.LendingSuilend:
		var id string
		if capability != nil && capability.Protocol == domain.LendingSuilend {
			id = capability.Handle
		} else {
			s.mu.Lock()
			s.obligations++
			id = fmt.Sprintf("obligation-%d-%d", vault, s.obligations)
			s.mu.Unlock()
		}
		return domain.SuilendSupply{Principal: amount, ObligationID: id, CTokens: amount, Since: now}, nil
	}
	return nil, fmt.Errorf("lending.Deposit: %w: protocol %s", domain.ErrInvalidConfig, s.protocol)
}

// Withdraw implements ports.LendingAdapter.
func (s *Simulated) Withdraw(ctx context.Context, _ uint64, state domain.LendingState, now time.Time) (domain.LendingWithdrawal, error) {
	if p, ok := domain.LendingOf(state); !ok || p != s.protocol {
		return domain.LendingWithdrawal{}, fmt.Errorf("lending.Withdraw: %s position is %T: %w", s.protocol, state, domain.ErrLendingEmpty)
	}
	reward, err := s.Reward(ctx, state, now)
	if err != nil {
		return domain.LendingWithdrawal{}, err
	}
	return domain.LendingWithdrawal{Principal: domain.LendingPrincipal(state), Reward: reward}, nil
}

// Reward implements ports.LendingAdapter: principal * apr * elapsed / year.
func (s *Simulated) Reward(_ context.Context, state domain.LendingState, now time.Time) (uint64, error) {
	var since time.Time
	switch v := state.(type) {
	case domain.ScallopSupply:
		since = v.Since
	case domain.NaviSupply:
		since = v.Since
	case domain.SuilendSupply:
		since = v.Since
	default:
		return 0, nil
	}
	elapsed := now.Sub(since)
	if elapsed <= 0 || s.aprBp == 0 {
		return 0, nil
	}
	yearly, err := domain.MulDiv(domain.LendingPrincipal(state), s.aprBp, domain.BPS)
	if err != nil {
		return 0, fmt.Errorf("lending.Reward: %w", err)
	}
	r, err := domain.MulDiv(yearly, uint64(elapsed), uint64(year))
	if err != nil {
		return 0, fmt.Errorf("lending.Reward: %w", err)
	}
	return r, nil
}
