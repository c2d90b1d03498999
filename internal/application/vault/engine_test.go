package vault_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/adapters/auction"
	"github.com/alejandrodnm/dovault/internal/adapters/ledger"
	"github.com/alejandrodnm/dovault/internal/adapters/lending"
	"github.com/alejandrodnm/dovault/internal/adapters/oracle"
	"github.com/alejandrodnm/dovault/internal/application/vault"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiUSDC = "SUI/USDC"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	ctx     context.Context
	eng     *vault.Engine
	oracle  *oracle.Fixture
	ledger  *ledger.Memory
	auction *auction.Dutch
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	o := oracle.NewFixture(oracle.Feed{
		ID:        suiUSDC,
		Tokens:    domain.OracleTokens{BaseSymbol: "SUI", QuoteSymbol: "USDC"},
		Decimal:   8,
		Staleness: time.Hour,
	})
	l := ledger.NewMemory()
	a := auction.NewDutch()
	eng := vault.New(vault.Deps{
		Oracle:  o,
		Ledger:  l,
		Auction: a,
		Lending: []ports.LendingAdapter{
			lending.NewSimulated(domain.LendingScallop, 500),
			lending.NewSimulated(domain.LendingSuilend, 1_000),
		},
		Pegs:     domain.NewPegRegistry([2]string{"USDC", "USDT"}),
		Decimals: map[string]uint8{"DEEP": 6},
	})
	return &harness{ctx: context.Background(), eng: eng, oracle: o, ledger: l, auction: a}
}

func (h *harness) price(t *testing.T, p uint64, at time.Time) {
	t.Helper()
	require.NoError(t, h.oracle.Update(suiUSDC, p, at))
}

// callListing is a daily covered call on SUI: deposit SUI (9 dec), bids in
// USDC (6 dec), one seller leg struck at spot.
func callListing() domain.Listing {
	return domain.Listing{
		OptionType: domain.OptionCall,
		Period:     domain.PeriodDaily,
		Tokens: domain.VaultTokens{
			Deposit: domain.TokenInfo{Symbol: "SUI", Decimals: 9},
			Bid:     domain.TokenInfo{Symbol: "USDC", Decimals: 6},
			Base:    domain.TokenInfo{Symbol: "SUI", Decimals: 9},
			Quote:   domain.TokenInfo{Symbol: "USDC", Decimals: 6},
		},
		Settings: domain.Settings{
			OracleID:        suiUSDC,
			DepositLotSize:  1,
			BidLotSize:      1,
			Capacity:        1_000_000,
			Leverage:        domain.LeverageUnit,
			AuctionDuration: time.Hour,
			RecoupDelay:     30 * time.Minute,
		},
		Config: domain.VaultConfig{
			Legs:            []domain.Leg{{StrikeBp: 10_000, Weight: 10_000, Side: domain.SideSeller}},
			StrikeIncrement: 1,
			Auction:         domain.AuctionParams{DecaySpeed: 1, InitialPrice: 2_000_000, FinalPrice: 1_000_000},
		},
		Activation: t0,
	}
}

// putListing is a daily cash-secured put: deposit USDC, payoff in USDC.
func putListing() domain.Listing {
	l := callListing()
	l.OptionType = domain.OptionPut
	l.Tokens.Deposit = domain.TokenInfo{Symbol: "USDC", Decimals: 6}
	return l
}

// listed lists l and deposits amount for alice.
func (h *harness) listed(t *testing.T, l domain.Listing, amount uint64) *domain.Vault {
	t.Helper()
	v, err := h.eng.NewVault(h.ctx, l)
	require.NoError(t, err)
	if amount > 0 {
		_, err = h.eng.Deposit(h.ctx, v.Index, "alice", amount)
		require.NoError(t, err)
	}
	return v
}

// active lists a call vault with a full deposit and activates it at spot 1,000,000.
func (h *harness) active(t *testing.T) *domain.Vault {
	t.Helper()
	v := h.listed(t, callListing(), 1_000_000)
	h.price(t, 1_000_000, t0)
	v, err := h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	return v
}

// --- listing ---

func TestNewVault_ChecksOraclePair(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Tokens.Base.Symbol = "ETH"
	_, err := h.eng.NewVault(h.ctx, l)
	assert.ErrorIs(t, err, domain.ErrTokenMismatch)

	l = callListing()
	l.Settings.OracleID = "missing"
	_, err = h.eng.NewVault(h.ctx, l)
	assert.ErrorIs(t, err, domain.ErrUnknownOracle)
}

func TestNewVault_IndexesAreSequential(t *testing.T) {
	h := newHarness(t)
	a := h.listed(t, callListing(), 0)
	b := h.listed(t, putListing(), 0)
	assert.Equal(t, uint64(0), a.Index)
	assert.Equal(t, uint64(1), b.Index)
	assert.Len(t, h.eng.Vaults(), 2)
}

func TestDeposit_Limits(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.DepositLotSize = 100
	l.Settings.MinDepositSize = 200
	l.Settings.UserDepositCap = 500
	l.Settings.DepositFeeBp = 1_000
	v := h.listed(t, l, 0)

	_, err := h.eng.Deposit(h.ctx, v.Index, "alice", 150)
	assert.ErrorIs(t, err, domain.ErrLotSizeViolation)
	_, err = h.eng.Deposit(h.ctx, v.Index, "alice", 100)
	assert.ErrorIs(t, err, domain.ErrMinSizeViolation)

	net, err := h.eng.Deposit(h.ctx, v.Index, "alice", 400)
	require.NoError(t, err)
	assert.Equal(t, uint64(360), net)
	assert.Equal(t, uint64(40), h.eng.Treasury().Fee("SUI"))

	_, err = h.eng.Deposit(h.ctx, v.Index, "alice", 200)
	assert.ErrorIs(t, err, domain.ErrMaxSizeViolation)
}

func TestDecommission_OnlyBetweenRounds(t *testing.T) {
	h := newHarness(t)
	v := h.active(t)
	_, err := h.eng.Decommission(h.ctx, v.Index)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	w := h.listed(t, putListing(), 500_000)
	out, err := h.eng.Decommission(h.ctx, w.Index)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), out.Warmup)

	_, err = h.eng.Vault(w.Index)
	assert.ErrorIs(t, err, domain.ErrVaultNotFound)
}

// --- suspend ---

func TestSuspend_FreezesMutations(t *testing.T) {
	h := newHarness(t)
	v := h.listed(t, callListing(), 1_000_000)
	h.price(t, 1_000_000, t0)

	h.eng.Suspend()
	_, err := h.eng.Activate(h.ctx, v.Index, t0)
	require.ErrorIs(t, err, domain.ErrSuspended)
	assert.True(t, domain.IsSequencing(err))

	h.eng.Resume()
	_, err = h.eng.Activate(h.ctx, v.Index, t0)
	assert.NoError(t, err)
}
