package vault_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/adapters/ledger"
	"github.com/alejandrodnm/dovault/internal/adapters/oracle"
	"github.com/alejandrodnm/dovault/internal/application/vault"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot captures everything a failed call must leave untouched.
type snapshot struct {
	vault     *domain.Vault
	totals    domain.LedgerBalances
	incentive uint64
	fee       uint64
}

func (h *harness) snapshot(t *testing.T, index uint64, token string) snapshot {
	t.Helper()
	v, err := h.eng.Vault(index)
	require.NoError(t, err)
	totals, err := h.ledger.Balances(h.ctx, index, "")
	require.NoError(t, err)
	return snapshot{
		vault:     v,
		totals:    totals,
		incentive: h.eng.Treasury().Incentive(token),
		fee:       h.eng.Treasury().Fee(token),
	}
}

func TestDeliverAuction_FailedFillKeepsAuctionOpen(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.IncentiveToken = "USDC"
	l.Settings.BidFeeBp = 100
	v := h.listed(t, l, 1_000_000)
	_, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 1_000_000)
	require.NoError(t, err)

	h.price(t, 1_000_000, t0)
	_, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	_, err = h.eng.NewAuction(h.ctx, v.Index, t0)
	require.NoError(t, err)
	_, err = h.auction.Bid(h.ctx, v.Index, "bob", 600_000, t0.Add(10*time.Minute))
	require.NoError(t, err)
	_, err = h.auction.Bid(h.ctx, v.Index, "carol", 400_000, t0.Add(20*time.Minute))
	require.NoError(t, err)

	// the incentive needs a SUI price to be paid in USDC, and it is stale
	end := t0.Add(2 * time.Hour)
	before := h.snapshot(t, v.Index, "USDC")
	_, err = h.eng.DeliverAuction(h.ctx, v.Index, false, end)
	require.ErrorIs(t, err, domain.ErrStaleOracle)

	assert.True(t, h.auction.IsOpen(h.ctx, v.Index))
	assert.Equal(t, before, h.snapshot(t, v.Index, "USDC"))
	bob, err := h.ledger.Balances(h.ctx, v.Index, "bob")
	require.NoError(t, err)
	assert.Zero(t, bob.Receipts)

	h.price(t, 1_000_000, end)
	records, err := h.eng.DeliverAuction(h.ctx, v.Index, false, end)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, h.auction.IsOpen(h.ctx, v.Index))

	got, err := h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecoup, got.Status)
	assert.Equal(t, uint64(1_000_000), got.Delivered)
	assert.Equal(t, before.fee+records[0].BidderFee+records[1].BidderFee, h.eng.Treasury().Fee("USDC"))
}

func TestRecoup_AcceptsAuctionWithoutBook(t *testing.T) {
	h := newHarness(t)
	v := h.active(t)
	v, err := h.eng.NewAuction(h.ctx, v.Index, t0)
	require.NoError(t, err)

	// the book is gone but no delivery was committed
	_, err = h.auction.Close(h.ctx, v.Index, v.AuctionEnd)
	require.NoError(t, err)
	assert.False(t, h.eng.AuctionOpen(h.ctx, v.Index))

	_, err = h.eng.Recoup(h.ctx, v.Index, v.AuctionEnd)
	assert.ErrorIs(t, err, domain.ErrRecoupNotReady)

	v, err = h.eng.Recoup(h.ctx, v.Index, v.RecoupAt)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecoup, v.Status)
	assert.Equal(t, uint64(1_000_000), v.RecoupRefund)

	alice, err := h.ledger.Balances(h.ctx, v.Index, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), alice.Warmup)
}

func TestAirdrop_BadShareChangesNothing(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.BidLotSize = 10
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.IncentiveToken = "SUI"
	v := h.listed(t, l, 1_000_000)
	_, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 1_000)
	require.NoError(t, err)
	h.price(t, 1_000_000, t0)
	_, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)

	before := h.snapshot(t, v.Index, "SUI")
	_, err = h.eng.Airdrop(h.ctx, v.Index, []domain.AirdropShare{
		{Recipient: "carol", Size: 10},
		{Recipient: "dave", Size: 5},
		{Recipient: "erin", Size: 5},
	}, t0)
	require.ErrorIs(t, err, domain.ErrLotSizeViolation)

	assert.Equal(t, before, h.snapshot(t, v.Index, "SUI"))
	carol, err := h.ledger.Balances(h.ctx, v.Index, "carol")
	require.NoError(t, err)
	assert.Zero(t, carol.Receipts)
}

// flakyLedger fails every Delivery while down is set.
type flakyLedger struct {
	*ledger.Memory
	down bool
}

func (f *flakyLedger) Delivery(ctx context.Context, vault uint64, ts ...domain.DeliveryTransfer) error {
	if f.down {
		return errors.New("ledger unavailable")
	}
	return f.Memory.Delivery(ctx, vault, ts...)
}

func TestDeliverOTC_LedgerFailureReturnsDraws(t *testing.T) {
	h := newHarness(t)
	fl := &flakyLedger{Memory: h.ledger}
	h.eng = vault.New(vault.Deps{
		Oracle:  h.oracle,
		Ledger:  fl,
		Auction: h.auction,
		Pegs:    domain.NewPegRegistry(),
	})
	l := callListing()
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.IncentiveToken = "SUI"
	l.Settings.BidFeeBp = 500
	v := h.listed(t, l, 1_000_000)
	_, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 1_000)
	require.NoError(t, err)
	h.price(t, 1_000_000, t0)
	_, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)

	fl.down = true
	_, err = h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 500_000}, t0)
	require.Error(t, err)
	assert.Equal(t, uint64(1_000), h.eng.Treasury().Incentive("SUI"))
	assert.Zero(t, h.eng.Treasury().Fee("USDC"))

	got, err := h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Zero(t, got.Delivered)
	assert.Equal(t, uint64(1_000), got.IncentiveBudget)

	fl.down = false
	r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 500_000}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000)-r.IncentiveValue, h.eng.Treasury().Incentive("SUI"))
	assert.Equal(t, r.BidderFee, h.eng.Treasury().Fee("USDC"))
}

func TestActivate_StaleQuoteOracleChangesNothing(t *testing.T) {
	h := newHarness(t)
	const quote = "SUI/USDC quote"
	h.oracle.Register(oracle.Feed{
		ID:        quote,
		Tokens:    domain.OracleTokens{BaseSymbol: "SUI", QuoteSymbol: "USDC"},
		Decimal:   8,
		Staleness: time.Hour,
	})

	// a put collateralized in SUI values its collateral in USDC
	l := putListing()
	l.Tokens.Deposit = domain.TokenInfo{Symbol: "SUI", Decimals: 9}
	l.Settings.QuoteOracleID = quote
	v := h.listed(t, l, 1_000_000)
	h.price(t, 1_000_000, t0)

	before := h.snapshot(t, v.Index, "USDC")
	_, err := h.eng.Activate(h.ctx, v.Index, t0)
	require.ErrorIs(t, err, domain.ErrStaleOracle)
	assert.Equal(t, before, h.snapshot(t, v.Index, "USDC"))

	alice, err := h.ledger.Balances(h.ctx, v.Index, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), alice.Warmup)
	assert.Zero(t, alice.Active)

	require.NoError(t, h.oracle.Update(quote, 200_000_000, t0))
	v, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), v.Collateral)

	alice, err = h.ledger.Balances(h.ctx, v.Index, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), alice.Active)
	assert.Zero(t, alice.Warmup)
}
