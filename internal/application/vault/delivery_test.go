package vault_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverOTC_Limits(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.BidLotSize = 1_000
	l.Settings.MinBidSize = 100_000
	l.Settings.BidFeeBp = 500
	v := h.listed(t, l, 1_000_000)
	h.price(t, 1_000_000, t0)
	v, err := h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), v.MaxSize)

	_, err = h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 150_500}, t0)
	assert.ErrorIs(t, err, domain.ErrLotSizeViolation)
	_, err = h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 50_000}, t0)
	assert.ErrorIs(t, err, domain.ErrMinSizeViolation)
	_, err = h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 2_000_000}, t0)
	assert.ErrorIs(t, err, domain.ErrMaxSizeViolation)

	r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 400_000}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), r.BidderValue)
	assert.Equal(t, uint64(20), r.BidderFee)
	assert.Equal(t, uint64(380), r.Premium())
	assert.Equal(t, uint64(20), h.eng.Treasury().Fee("USDC"))

	v, err = h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivery, v.Status)
	assert.Equal(t, uint64(400_000), v.Delivered)
	assert.Equal(t, uint64(400), v.Totals.BidderValue)

	_, err = h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 601_000}, t0)
	assert.ErrorIs(t, err, domain.ErrMaxSizeViolation)

	got, err := h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Equal(t, v.Delivered, got.Delivered, "rejected delivery leaves no trace")
}

func TestDeliverSafetyNet(t *testing.T) {
	h := newHarness(t)
	v := h.active(t)
	_, err := h.eng.DeliverSafetyNet(h.ctx, v.Index, 1_000_000, 1_000_000, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	l := callListing()
	l.SafetyNet = true
	w := h.listed(t, l, 1_000_000)
	w, err = h.eng.Activate(h.ctx, w.Index, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivery, w.Status)

	_, err = h.eng.NewAuction(h.ctx, w.Index, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	r, err := h.eng.DeliverSafetyNet(h.ctx, w.Index, 1_200_000, 1_000_000, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelSafetyNet, r.Channel)
	assert.Equal(t, "safety_net", r.Buyer)
	assert.Equal(t, uint64(1_200), r.BidderValue)

	w, err = h.eng.Vault(w.Index)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecoup, w.Status)
}

func TestAirdrop(t *testing.T) {
	h := newHarness(t)
	v := h.active(t)

	_, err := h.eng.Airdrop(h.ctx, v.Index, nil, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	_, err = h.eng.Airdrop(h.ctx, v.Index, []domain.AirdropShare{
		{Recipient: "carol", Size: 700_000},
		{Recipient: "dave", Size: 400_000},
	}, t0)
	assert.ErrorIs(t, err, domain.ErrMaxSizeViolation)

	records, err := h.eng.Airdrop(h.ctx, v.Index, []domain.AirdropShare{
		{Recipient: "carol", Size: 300_000},
		{Recipient: "dave", Size: 200_000},
	}, t0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, domain.ChannelAirdrop, r.Channel)
		assert.Zero(t, r.BidderValue)
	}

	v, err = h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivery, v.Status)
	assert.Equal(t, uint64(500_000), v.Remaining())

	carol, err := h.ledger.Balances(h.ctx, v.Index, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000), carol.Receipts)
}

func TestIncentive_GrantsNeverExceedRoundBudget(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.IncentiveToken = "SUI"
	v := h.listed(t, l, 1_000_000)

	budget, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), budget)
	pool := h.eng.Treasury().Incentive("SUI")

	h.price(t, 1_000_000, t0)
	v, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), v.RoundBudget)

	// 1e6 supply at 100%/yr daily is 2739 per round, 684 per quarter
	var granted uint64
	want := []uint64{684, 316, 0, 0}
	for i := 0; i < 4; i++ {
		r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 250_000}, t0)
		require.NoError(t, err)
		assert.Equal(t, want[i], r.IncentiveValue, "delivery %d", i)
		granted += r.IncentiveValue
	}

	v, err = h.eng.Vault(v.Index)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecoup, v.Status)
	assert.LessOrEqual(t, granted, v.RoundBudget)
	assert.Equal(t, pool-granted, h.eng.Treasury().Incentive("SUI"))
	assert.Equal(t, granted, v.Totals.IncentiveValue)
	assert.Zero(t, v.IncentiveBudget)

	alice, err := h.ledger.Balances(h.ctx, v.Index, "alice")
	require.NoError(t, err)
	assert.Contains(t, alice.Earned, domain.TokenAmount{Token: "SUI", Amount: 1_000})
}

func TestIncentive_PoolShortfallCapsGrant(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.IncentiveToken = "SUI"
	v := h.listed(t, l, 1_000_000)
	_, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 1_000)
	require.NoError(t, err)

	// another consumer drains most of the shared pool
	require.Equal(t, uint64(900), h.eng.Treasury().Draw("SUI", 900))

	h.price(t, 1_000_000, t0)
	_, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 1_000_000}, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r.IncentiveValue)
	assert.Zero(t, h.eng.Treasury().Incentive("SUI"))
}

func TestIncentive_RedenominatesThroughOracle(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.DepositIncentiveBp = 10_000
	l.Settings.Capacity = 0
	v := h.listed(t, l, 365_000_000_000) // 365 SUI
	_, err := h.eng.TopUpProtocolIncentive(h.ctx, v.Index, 10_000_000)
	require.NoError(t, err)

	h.price(t, 200_000_000, t0) // 2 USDC per SUI
	v, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: v.MaxSize}, t0)
	require.NoError(t, err)
	// 1 SUI of incentive per round is 2 USDC
	assert.Equal(t, "USDC", r.IncentiveToken)
	assert.Equal(t, uint64(2_000_000), r.IncentiveValue)
}

func TestFixedIncentive(t *testing.T) {
	h := newHarness(t)
	l := callListing()
	l.Settings.FixedIncentiveAmount = 4_000
	l.Settings.IncentiveFeeBp = 1_000
	v := h.listed(t, l, 1_000_000)

	_, err := h.eng.TopUpFixedIncentive(h.ctx, v.Index, "DEEP", 10_000)
	require.NoError(t, err)
	_, err = h.eng.TopUpFixedIncentive(h.ctx, v.Index, "USDC", 1)
	assert.ErrorIs(t, err, domain.ErrTokenMismatch)
	_, err = h.eng.TopUpFixedIncentive(h.ctx, v.Index, "WAL", 1)
	assert.ErrorIs(t, err, domain.ErrTokenMismatch)

	h.price(t, 1_000_000, t0)
	v, err = h.eng.Activate(h.ctx, v.Index, t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000), v.FixedRoundAmount)

	r, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 500_000}, t0)
	require.NoError(t, err)
	assert.Equal(t, "DEEP", r.FixedIncentiveToken)
	assert.Equal(t, uint64(2_000), r.FixedIncentiveValue)
	assert.Equal(t, uint64(200), r.FixedIncentiveFee)
	assert.Equal(t, uint64(200), h.eng.Treasury().Fee("DEEP"))

	_, err = h.eng.WithdrawFixedIncentive(h.ctx, v.Index, 1_000)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	v, err = h.eng.Vault(v.Index)
	require.NoError(t, err)
	b, ok := v.Attachments.Balance(domain.KeyFixedIncentive)
	require.True(t, ok)
	assert.Equal(t, uint64(8_000), b.Amount)
	assert.Equal(t, uint64(2_000), v.FixedAvailable)

	alice, err := h.ledger.Balances(h.ctx, v.Index, "alice")
	require.NoError(t, err)
	assert.Contains(t, alice.Earned, domain.TokenAmount{Token: "DEEP", Amount: 1_800})
}

func TestWithdrawFixedIncentive(t *testing.T) {
	h := newHarness(t)
	v := h.listed(t, callListing(), 0)
	_, err := h.eng.TopUpFixedIncentive(h.ctx, v.Index, "DEEP", 5_000)
	require.NoError(t, err)

	_, err = h.eng.WithdrawFixedIncentive(h.ctx, v.Index, 6_000)
	assert.ErrorIs(t, err, domain.ErrMaxSizeViolation)

	out, err := h.eng.WithdrawFixedIncentive(h.ctx, v.Index, 2_000)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenAmount{Token: "DEEP", Amount: 2_000}, out)

	v, err = h.eng.Vault(v.Index)
	require.NoError(t, err)
	b, _ := v.Attachments.Balance(domain.KeyFixedIncentive)
	assert.Equal(t, uint64(3_000), b.Amount)
}

func TestDeliver_RoundRecordsResetOnActivation(t *testing.T) {
	h := newHarness(t)
	v := h.active(t)
	_, err := h.eng.DeliverOTC(h.ctx, v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: 1_000_000}, t0)
	require.NoError(t, err)

	expiry := t0.Add(24 * time.Hour)
	h.price(t, 1_000_000, expiry)
	_, err = h.eng.Settle(h.ctx, v.Index, expiry)
	require.NoError(t, err)

	v, err = h.eng.Activate(h.ctx, v.Index, expiry)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Round)
	assert.Empty(t, v.Deliveries)
	assert.Zero(t, v.Delivered)
	assert.Equal(t, domain.DeliveryTotals{}, v.Totals)
}
