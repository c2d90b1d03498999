package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/dovault/internal/adapters/auction"
	"github.com/alejandrodnm/dovault/internal/adapters/authority"
	"github.com/alejandrodnm/dovault/internal/adapters/ledger"
	"github.com/alejandrodnm/dovault/internal/adapters/oracle"
	"github.com/alejandrodnm/dovault/internal/adapters/storage"
	"github.com/alejandrodnm/dovault/internal/application/gateway"
	"github.com/alejandrodnm/dovault/internal/application/vault"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (c *captureSink) Emit(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func (c *captureSink) actions() []domain.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Action, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	ctx    context.Context
	gw     *gateway.Gateway
	oracle *oracle.Fixture
	db     *storage.SQLiteStorage
	sink   *captureSink
}

func newFixture(t *testing.T, sinks ...*captureSink) *fixture {
	t.Helper()
	o := oracle.NewFixture(oracle.Feed{
		ID:        "SUI/USDC",
		Tokens:    domain.OracleTokens{BaseSymbol: "SUI", QuoteSymbol: "USDC"},
		Decimal:   8,
		Staleness: time.Hour,
	})
	eng := vault.New(vault.Deps{
		Oracle:  o,
		Ledger:  ledger.NewMemory(),
		Auction: auction.NewDutch(),
		Pegs:    domain.NewPegRegistry(),
	})
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	auth := authority.NewAllowlist(map[string][]domain.Action{
		"keeper":   {authority.Any},
		"operator": {domain.ActionUpdateConfig},
	})
	sink := &captureSink{}
	all := []*captureSink{sink}
	all = append(all, sinks...)
	var es []ports.EventSink
	for _, s := range all {
		es = append(es, s)
	}
	return &fixture{
		ctx:    context.Background(),
		gw:     gateway.New(eng, auth, db, es...),
		oracle: o,
		db:     db,
		sink:   sink,
	}
}

func listing() domain.Listing {
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
			OracleID:        "SUI/USDC",
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

func TestGateway_RoundIsRecorded(t *testing.T) {
	f := newFixture(t)

	v, err := f.gw.NewVault(f.ctx, "keeper", listing(), t0)
	require.NoError(t, err)
	_, err = f.gw.Deposit(f.ctx, "alice", v.Index, 1_000_000, t0)
	require.NoError(t, err)

	require.NoError(t, f.oracle.Update("SUI/USDC", 1_000_000, t0))
	v, err = f.gw.Activate(f.ctx, "keeper", v.Index, t0)
	require.NoError(t, err)
	rec, err := f.gw.DeliverOTC(f.ctx, "keeper", v.Index, domain.Deal{Buyer: "desk", Price: 1_000_000, Size: v.MaxSize}, t0)
	require.NoError(t, err)

	expiry := t0.Add(24 * time.Hour)
	require.NoError(t, f.oracle.Update("SUI/USDC", 1_000_000, expiry))
	res, err := f.gw.Settle(f.ctx, "keeper", v.Index, expiry)
	require.NoError(t, err)
	require.NotNil(t, res.Settled)

	assert.Equal(t, []domain.Action{
		domain.ActionNewVault,
		domain.ActionDeposit,
		domain.ActionActivate,
		domain.ActionDeliverOTC,
		domain.ActionSettle,
	}, f.sink.actions())

	ids := make(map[string]bool)
	for _, e := range f.sink.events {
		assert.NotEmpty(t, e.ID)
		ids[e.ID] = true
	}
	assert.Len(t, ids, 5)

	settle := f.sink.events[4]
	assert.Equal(t, "1.00000000", settle.Attrs["share_price"])
	assert.Equal(t, "0", settle.Attrs["round"])
	assert.Equal(t, "alice", f.sink.events[1].Caller)

	deliveries, err := f.db.GetDeliveries(f.ctx, v.Index, 0)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, rec.ID, deliveries[0].ID)
	assert.Equal(t, domain.ChannelOTC, deliveries[0].Channel)

	settlements, err := f.db.GetSettlements(f.ctx, v.Index)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	assert.Equal(t, *res.Settled, settlements[0])
}

func TestGateway_RecordsSkippedRounds(t *testing.T) {
	f := newFixture(t)
	v, err := f.gw.NewVault(f.ctx, "keeper", listing(), t0)
	require.NoError(t, err)

	res, err := f.gw.Settle(f.ctx, "keeper", v.Index, t0.Add(50*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, res.Settled)
	require.Len(t, res.Skipped, 2)

	settlements, err := f.db.GetSettlements(f.ctx, v.Index)
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	assert.True(t, settlements[0].Skipped)

	last := f.sink.events[len(f.sink.events)-1]
	assert.Equal(t, domain.ActionSettle, last.Action)
	assert.Equal(t, "0,1", last.Attrs["skipped"])
}

func TestGateway_RejectsUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.gw.NewVault(f.ctx, "mallory", listing(), t0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	v, err := f.gw.NewVault(f.ctx, "keeper", listing(), t0)
	require.NoError(t, err)

	_, err = f.gw.Activate(f.ctx, "operator", v.Index, t0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.ErrorIs(t, f.gw.Suspend(f.ctx, "operator", t0), domain.ErrUnauthorized)

	assert.Equal(t, []domain.Action{domain.ActionNewVault}, f.sink.actions())
}

func TestGateway_UpdateConfigValidatesBps(t *testing.T) {
	f := newFixture(t)
	v, err := f.gw.NewVault(f.ctx, "keeper", listing(), t0)
	require.NoError(t, err)

	bad := uint64(10_001)
	_, err = f.gw.UpdateConfig(f.ctx, "operator", v.Index, domain.ConfigUpdate{DepositFeeBp: &bad}, t0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	fee := uint64(100)
	s, err := f.gw.UpdateConfig(f.ctx, "operator", v.Index, domain.ConfigUpdate{DepositFeeBp: &fee}, t0)
	require.NoError(t, err)
	assert.Equal(t, fee, s.DepositFeeBp)

	assert.Equal(t, []domain.Action{domain.ActionNewVault, domain.ActionUpdateConfig}, f.sink.actions())
}

func TestGateway_FailingSinkDoesNotFailCall(t *testing.T) {
	broken := &captureSink{err: errors.New("disk full")}
	f := newFixture(t, broken)

	_, err := f.gw.NewVault(f.ctx, "keeper", listing(), t0)
	require.NoError(t, err)
	require.NoError(t, f.gw.Suspend(f.ctx, "keeper", t0))
	assert.True(t, f.gw.Engine().Suspended())

	_, err = f.gw.Activate(f.ctx, "keeper", 0, t0)
	assert.ErrorIs(t, err, domain.ErrSuspended)

	require.NoError(t, f.gw.Resume(f.ctx, "keeper", t0))
	assert.Equal(t, f.sink.actions(), broken.actions())
	assert.Equal(t, []domain.Action{domain.ActionNewVault, domain.ActionSuspend, domain.ActionResume}, broken.actions())
}

func TestGateway_TopUpFixedIncentiveChecksPairing(t *testing.T) {
	f := newFixture(t)
	l := listing()
	l.Settings.IncentiveToken = "DEEP"
	v, err := f.gw.NewVault(f.ctx, "keeper", l, t0)
	require.NoError(t, err)

	_, err = f.gw.TopUpFixedIncentive(f.ctx, "keeper", v.Index, "WAL", 1_000, t0)
	assert.ErrorIs(t, err, domain.ErrTokenMismatch)
	_, err = f.gw.TopUpFixedIncentive(f.ctx, "keeper", 9, "SUI", 1_000, t0)
	assert.ErrorIs(t, err, domain.ErrVaultNotFound)

	b, err := f.gw.TopUpFixedIncentive(f.ctx, "keeper", v.Index, "SUI", 1_000, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.BalanceAttachment{Token: "SUI", Amount: 1_000}, b)

	assert.Equal(t, []domain.Action{domain.ActionNewVault, domain.ActionTopUpFixed}, f.sink.actions())
}
