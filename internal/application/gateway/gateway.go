package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/dovault/internal/application/vault"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
	"github.com/google/uuid"
)

// Gateway is the authorized entry point to the vault engine. Every call is
// checked against the Authority, run on the engine and, on success, reported
// as a domain.Event to each sink. Deliveries and settlements are archived to
// the Recorder when one is set.
//
// The engine commits before the gateway records: a failing sink or recorder
// is logged and never undoes a committed call.
type Gateway struct {
	engine   *vault.Engine
	auth     ports.Authority
	recorder ports.Recorder
	sinks    []ports.EventSink
}

// New creates a Gateway. recorder may be nil.
func New(engine *vault.Engine, auth ports.Authority, recorder ports.Recorder, sinks ...ports.EventSink) *Gateway {
	return &Gateway{engine: engine, auth: auth, recorder: recorder, sinks: sinks}
}

// Engine exposes the wrapped engine for read-only queries.
func (g *Gateway) Engine() *vault.Engine { return g.engine }

// --- listing ---

func (g *Gateway) NewVault(ctx context.Context, caller string, l domain.Listing, now time.Time) (*domain.Vault, error) {
	if err := g.authorize(ctx, caller, domain.ActionNewVault); err != nil {
		return nil, err
	}
	v, err := g.engine.NewVault(ctx, l)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, caller, domain.ActionNewVault, v, now, map[string]string{
		"option_type": v.OptionType.String(),
		"period":      v.Period.String(),
		"deposit":     v.Tokens.Deposit.Symbol,
		"bid":         v.Tokens.Bid.Symbol,
	})
	return v, nil
}

func (g *Gateway) Decommission(ctx context.Context, caller string, index uint64, now time.Time) (domain.LedgerBalances, error) {
	if err := g.authorize(ctx, caller, domain.ActionDecommission); err != nil {
		return domain.LedgerBalances{}, err
	}
	v, err := g.engine.Vault(index)
	if err != nil {
		return domain.LedgerBalances{}, err
	}
	out, err := g.engine.Decommission(ctx, index)
	if err != nil {
		return domain.LedgerBalances{}, err
	}
	g.emit(ctx, caller, domain.ActionDecommission, v, now, map[string]string{
		"warmup": u(out.Warmup),
	})
	return out, nil
}

// Deposit is open to any caller; the caller is the depositor.
func (g *Gateway) Deposit(ctx context.Context, caller string, index, amount uint64, now time.Time) (uint64, error) {
	net, err := g.engine.Deposit(ctx, index, caller, amount)
	if err != nil {
		return 0, err
	}
	g.emitIndex(ctx, caller, domain.ActionDeposit, index, now, map[string]string{
		"amount": u(amount),
		"net":    u(net),
	})
	return net, nil
}

// --- lifecycle ---

func (g *Gateway) Activate(ctx context.Context, caller string, index uint64, now time.Time) (*domain.Vault, error) {
	if err := g.authorize(ctx, caller, domain.ActionActivate); err != nil {
		return nil, err
	}
	v, err := g.engine.Activate(ctx, index, now)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, caller, domain.ActionActivate, v, now, map[string]string{
		"status":           v.Status.String(),
		"activation_price": u(v.ActivationPrice),
		"max_size":         u(v.MaxSize),
		"expiration":       v.Expiration.UTC().Format(time.RFC3339),
	})
	return v, nil
}

func (g *Gateway) NewAuction(ctx context.Context, caller string, index uint64, now time.Time) (*domain.Vault, error) {
	if err := g.authorize(ctx, caller, domain.ActionNewAuction); err != nil {
		return nil, err
	}
	v, err := g.engine.NewAuction(ctx, index, now)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, caller, domain.ActionNewAuction, v, now, map[string]string{
		"start": v.AuctionStart.UTC().Format(time.RFC3339),
		"end":   v.AuctionEnd.UTC().Format(time.RFC3339),
		"size":  u(v.MaxSize - v.Delivered),
	})
	return v, nil
}

func (g *Gateway) DeliverAuction(ctx context.Context, caller string, index uint64, early bool, now time.Time) ([]domain.DeliveryRecord, error) {
	if err := g.authorize(ctx, caller, domain.ActionDeliverAuction); err != nil {
		return nil, err
	}
	recs, err := g.engine.DeliverAuction(ctx, index, early, now)
	if err != nil {
		return nil, err
	}
	g.recordDeliveries(ctx, recs)
	g.emitDelivery(ctx, caller, domain.ActionDeliverAuction, index, now, recs, map[string]string{
		"early": strconv.FormatBool(early),
	})
	return recs, nil
}

func (g *Gateway) DeliverOTC(ctx context.Context, caller string, index uint64, deal domain.Deal, now time.Time) (domain.DeliveryRecord, error) {
	if err := g.authorize(ctx, caller, domain.ActionDeliverOTC); err != nil {
		return domain.DeliveryRecord{}, err
	}
	rec, err := g.engine.DeliverOTC(ctx, index, deal, now)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	recs := []domain.DeliveryRecord{rec}
	g.recordDeliveries(ctx, recs)
	g.emitDelivery(ctx, caller, domain.ActionDeliverOTC, index, now, recs, map[string]string{
		"buyer": deal.Buyer,
	})
	return rec, nil
}

func (g *Gateway) DeliverSafetyNet(ctx context.Context, caller string, index, price, size uint64, now time.Time) (domain.DeliveryRecord, error) {
	if err := g.authorize(ctx, caller, domain.ActionSafetyNet); err != nil {
		return domain.DeliveryRecord{}, err
	}
	rec, err := g.engine.DeliverSafetyNet(ctx, index, price, size, now)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	recs := []domain.DeliveryRecord{rec}
	g.recordDeliveries(ctx, recs)
	g.emitDelivery(ctx, caller, domain.ActionSafetyNet, index, now, recs, nil)
	return rec, nil
}

func (g *Gateway) Airdrop(ctx context.Context, caller string, index uint64, shares []domain.AirdropShare, now time.Time) ([]domain.DeliveryRecord, error) {
	if err := g.authorize(ctx, caller, domain.ActionAirdrop); err != nil {
		return nil, err
	}
	recs, err := g.engine.Airdrop(ctx, index, shares, now)
	if err != nil {
		return nil, err
	}
	g.recordDeliveries(ctx, recs)
	g.emitDelivery(ctx, caller, domain.ActionAirdrop, index, now, recs, map[string]string{
		"recipients": strconv.Itoa(len(shares)),
	})
	return recs, nil
}

func (g *Gateway) Recoup(ctx context.Context, caller string, index uint64, now time.Time) (*domain.Vault, error) {
	if err := g.authorize(ctx, caller, domain.ActionRecoup); err != nil {
		return nil, err
	}
	v, err := g.engine.Recoup(ctx, index, now)
	if err != nil {
		return nil, err
	}
	g.emit(ctx, caller, domain.ActionRecoup, v, now, map[string]string{
		"delivered": u(v.Delivered),
		"refund":    u(v.RecoupRefund),
	})
	return v, nil
}

func (g *Gateway) Settle(ctx context.Context, caller string, index uint64, now time.Time) (domain.SettleResult, error) {
	if err := g.authorize(ctx, caller, domain.ActionSettle); err != nil {
		return domain.SettleResult{}, err
	}
	res, err := g.engine.Settle(ctx, index, now)
	if err != nil {
		return domain.SettleResult{}, err
	}
	if res.Settled == nil && len(res.Skipped) == 0 {
		return res, nil
	}

	attrs := make(map[string]string, 5)
	if s := res.Settled; s != nil {
		g.recordSettlement(ctx, *s)
		attrs["round"] = u(s.Round)
		attrs["oracle_price"] = u(s.OraclePrice)
		attrs["share_price"] = domain.FormatSharePrice(s.SharePrice)
		attrs["payoff"] = strconv.FormatInt(s.Payoff, 10)
	}
	skipped := make([]string, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		g.recordSettlement(ctx, s)
		skipped = append(skipped, u(s.Round))
	}
	attrs["skipped"] = strings.Join(skipped, ",")
	g.emitIndex(ctx, caller, domain.ActionSettle, index, now, attrs)
	return res, nil
}

// --- operator ---

func (g *Gateway) UpdateConfig(ctx context.Context, caller string, index uint64, upd domain.ConfigUpdate, now time.Time) (domain.Settings, error) {
	if err := g.authorize(ctx, caller, domain.ActionUpdateConfig); err != nil {
		return domain.Settings{}, err
	}
	if err := upd.ValidateBps(); err != nil {
		return domain.Settings{}, fmt.Errorf("gateway.UpdateConfig: %w", err)
	}
	s, err := g.engine.UpdateConfig(ctx, index, upd)
	if err != nil {
		return domain.Settings{}, err
	}
	g.emitIndex(ctx, caller, domain.ActionUpdateConfig, index, now, map[string]string{
		"oracle_id": s.OracleID,
		"capacity":  u(s.Capacity),
		"leverage":  u(s.Leverage),
	})
	return s, nil
}

func (g *Gateway) UpdateWarmupConfig(ctx context.Context, caller string, index uint64, cfg domain.VaultConfig, now time.Time) (domain.VaultConfig, error) {
	if err := g.authorize(ctx, caller, domain.ActionUpdateWarmup); err != nil {
		return domain.VaultConfig{}, err
	}
	out, err := g.engine.UpdateWarmupConfig(ctx, index, cfg)
	if err != nil {
		return domain.VaultConfig{}, err
	}
	g.emitIndex(ctx, caller, domain.ActionUpdateWarmup, index, now, map[string]string{
		"legs": strconv.Itoa(len(out.Legs)),
	})
	return out, nil
}

func (g *Gateway) TopUpProtocolIncentive(ctx context.Context, caller string, index, amount uint64, now time.Time) (uint64, error) {
	if err := g.authorize(ctx, caller, domain.ActionTopUpIncentive); err != nil {
		return 0, err
	}
	budget, err := g.engine.TopUpProtocolIncentive(ctx, index, amount)
	if err != nil {
		return 0, err
	}
	g.emitIndex(ctx, caller, domain.ActionTopUpIncentive, index, now, map[string]string{
		"amount": u(amount),
		"budget": u(budget),
	})
	return budget, nil
}

func (g *Gateway) TopUpFixedIncentive(ctx context.Context, caller string, index uint64, token string, amount uint64, now time.Time) (domain.BalanceAttachment, error) {
	if err := g.authorize(ctx, caller, domain.ActionTopUpFixed); err != nil {
		return domain.BalanceAttachment{}, err
	}
	if err := g.checkPairing(index, token); err != nil {
		return domain.BalanceAttachment{}, err
	}
	bal, err := g.engine.TopUpFixedIncentive(ctx, index, token, amount)
	if err != nil {
		return domain.BalanceAttachment{}, err
	}
	g.emitIndex(ctx, caller, domain.ActionTopUpFixed, index, now, map[string]string{
		"token":  token,
		"amount": u(amount),
	})
	return bal, nil
}

func (g *Gateway) WithdrawFixedIncentive(ctx context.Context, caller string, index, amount uint64, now time.Time) (domain.TokenAmount, error) {
	if err := g.authorize(ctx, caller, domain.ActionWithdrawFixed); err != nil {
		return domain.TokenAmount{}, err
	}
	out, err := g.engine.WithdrawFixedIncentive(ctx, index, amount)
	if err != nil {
		return domain.TokenAmount{}, err
	}
	g.emitIndex(ctx, caller, domain.ActionWithdrawFixed, index, now, map[string]string{
		"token":  out.Token,
		"amount": u(out.Amount),
	})
	return out, nil
}

func (g *Gateway) DepositLending(ctx context.Context, caller string, index uint64, p domain.LendingProtocol, now time.Time) (domain.LendingState, error) {
	if err := g.authorize(ctx, caller, domain.ActionDepositLending); err != nil {
		return nil, err
	}
	st, err := g.engine.DepositLending(ctx, index, p, now)
	if err != nil {
		return nil, err
	}
	g.emitIndex(ctx, caller, domain.ActionDepositLending, index, now, map[string]string{
		"protocol":  p.String(),
		"principal": u(domain.LendingPrincipal(st)),
	})
	return st, nil
}

func (g *Gateway) WithdrawLending(ctx context.Context, caller string, index uint64, now time.Time) (domain.LendingWithdrawal, error) {
	if err := g.authorize(ctx, caller, domain.ActionWithdrawLending); err != nil {
		return domain.LendingWithdrawal{}, err
	}
	w, err := g.engine.WithdrawLending(ctx, index, now)
	if err != nil {
		return domain.LendingWithdrawal{}, err
	}
	g.emitIndex(ctx, caller, domain.ActionWithdrawLending, index, now, map[string]string{
		"principal": u(w.Principal),
		"reward":    u(w.Reward),
	})
	return w, nil
}

// Suspend freezes every vault mutation. It is not tied to a vault.
func (g *Gateway) Suspend(ctx context.Context, caller string, now time.Time) error {
	if err := g.authorize(ctx, caller, domain.ActionSuspend); err != nil {
		return err
	}
	g.engine.Suspend()
	g.publish(ctx, domain.Event{Action: domain.ActionSuspend, Caller: caller, At: now})
	return nil
}

func (g *Gateway) Resume(ctx context.Context, caller string, now time.Time) error {
	if err := g.authorize(ctx, caller, domain.ActionResume); err != nil {
		return err
	}
	g.engine.Resume()
	g.publish(ctx, domain.Event{Action: domain.ActionResume, Caller: caller, At: now})
	return nil
}

// --- helpers ---

func (g *Gateway) authorize(ctx context.Context, caller string, action domain.Action) error {
	if g.auth == nil {
		return nil
	}
	if err := g.auth.Authorize(ctx, caller, action); err != nil {
		slog.Debug("gateway: rejected", "caller", caller, "action", action, "err", err)
		return err
	}
	return nil
}

// checkPairing rejects a token the vault at index neither trades nor pays
// incentives in.
func (g *Gateway) checkPairing(index uint64, token string) error {
	v, err := g.engine.Vault(index)
	if err != nil {
		return err
	}
	if !v.Pairs(token) {
		slog.Debug("gateway: token not paired", "vault", index, "token", token)
		return &domain.VaultError{Index: index, Op: "pairing", Err: fmt.Errorf("%w: %s", domain.ErrTokenMismatch, token)}
	}
	return nil
}

func (g *Gateway) emit(ctx context.Context, caller string, action domain.Action, v *domain.Vault, now time.Time, attrs map[string]string) {
	g.publish(ctx, domain.Event{
		Action: action,
		Vault:  v.Index,
		Round:  v.Round,
		Caller: caller,
		At:     now,
		Attrs:  attrs,
	})
}

// emitIndex reads the vault back for its round. A vault decommissioned in
// between is reported with round 0.
func (g *Gateway) emitIndex(ctx context.Context, caller string, action domain.Action, index uint64, now time.Time, attrs map[string]string) {
	e := domain.Event{Action: action, Vault: index, Caller: caller, At: now, Attrs: attrs}
	if v, err := g.engine.Vault(index); err == nil {
		e.Round = v.Round
	}
	g.publish(ctx, e)
}

func (g *Gateway) emitDelivery(ctx context.Context, caller string, action domain.Action, index uint64, now time.Time, recs []domain.DeliveryRecord, attrs map[string]string) {
	if attrs == nil {
		attrs = make(map[string]string, 3)
	}
	var size, premium uint64
	for _, r := range recs {
		size += r.Size
		premium += r.Premium()
	}
	attrs["fills"] = strconv.Itoa(len(recs))
	attrs["size"] = u(size)
	attrs["premium"] = u(premium)
	g.emitIndex(ctx, caller, action, index, now, attrs)
}

func (g *Gateway) publish(ctx context.Context, e domain.Event) {
	e.ID = uuid.NewString()
	slog.Info("gateway: "+string(e.Action), "vault", e.Vault, "round", e.Round, "caller", e.Caller)
	for _, s := range g.sinks {
		if err := s.Emit(ctx, e); err != nil {
			slog.Warn("gateway: event sink failed", "action", e.Action, "id", e.ID, "err", err)
		}
	}
}

func (g *Gateway) recordDeliveries(ctx context.Context, recs []domain.DeliveryRecord) {
	if g.recorder == nil {
		return
	}
	for _, r := range recs {
		if err := g.recorder.SaveDelivery(ctx, r); err != nil {
			slog.Error("gateway: record delivery", "vault", r.Vault, "round", r.Round, "id", r.ID, "err", err)
		}
	}
}

func (g *Gateway) recordSettlement(ctx context.Context, s domain.SettlementInfo) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.SaveSettlement(ctx, s); err != nil {
		slog.Error("gateway: record settlement", "vault", s.Vault, "round", s.Round, "err", err)
	}
}

func u(v uint64) string { return strconv.FormatUint(v, 10) }
