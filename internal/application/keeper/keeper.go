package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/dovault/internal/application/gateway"
	"github.com/alejandrodnm/dovault/internal/domain"
)

// Config holds configuration for the keeper.
type Config struct {
	// Caller is the identity the keeper presents to the gateway.
	Caller string
	// Lending, when set, parks idle collateral of sold rounds with that
	// protocol until the next transition needs it back.
	Lending domain.LendingProtocol
	// DryRun plans transitions without invoking them.
	DryRun bool
	// Workers bounds how many vaults are stepped at once; 0 uses NumCPU.
	Workers int
}

// Outcome is what one tick did to one vault.
type Outcome struct {
	Vault   uint64
	Round   uint64
	Status  domain.Status
	Actions []domain.Action
	Err     error
}

// Keeper drives the time-based transitions of every listed vault. The engine
// has no timer of its own; each RunOnce looks at the clock and invokes the
// transitions that are due.
type Keeper struct {
	gw  *gateway.Gateway
	cfg Config
}

// New creates a keeper.
func New(gw *gateway.Gateway, cfg Config) *Keeper {
	if cfg.Caller == "" {
		cfg.Caller = "keeper"
	}
	return &Keeper{gw: gw, cfg: cfg}
}

// Plan returns the actions due for v at now, in the order they must run.
func Plan(v *domain.Vault, now time.Time, lending domain.LendingProtocol) []domain.Action {
	due := func(t time.Time) bool { return !now.Before(t) }
	withdraw := func(next domain.Action) []domain.Action {
		if v.LendingBusy() {
			return []domain.Action{domain.ActionWithdrawLending, next}
		}
		return []domain.Action{next}
	}
	park := func() []domain.Action {
		if lending != 0 && v.Delivered > 0 && !v.LendingBusy() {
			return []domain.Action{domain.ActionDepositLending}
		}
		return nil
	}

	switch v.Status {
	case domain.StatusSettle:
		if due(v.Expiration) {
			return []domain.Action{domain.ActionSettle}
		}
		if due(v.Activation) {
			return []domain.Action{domain.ActionActivate}
		}
	case domain.StatusActivate:
		if due(v.RecoupAt) {
			return withdraw(domain.ActionRecoup)
		}
		if due(v.AuctionStart) {
			return []domain.Action{domain.ActionNewAuction}
		}
	case domain.StatusNewAuction:
		if due(v.AuctionEnd) {
			return []domain.Action{domain.ActionDeliverAuction}
		}
	case domain.StatusDelivery:
		if due(v.RecoupAt) {
			return withdraw(domain.ActionRecoup)
		}
		return park()
	case domain.StatusRecoup:
		if due(v.Expiration) {
			return withdraw(domain.ActionSettle)
		}
		return park()
	}
	return nil
}

// RunOnce ticks every vault once. A failing vault is reported in its
// Outcome and does not stop the others.
func (k *Keeper) RunOnce(ctx context.Context, now time.Time) []Outcome {
	out := k.stepConcurrent(ctx, k.gw.Engine().Vaults(), now, k.cfg.Workers)
	for _, o := range out {
		if o.Err != nil {
			slog.Warn("keeper: step failed", "vault", o.Vault, "round", o.Round, "status", o.Status.String(), "err", o.Err)
		} else if len(o.Actions) > 0 {
			slog.Info("keeper: step", "vault", o.Vault, "round", o.Round, "actions", o.Actions, "dry_run", k.cfg.DryRun)
		}
	}
	return out
}

// Step runs the actions due for v. Actions stop at the first failure.
func (k *Keeper) Step(ctx context.Context, v *domain.Vault, now time.Time) Outcome {
	o := Outcome{Vault: v.Index, Round: v.Round, Status: v.Status}
	plan := Plan(v, now, k.cfg.Lending)
	if v.Status == domain.StatusNewAuction && !now.Before(v.RecoupAt) && !k.gw.Engine().AuctionOpen(ctx, v.Index) {
		// the book closed but the delivery did not commit
		plan = []domain.Action{domain.ActionRecoup}
	}
	if k.cfg.DryRun {
		o.Actions = plan
		return o
	}
	for _, a := range plan {
		if err := k.invoke(ctx, v.Index, a, now); err != nil {
			o.Err = fmt.Errorf("keeper.Step: %s: %w", a, err)
			return o
		}
		o.Actions = append(o.Actions, a)
	}
	return o
}

func (k *Keeper) invoke(ctx context.Context, index uint64, a domain.Action, now time.Time) error {
	var err error
	switch a {
	case domain.ActionActivate:
		_, err = k.gw.Activate(ctx, k.cfg.Caller, index, now)
	case domain.ActionNewAuction:
		_, err = k.gw.NewAuction(ctx, k.cfg.Caller, index, now)
	case domain.ActionDeliverAuction:
		_, err = k.gw.DeliverAuction(ctx, k.cfg.Caller, index, false, now)
	case domain.ActionRecoup:
		_, err = k.gw.Recoup(ctx, k.cfg.Caller, index, now)
	case domain.ActionSettle:
		_, err = k.gw.Settle(ctx, k.cfg.Caller, index, now)
	case domain.ActionWithdrawLending:
		_, err = k.gw.WithdrawLending(ctx, k.cfg.Caller, index, now)
	case domain.ActionDepositLending:
		_, err = k.gw.DepositLending(ctx, k.cfg.Caller, index, k.cfg.Lending, now)
	default:
		err = fmt.Errorf("%w: keeper cannot run %s", domain.ErrInvalidAction, a)
	}
	return err
}
