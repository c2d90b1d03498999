package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/dovault/config"
	"github.com/alejandrodnm/dovault/internal/adapters/auction"
	"github.com/alejandrodnm/dovault/internal/adapters/authority"
	"github.com/alejandrodnm/dovault/internal/adapters/ledger"
	"github.com/alejandrodnm/dovault/internal/adapters/lending"
	"github.com/alejandrodnm/dovault/internal/adapters/notify"
	"github.com/alejandrodnm/dovault/internal/adapters/oracle"
	"github.com/alejandrodnm/dovault/internal/adapters/pricefeed"
	"github.com/alejandrodnm/dovault/internal/adapters/storage"
	"github.com/alejandrodnm/dovault/internal/application/gateway"
	"github.com/alejandrodnm/dovault/internal/application/keeper"
	"github.com/alejandrodnm/dovault/internal/application/vault"
	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/alejandrodnm/dovault/internal/ports"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Simulated lending APRs in bp.
var lendingAPR = map[domain.LendingProtocol]uint64{
	domain.LendingScallop: 500,
	domain.LendingNavi:    400,
	domain.LendingSuilend: 600,
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one keeper tick and exit")
	dryRun := flag.Bool("dry-run", false, "plan transitions without running them, no storage")
	report := flag.Bool("report", false, "print recorded settlements and deliveries and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	listings, err := cfg.Listings()
	if err != nil {
		slog.Error("invalid vault listings", "err", err)
		os.Exit(1)
	}

	slog.Info("dovault starting",
		"config", *configPath,
		"schedule", cfg.Keeper.Schedule,
		"vaults", len(listings),
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole()
	for i, l := range listings {
		console.Track(uint64(i), l.Tokens)
	}

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	if *report {
		if store == nil {
			slog.Error("-report needs storage, drop -dry-run")
			os.Exit(1)
		}
		if err := runReport(ctx, store, console, len(listings)); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	now := time.Now().UTC()
	o := buildOracle(cfg, now)
	var feed ports.PriceSource
	if cfg.Feed.URL != "" {
		feed = pricefeed.NewClient(cfg.Feed.URL, pricefeed.WithRate(cfg.Feed.RatePerSec))
	}

	lenders := make([]ports.LendingAdapter, 0, len(lendingAPR))
	for p, apr := range lendingAPR {
		lenders = append(lenders, lending.NewSimulated(p, apr))
	}
	eng := vault.New(vault.Deps{
		Oracle:   o,
		Ledger:   ledger.NewMemory(),
		Auction:  auction.NewDutch(),
		Lending:  lenders,
		Pegs:     domain.NewPegRegistry(cfg.Pegs...),
		Decimals: cfg.Decimals(),
	})

	sinks := []ports.EventSink{console}
	var recorder ports.Recorder
	if store != nil {
		sinks = append(sinks, store)
		recorder = store
	}
	gw := gateway.New(eng, buildAuthority(cfg.Authority), recorder, sinks...)

	caller := cfg.Keeper.Caller
	for i, l := range listings {
		if _, err := gw.NewVault(ctx, caller, l, now); err != nil {
			slog.Error("failed to list vault", "index", i, "err", err)
			os.Exit(1)
		}
	}
	for _, inc := range cfg.Incentives {
		if _, err := gw.TopUpProtocolIncentive(ctx, caller, inc.Vault, inc.Amount, now); err != nil {
			slog.Warn("incentive top-up failed", "vault", inc.Vault, "err", err)
		}
	}

	kcfg := keeper.Config{Caller: caller, DryRun: *dryRun || cfg.Keeper.DryRun}
	if cfg.Keeper.Lending != "" {
		p, err := domain.ParseLendingProtocol(cfg.Keeper.Lending)
		if err != nil {
			slog.Error("invalid keeper lending protocol", "err", err)
			os.Exit(1)
		}
		kcfg.Lending = p
	}
	k := keeper.New(gw, kcfg)

	tick := func() {
		now := time.Now().UTC()
		if feed != nil {
			if err := o.Refresh(ctx, feed); err != nil {
				slog.Warn("price refresh incomplete", "err", err)
			}
		}
		k.RunOnce(ctx, now)
	}

	if *once {
		tick()
		if err := console.NotifyVaults(ctx, eng.Vaults()); err != nil {
			slog.Warn("notifier error", "err", err)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Keeper.Schedule, tick); err != nil {
		slog.Error("invalid keeper schedule", "err", err, "schedule", cfg.Keeper.Schedule)
		os.Exit(1)
	}
	c.Start()
	slog.Info("keeper started", "schedule", cfg.Keeper.Schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	if err := console.NotifyVaults(context.Background(), eng.Vaults()); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	slog.Info("dovault stopped cleanly")
}

func buildOracle(cfg *config.Config, now time.Time) *oracle.Fixture {
	o := oracle.NewFixture()
	for _, oc := range cfg.Oracles {
		o.Register(oracle.Feed{
			ID:        oc.ID,
			Tokens:    domain.OracleTokens{BaseSymbol: oc.Base, QuoteSymbol: oc.Quote},
			Decimal:   oc.Decimals,
			Staleness: oc.Staleness,
		})
		if oc.Price > 0 {
			if err := o.Update(oc.ID, oc.Price, now); err != nil {
				slog.Warn("initial oracle price rejected", "oracle", oc.ID, "err", err)
			}
		}
	}
	return o
}

func buildAuthority(grants map[string][]string) *authority.Allowlist {
	out := make(map[string][]domain.Action, len(grants))
	for caller, actions := range grants {
		for _, a := range actions {
			out[caller] = append(out[caller], domain.Action(a))
		}
	}
	return authority.NewAllowlist(out)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
