package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the vault runner.
type Config struct {
	Keeper     KeeperConfig        `yaml:"keeper"`
	Storage    StorageConfig       `yaml:"storage"`
	Log        LogConfig           `yaml:"log"`
	Feed       FeedConfig          `yaml:"feed"`
	Tokens     []TokenConfig       `yaml:"tokens"`
	Pegs       [][2]string         `yaml:"pegs"`
	Oracles    []OracleConfig      `yaml:"oracles"`
	Vaults     []VaultConfig       `yaml:"vaults"`
	Authority  map[string][]string `yaml:"authority"` // caller -> actions, "*" grants all
	Incentives []IncentiveConfig   `yaml:"incentives"`
}

// KeeperConfig controls the scheduled transition runner.
type KeeperConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 1m"
	Caller   string `yaml:"caller"`
	Lending  string `yaml:"lending"` // protocol for idle collateral, empty disables
	DryRun   bool   `yaml:"dry_run"`
}

// StorageConfig controls where history is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls the format, level and optional file sink of logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // rotated log file; empty logs to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// FeedConfig points the oracle at an HTTP price endpoint.
type FeedConfig struct {
	URL        string  `yaml:"url"` // empty keeps fixture prices only
	RatePerSec float64 `yaml:"rate_per_sec"`
}

// TokenConfig declares a token's decimal scale.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// OracleConfig declares one oracle feed.
type OracleConfig struct {
	ID        string        `yaml:"id"`
	Base      string        `yaml:"base"`
	Quote     string        `yaml:"quote"`
	Decimals  uint8         `yaml:"decimals"`
	Staleness time.Duration `yaml:"staleness"`
	Price     uint64        `yaml:"price"` // initial fixture price, 0 for none
}

// VaultConfig is one listing.
type VaultConfig struct {
	OptionType    string    `yaml:"option_type"`
	Period        string    `yaml:"period"`
	Deposit       string    `yaml:"deposit"`
	Bid           string    `yaml:"bid"`
	Base          string    `yaml:"base"`
	Quote         string    `yaml:"quote"`
	OracleID      string    `yaml:"oracle_id"`
	QuoteOracleID string    `yaml:"quote_oracle_id"`
	Activation    time.Time `yaml:"activation"`
	SafetyNet     bool      `yaml:"safety_net"`

	DepositLotSize uint64 `yaml:"deposit_lot_size"`
	BidLotSize     uint64 `yaml:"bid_lot_size"`
	MinDepositSize uint64 `yaml:"min_deposit_size"`
	MinBidSize     uint64 `yaml:"min_bid_size"`
	UserDepositCap uint64 `yaml:"user_deposit_cap"`
	Capacity       uint64 `yaml:"capacity"`

	DepositFeeBp         uint64 `yaml:"deposit_fee_bp"`
	BidFeeBp             uint64 `yaml:"bid_fee_bp"`
	IncentiveFeeBp       uint64 `yaml:"incentive_fee_bp"`
	DepositIncentiveBp   uint64 `yaml:"deposit_incentive_bp"`
	IncentiveToken       string `yaml:"incentive_token"`
	FixedIncentiveAmount uint64 `yaml:"fixed_incentive_amount"`

	AuctionDelay    time.Duration `yaml:"auction_delay"`
	AuctionDuration time.Duration `yaml:"auction_duration"`
	RecoupDelay     time.Duration `yaml:"recoup_delay"`
	Leverage        uint64        `yaml:"leverage"`
	RiskLevel       uint64        `yaml:"risk_level"`

	Legs            []LegConfig   `yaml:"legs"`
	StrikeIncrement uint64        `yaml:"strike_increment"`
	Auction         AuctionConfig `yaml:"auction"`
}

// LegConfig is one option leg.
type LegConfig struct {
	StrikeBp uint64 `yaml:"strike_bp"`
	Weight   uint64 `yaml:"weight"`
	Side     string `yaml:"side"`
}

// AuctionConfig holds the Dutch auction decay parameters.
type AuctionConfig struct {
	DecaySpeed   uint64 `yaml:"decay_speed"`
	InitialPrice uint64 `yaml:"initial_price"`
	FinalPrice   uint64 `yaml:"final_price"`
}

// IncentiveConfig tops up a vault's protocol incentive pool at startup.
type IncentiveConfig struct {
	Vault  uint64 `yaml:"vault"`
	Amount uint64 `yaml:"amount"`
}

// Load reads the YAML file and the .env file if present. Environment
// variables override YAML values for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Decimals returns the declared decimals of every token.
func (c *Config) Decimals() map[string]uint8 {
	out := make(map[string]uint8, len(c.Tokens))
	for _, t := range c.Tokens {
		out[t.Symbol] = t.Decimals
	}
	return out
}

// Listings converts the vaults section into engine listings.
func (c *Config) Listings() ([]domain.Listing, error) {
	decimals := c.Decimals()
	token := func(symbol string) (domain.TokenInfo, error) {
		d, ok := decimals[symbol]
		if !ok {
			return domain.TokenInfo{}, fmt.Errorf("%w: token %q not declared", domain.ErrInvalidConfig, symbol)
		}
		return domain.TokenInfo{Symbol: symbol, Decimals: d}, nil
	}

	out := make([]domain.Listing, 0, len(c.Vaults))
	for i, v := range c.Vaults {
		l, err := v.listing(token)
		if err != nil {
			return nil, fmt.Errorf("config.Listings: vault %d: %w", i, err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (v VaultConfig) listing(token func(string) (domain.TokenInfo, error)) (domain.Listing, error) {
	var l domain.Listing
	var err error
	if l.OptionType, err = domain.ParseOptionType(v.OptionType); err != nil {
		return l, err
	}
	if l.Period, err = domain.ParsePeriod(v.Period); err != nil {
		return l, err
	}
	for _, t := range []struct {
		dst    *domain.TokenInfo
		symbol string
	}{
		{&l.Tokens.Deposit, v.Deposit},
		{&l.Tokens.Bid, v.Bid},
		{&l.Tokens.Base, v.Base},
		{&l.Tokens.Quote, v.Quote},
	} {
		if *t.dst, err = token(t.symbol); err != nil {
			return l, err
		}
	}

	l.Settings = domain.Settings{
		OracleID:             v.OracleID,
		QuoteOracleID:        v.QuoteOracleID,
		DepositLotSize:       v.DepositLotSize,
		BidLotSize:           v.BidLotSize,
		MinDepositSize:       v.MinDepositSize,
		MinBidSize:           v.MinBidSize,
		UserDepositCap:       v.UserDepositCap,
		Capacity:             v.Capacity,
		DepositFeeBp:         v.DepositFeeBp,
		BidFeeBp:             v.BidFeeBp,
		IncentiveFeeBp:       v.IncentiveFeeBp,
		DepositIncentiveBp:   v.DepositIncentiveBp,
		IncentiveToken:       v.IncentiveToken,
		FixedIncentiveAmount: v.FixedIncentiveAmount,
		AuctionDelay:         v.AuctionDelay,
		AuctionDuration:      v.AuctionDuration,
		RecoupDelay:          v.RecoupDelay,
		Leverage:             v.Leverage,
		RiskLevel:            v.RiskLevel,
	}
	if l.Settings.DepositLotSize == 0 {
		l.Settings.DepositLotSize = 1
	}
	if l.Settings.BidLotSize == 0 {
		l.Settings.BidLotSize = 1
	}
	if l.Settings.Leverage == 0 {
		l.Settings.Leverage = domain.LeverageUnit
	}

	for _, lc := range v.Legs {
		side, err := domain.ParseSide(lc.Side)
		if err != nil {
			return l, err
		}
		l.Config.Legs = append(l.Config.Legs, domain.Leg{StrikeBp: lc.StrikeBp, Weight: lc.Weight, Side: side})
	}
	l.Config.StrikeIncrement = v.StrikeIncrement
	l.Config.Auction = domain.AuctionParams(v.Auction)
	l.Activation = v.Activation.UTC()
	l.SafetyNet = v.SafetyNet
	return l, nil
}

// applyEnvOverrides replaces values with environment variables when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DOVAULT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("DOVAULT_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
}

// setDefaults fills required values left empty.
func setDefaults(cfg *Config) {
	if cfg.Keeper.Schedule == "" {
		cfg.Keeper.Schedule = "@every 1m"
	}
	if cfg.Keeper.Caller == "" {
		cfg.Keeper.Caller = "keeper"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "dovault.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 30
	}
	if cfg.Feed.RatePerSec <= 0 {
		cfg.Feed.RatePerSec = 5
	}
	for i := range cfg.Oracles {
		if cfg.Oracles[i].Staleness <= 0 {
			cfg.Oracles[i].Staleness = time.Minute
		}
	}
	if len(cfg.Authority) == 0 {
		cfg.Authority = map[string][]string{cfg.Keeper.Caller: {"*"}}
	}
}
