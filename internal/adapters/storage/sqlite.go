package storage

// sqlite.go: settlement archive, delivery log and event journal.
//
// Tables:
//   settlements: one row per closed round (vault, round) including skipped ones
//   deliveries: one row per filled tranche, keyed by record ID
//   events: one row per successful gateway call
//
// Amounts are stored as decimal TEXT: they are uint64 and SQLite integers
// are signed. Writes are idempotent so a replayed keeper tick never
// duplicates a row. Events older than retentionEvents are pruned on open.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
    vault           INTEGER  NOT NULL,
    round           INTEGER  NOT NULL,
    oracle_price    TEXT     NOT NULL,
    oracle_decimal  INTEGER  NOT NULL,
    settle_balance  TEXT     NOT NULL,
    settled_balance TEXT     NOT NULL,
    share_price     TEXT     NOT NULL,
    payoff          INTEGER  NOT NULL,
    delivered_size  TEXT     NOT NULL,
    skipped         INTEGER  NOT NULL DEFAULT 0,
    settled_at      DATETIME NOT NULL,
    PRIMARY KEY (vault, round)
);

CREATE TABLE IF NOT EXISTS deliveries (
    id              TEXT PRIMARY KEY,
    seq             INTEGER  NOT NULL,
    vault           INTEGER  NOT NULL,
    round           INTEGER  NOT NULL,
    channel         TEXT     NOT NULL,
    buyer           TEXT     NOT NULL,
    price           TEXT     NOT NULL,
    size            TEXT     NOT NULL,
    bidder_value    TEXT     NOT NULL,
    bidder_fee      TEXT     NOT NULL,
    incentive_token TEXT     NOT NULL DEFAULT '',
    incentive_value TEXT     NOT NULL DEFAULT '0',
    incentive_fee   TEXT     NOT NULL DEFAULT '0',
    fixed_token     TEXT     NOT NULL DEFAULT '',
    fixed_value     TEXT     NOT NULL DEFAULT '0',
    fixed_fee       TEXT     NOT NULL DEFAULT '0',
    refund          TEXT     NOT NULL DEFAULT '0',
    delivered_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id        TEXT PRIMARY KEY,
    action    TEXT     NOT NULL,
    vault     INTEGER  NOT NULL,
    round     INTEGER  NOT NULL,
    caller    TEXT     NOT NULL,
    attrs     TEXT     NOT NULL DEFAULT '{}',
    at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_round ON deliveries(vault, round, seq);
CREATE INDEX IF NOT EXISTS idx_events_vault     ON events(vault, at DESC);
CREATE INDEX IF NOT EXISTS idx_events_at        ON events(at);
`

const retentionEvents = 90 * 24 * time.Hour

// SQLiteStorage implements ports.Recorder and ports.EventSink using SQLite
// (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema and prunes old events.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveSettlement implements ports.Recorder. Re-saving a round overwrites it.
func (s *SQLiteStorage) SaveSettlement(ctx context.Context, in domain.SettlementInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements
			(vault, round, oracle_price, oracle_decimal, settle_balance, settled_balance,
			 share_price, payoff, delivered_size, skipped, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vault, round) DO UPDATE SET
			oracle_price    = excluded.oracle_price,
			oracle_decimal  = excluded.oracle_decimal,
			settle_balance  = excluded.settle_balance,
			settled_balance = excluded.settled_balance,
			share_price     = excluded.share_price,
			payoff          = excluded.payoff,
			delivered_size  = excluded.delivered_size,
			skipped         = excluded.skipped,
			settled_at      = excluded.settled_at
	`,
		int64(in.Vault), int64(in.Round),
		u(in.OraclePrice), int(in.OracleDecimal),
		u(in.SettleBalance), u(in.SettledBalance), u(in.SharePrice),
		in.Payoff, u(in.DeliveredSize), boolInt(in.Skipped),
		in.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSettlement: vault %d round %d: %w", in.Vault, in.Round, err)
	}
	return nil
}

// SaveDelivery implements ports.Recorder. A record already stored is left as is.
func (s *SQLiteStorage) SaveDelivery(ctx context.Context, d domain.DeliveryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries
			(id, seq, vault, round, channel, buyer, price, size, bidder_value, bidder_fee,
			 incentive_token, incentive_value, incentive_fee,
			 fixed_token, fixed_value, fixed_fee, refund, delivered_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM deliveries), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID, int64(d.Vault), int64(d.Round), d.Channel.String(), d.Buyer,
		u(d.Price), u(d.Size), u(d.BidderValue), u(d.BidderFee),
		d.IncentiveToken, u(d.IncentiveValue), u(d.IncentiveFee),
		d.FixedIncentiveToken, u(d.FixedIncentiveValue), u(d.FixedIncentiveFee),
		u(d.Refund), d.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDelivery: %s: %w", d.ID, err)
	}
	return nil
}

// GetSettlements implements ports.Recorder.
func (s *SQLiteStorage) GetSettlements(ctx context.Context, vault uint64) ([]domain.SettlementInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vault, round, oracle_price, oracle_decimal, settle_balance, settled_balance,
		       share_price, payoff, delivered_size, skipped, settled_at
		FROM settlements
		WHERE vault = ?
		ORDER BY round ASC
	`, int64(vault))
	if err != nil {
		return nil, fmt.Errorf("storage.GetSettlements: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementInfo
	for rows.Next() {
		var (
			in                                   domain.SettlementInfo
			v, round                             int64
			price, settle, settled, share, deliv string
			dec, skipped                         int
			at                                   time.Time
		)
		if err := rows.Scan(&v, &round, &price, &dec, &settle, &settled, &share, &in.Payoff, &deliv, &skipped, &at); err != nil {
			return nil, fmt.Errorf("storage.GetSettlements: scan row: %w", err)
		}
		in.Vault, in.Round = uint64(v), uint64(round)
		in.OracleDecimal = uint8(dec)
		in.Skipped = skipped == 1
		in.Timestamp = at.UTC()
		if err := parseAll(
			field{price, &in.OraclePrice},
			field{settle, &in.SettleBalance},
			field{settled, &in.SettledBalance},
			field{share, &in.SharePrice},
			field{deliv, &in.DeliveredSize},
		); err != nil {
			return nil, fmt.Errorf("storage.GetSettlements: vault %d round %d: %w", v, round, err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetDeliveries implements ports.Recorder.
func (s *SQLiteStorage) GetDeliveries(ctx context.Context, vault, round uint64) ([]domain.DeliveryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vault, round, channel, buyer, price, size, bidder_value, bidder_fee,
		       incentive_token, incentive_value, incentive_fee,
		       fixed_token, fixed_value, fixed_fee, refund, delivered_at
		FROM deliveries
		WHERE vault = ? AND round = ?
		ORDER BY seq ASC
	`, int64(vault), int64(round))
	if err != nil {
		return nil, fmt.Errorf("storage.GetDeliveries: query: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryRecord
	for rows.Next() {
		var (
			d                                       domain.DeliveryRecord
			v, r                                    int64
			channel                                 string
			price, size, value, fee                 string
			incValue, incFee, fixValue, fixFee, ref string
			at                                      time.Time
		)
		if err := rows.Scan(&d.ID, &v, &r, &channel, &d.Buyer, &price, &size, &value, &fee,
			&d.IncentiveToken, &incValue, &incFee,
			&d.FixedIncentiveToken, &fixValue, &fixFee, &ref, &at); err != nil {
			return nil, fmt.Errorf("storage.GetDeliveries: scan row: %w", err)
		}
		d.Vault, d.Round = uint64(v), uint64(r)
		d.Timestamp = at.UTC()
		ch, err := domain.ParseChannel(channel)
		if err != nil {
			return nil, fmt.Errorf("storage.GetDeliveries: %s: %w", d.ID, err)
		}
		d.Channel = ch
		if err := parseAll(
			field{price, &d.Price},
			field{size, &d.Size},
			field{value, &d.BidderValue},
			field{fee, &d.BidderFee},
			field{incValue, &d.IncentiveValue},
			field{incFee, &d.IncentiveFee},
			field{fixValue, &d.FixedIncentiveValue},
			field{fixFee, &d.FixedIncentiveFee},
			field{ref, &d.Refund},
		); err != nil {
			return nil, fmt.Errorf("storage.GetDeliveries: %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Emit implements ports.EventSink.
func (s *SQLiteStorage) Emit(ctx context.Context, e domain.Event) error {
	attrs, err := json.Marshal(e.Attrs)
	if err != nil {
		return fmt.Errorf("storage.Emit: encode attrs: %w", err)
	}
	if e.Attrs == nil {
		attrs = []byte("{}")
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, action, vault, round, caller, attrs, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, string(e.Action), int64(e.Vault), int64(e.Round), e.Caller, string(attrs), e.At.UTC()); err != nil {
		return fmt.Errorf("storage.Emit: %s %s: %w", e.Action, e.ID, err)
	}
	return nil
}

// GetEvents returns the latest limit events of vault, newest first.
func (s *SQLiteStorage) GetEvents(ctx context.Context, vault uint64, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, vault, round, caller, attrs, at
		FROM events
		WHERE vault = ?
		ORDER BY at DESC, rowid DESC
		LIMIT ?
	`, int64(vault), limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetEvents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e        domain.Event
			action   string
			v, round int64
			attrs    string
			at       time.Time
		)
		if err := rows.Scan(&e.ID, &action, &v, &round, &e.Caller, &attrs, &at); err != nil {
			return nil, fmt.Errorf("storage.GetEvents: scan row: %w", err)
		}
		e.Action = domain.Action(action)
		e.Vault, e.Round = uint64(v), uint64(round)
		e.At = at.UTC()
		if err := json.Unmarshal([]byte(attrs), &e.Attrs); err != nil {
			return nil, fmt.Errorf("storage.GetEvents: %s attrs: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers ---

// pruneOld drops events past retention. Settlements and deliveries are the
// vault's history and are never pruned.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionEvents)
	s.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff)
}

func u(v uint64) string { return strconv.FormatUint(v, 10) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type field struct {
	raw string
	dst *uint64
}

func parseAll(fields ...field) error {
	for _, f := range fields {
		v, err := strconv.ParseUint(f.raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	return nil
}
