package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
-- Singleton capital snapshot, always exactly one row
CREATE TABLE IF NOT EXISTS bankroll_state (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    current_units      REAL    NOT NULL,
    initial_units      REAL    NOT NULL,
    peak_units         REAL    NOT NULL,
    max_drawdown_pct   REAL    NOT NULL DEFAULT 0,
    kelly_fraction     REAL    NOT NULL DEFAULT 0.25,
    status             TEXT    NOT NULL DEFAULT 'ACTIVE',
    consecutive_wins   INTEGER NOT NULL DEFAULT 0,
    consecutive_losses INTEGER NOT NULL DEFAULT 0,
    last_updated       TEXT    NOT NULL
);

-- Append-only capital ledger
CREATE TABLE IF NOT EXISTS transactions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp      TEXT NOT NULL,
    type           TEXT NOT NULL,
    amount         REAL NOT NULL,
    balance_after  REAL NOT NULL,
    expected_value REAL NOT NULL DEFAULT 0,
    note           TEXT
);

-- One row per evaluated candidate, shadow and live share the schema
-- but never the rows (mode discriminator)
CREATE TABLE IF NOT EXISTS bets (
    id           TEXT PRIMARY KEY,
    game_id      TEXT NOT NULL,
    mode         TEXT NOT NULL,
    decision     TEXT NOT NULL,
    probability  REAL NOT NULL,
    odds         REAL NOT NULL,
    ev           REAL NOT NULL,
    stake_units  REAL NOT NULL DEFAULT 0,
    kelly_used   REAL NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'NONE',
    pnl          REAL NOT NULL DEFAULT 0,
    reason       TEXT,
    created_at   TEXT NOT NULL,
    resolved_at  TEXT
);

-- Append-only behavior log
CREATE TABLE IF NOT EXISTS audit_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp  TEXT NOT NULL,
    event_type TEXT NOT NULL,
    game_id    TEXT,
    details    TEXT,
    old_state  TEXT,
    new_state  TEXT
);

-- Daily summaries, recomputed and overwritten by the aggregator
CREATE TABLE IF NOT EXISTS performance_snapshots (
    date                  TEXT PRIMARY KEY,
    total_bets            INTEGER NOT NULL DEFAULT 0,
    win_rate              REAL    NOT NULL DEFAULT 0,
    roi_percent           REAL    NOT NULL DEFAULT 0,
    profit_units          REAL    NOT NULL DEFAULT 0,
    bankroll_growth       REAL    NOT NULL DEFAULT 1,
    expected_profit_units REAL    NOT NULL DEFAULT 0,
    closing_balance       REAL    NOT NULL DEFAULT 0,
    drawdown              REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_tx_time           ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_bets_mode_status  ON bets(mode, status);
CREATE INDEX IF NOT EXISTS idx_bets_mode_created ON bets(mode, created_at);
CREATE INDEX IF NOT EXISTS idx_bets_game         ON bets(mode, game_id);
CREATE INDEX IF NOT EXISTS idx_audit_time        ON audit_log(timestamp);
`

// Store bundles the four repositories over one SQLite handle. Each
// repository implements its persistence port; they live in ledger.go,
// bets.go, audit.go and snapshots.go.
type Store struct {
	db *sql.DB

	Ledger    *LedgerRepo
	Bets      *BetRepo
	Audit     *AuditRepo
	Snapshots *SnapshotRepo
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.New: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	// WAL keeps reporting reads cheap while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.New: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.New: apply schema: %w", err)
	}

	return &Store{
		db:        db,
		Ledger:    &LedgerRepo{db: db},
		Bets:      &BetRepo{db: db},
		Audit:     &AuditRepo{db: db},
		Snapshots: &SnapshotRepo{db: db},
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- time encoding helpers ---

// Timestamps are stored as UTC RFC 3339 strings with a fixed nine-digit
// fractional part, dates as YYYY-MM-DD. The fixed width keeps the string
// order identical to the time order, which every range query relies on;
// RFC3339Nano trims trailing zeros and would sort "00:00:00.5Z" below the
// whole-second "00:00:00Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func encodeDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func decodeDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}
