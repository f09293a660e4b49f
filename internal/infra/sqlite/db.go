// Package sqlite provides SQLite-based persistent storage for PuzzlePup.
// Uses WAL mode for concurrent reads and crash-safe writes.
//
// The user row carries a version column; every state transition is a
// conditional UPDATE guarded on it. The reward ledger's UNIQUE dedupe_key is
// the second serialization point: a retried or concurrent request carrying
// the same trigger instance cannot insert a second grant.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Querier is the query surface shared by *sql.DB and *sql.Tx. Store methods
// that participate in the issuer's transaction take it as their first
// argument.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// Q returns the plain (non-transactional) query surface.
func (d *DB) Q() Querier {
	return d.db
}

// Transact runs fn inside a transaction, committing on nil and rolling back
// on error. The "state write + ledger fact + balance delta" unit of every
// reward-bearing operation goes through here so no partial reward can commit.
func (d *DB) Transact(fn func(tx *sql.Tx) error) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Player accounts with full progression state.
		// version gates optimistic-concurrency writes.
		`CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			username           TEXT NOT NULL UNIQUE,
			referred_by        TEXT NOT NULL DEFAULT '',
			created_at         INTEGER NOT NULL,
			version            INTEGER NOT NULL DEFAULT 1,
			last_checkin_day   TEXT NOT NULL DEFAULT '',
			checkin_streak     INTEGER NOT NULL DEFAULT 0,
			total_checkins     INTEGER NOT NULL DEFAULT 0,
			streak_freeze_week TEXT NOT NULL DEFAULT '',
			puppy_age          INTEGER NOT NULL DEFAULT 0,
			puppy_size         REAL NOT NULL DEFAULT 1.0,
			weekly_week        TEXT NOT NULL DEFAULT '',
			weekly_easy        INTEGER NOT NULL DEFAULT 0,
			weekly_medium      INTEGER NOT NULL DEFAULT 0,
			weekly_hard        INTEGER NOT NULL DEFAULT 0,
			weekly_claimed     BOOLEAN NOT NULL DEFAULT 0,
			last_daily_day     TEXT NOT NULL DEFAULT '',
			run_high_score     INTEGER NOT NULL DEFAULT 0,
			last_played_at     INTEGER,
			comeback_claimed   BOOLEAN NOT NULL DEFAULT 0,
			level_easy         INTEGER NOT NULL DEFAULT 0,
			level_medium       INTEGER NOT NULL DEFAULT 0,
			level_hard         INTEGER NOT NULL DEFAULT 0,
			hints              INTEGER NOT NULL DEFAULT 0,
			points             INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_referred ON users(referred_by)`,

		// Append-only reward ledger. dedupe_key uniqueness is the only
		// coordination concurrent writers need.
		`CREATE TABLE IF NOT EXISTS reward_ledger (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			source     TEXT NOT NULL,
			dedupe_key TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON reward_ledger(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_source ON reward_ledger(user_id, source, created_at)`,

		// Unlocked achievements, append-only per user.
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id        TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			unlocked_at    INTEGER NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,

		// Notification log (max N/day per user, enforced by the service).
		`CREATE TABLE IF NOT EXISTS notifications (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
