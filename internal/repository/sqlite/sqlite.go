// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without CGo and
// cross-compiles like any other Go program.
//
// TIME STORAGE:
// Every timestamp column is an INTEGER holding UTC unix milliseconds. Range
// predicates (the reminder window, the dashboard filters) then compare plain
// integers instead of relying on how the driver formats DATETIME text.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the block, profile and
// reminder repositories.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/quiet-hours.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
//
// ONE CONNECTION:
// Each connection to ":memory:" gets its own private database, so the pool is
// capped at a single connection. SQLite serializes writers anyway.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id       TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	// user_id is not a foreign key. Profiles can be provisioned
	// out of band, and the dispatch job skips blocks whose owner has none.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS study_blocks (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			start_time       INTEGER NOT NULL,
			end_time         INTEGER NOT NULL,
			reminder_sent_at INTEGER,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL,
			CHECK (end_time > start_time)
		);
		CREATE INDEX IF NOT EXISTS idx_study_blocks_user_start ON study_blocks(user_id, start_time);
	`)
	if err != nil {
		return fmt.Errorf("creating study_blocks table: %w", err)
	}

	// Added after the first release; older databases lack the column.
	if err := db.addColumnIfNotExists("study_blocks", "remind_before_minutes",
		"INTEGER NOT NULL DEFAULT 10"); err != nil {
		return fmt.Errorf("adding remind_before_minutes to study_blocks: %w", err)
	}

	// Partial index: the dispatch job only ever scans pending reminders.
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_study_blocks_pending_start
			ON study_blocks(start_time) WHERE reminder_sent_at IS NULL;
	`)
	if err != nil {
		return fmt.Errorf("creating pending reminder index: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
