// Package sqlite implements the repository interfaces on top of an embedded
// SQLite database file, using the pure-Go modernc.org/sqlite driver through
// database/sql.
//
// DB owns the connection pool. Each caller works through a Session, which pins
// one pooled connection for the duration of a request and hands it back on
// Close.
//
// SESSIONS, NOT A SHARED HANDLE:
// sql.DB is already a pool, so the obvious move is to hand it to every
// caller. We don't. A request acquires a Session (one *sql.Conn), does all its
// reads and writes on it, and closes it on every exit path. That keeps a
// read-then-write update on the same connection and inside one transaction.
//
// CONCURRENT WRITERS:
// SQLite allows one writer at a time. A DEFERRED transaction (the default)
// starts as a reader and upgrades to a writer on its first write; if another
// writer got there first the upgrade fails with SQLITE_BUSY straight away,
// busy_timeout or not. _txlock=immediate takes the write lock at BEGIN, where
// busy_timeout does apply, so concurrent updates queue up instead of failing.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/catchlog/internal/repository"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath and makes sure the
// catches table exists.
//
// For a file path the DSN turns on WAL, a busy timeout and foreign keys for
// every pooled connection. An in-memory database lives only as long as its
// single connection, so the pool is capped at one.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: creating schema: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Outstanding sessions must be closed first.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext verifies the database is reachable.
func (db *DB) PingContext(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// dataSourceName builds the driver DSN for dbPath.
//
// Every _pragma runs on each new pooled connection, not just the first one:
//   - busy_timeout(5000)   wait up to 5s for a lock instead of failing
//   - journal_mode(WAL)    readers don't block the writer
//   - synchronous(NORMAL)  safe with WAL, far fewer fsyncs
//   - foreign_keys(1)      off by default in SQLite
//
// _txlock=immediate makes BeginTx issue BEGIN IMMEDIATE.
func dataSourceName(dbPath string) string {
	if dbPath == MemoryPath {
		return dbPath
	}
	return fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		filepath.Clean(dbPath),
	)
}

// Acquire pins one pooled connection and wraps it in a Session.
func (db *DB) Acquire(ctx context.Context) (repository.Session, error) {
	c, err := db.conn.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: acquiring connection: %w", err)
	}
	return &Session{conn: c, queries: queries{q: c}}, nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// Timestamps are stored as unix nanoseconds so ordering by date_caught is a
// plain integer comparison.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS catches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			species     TEXT    NOT NULL,
			catch_type  TEXT    NOT NULL CHECK (catch_type IN ('hunting', 'fishing')),
			weight      REAL,
			location    TEXT    NOT NULL,
			date_caught INTEGER NOT NULL,
			equipment   TEXT    NOT NULL,
			notes       TEXT,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_catches_date_caught
			ON catches (date_caught DESC, id DESC);
		CREATE INDEX IF NOT EXISTS idx_catches_type_date
			ON catches (catch_type, date_caught DESC, id DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating catches table: %w", err)
	}
	return nil
}
