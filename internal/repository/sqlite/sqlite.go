// Package sqlite implements the repository interfaces on SQLite.
//
// WHY SQLITE?
// The whole backend is request-scoped CRUD against three small tables.
// An embedded database keeps deployment to a single binary plus a file,
// and ":memory:" gives the tests a real SQL engine for free.
//
// WHY modernc.org/sqlite?
// It is a pure-Go translation of SQLite — no CGo, no C toolchain,
// cross-compiles everywhere Go does.
//
// ERROR CLASSIFICATION:
// Expected outcomes map to apperror sentinels — sql.ErrNoRows becomes
// ErrNotFound, UNIQUE violations become ErrConflict. Any other driver
// error means the storage layer itself is failing (closed handle, bad
// file, locked database) and is wrapped in apperror.Unavailable so the
// transport layer reports 503 rather than a generic 500.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite".
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB handle and hands out the per-table repositories.
// The server owns one DB for its whole lifetime and closes it on
// shutdown; individual requests borrow the connection for the duration
// of their queries and release it unconditionally.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, not a pool. SQLite serializes writes anyway, so
	// extra connections only buy SQLITE_BUSY errors — and with ":memory:"
	// every pooled connection would get its own separate database.
	conn.SetMaxOpenConns(1)

	// sql.Open only creates the pool; Ping forces a real connection so a
	// bad path or permission problem surfaces now, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed concurrently with a write — important for a
	// web server where requests interleave freely.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// SQLite ships with foreign keys OFF. login_events and sentiments
	// both reference users(id), so turn enforcement on.
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

// Close closes the connection pool. Always pair New with a deferred
// Close so the WAL is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the pool can still reach the database. Health checks
// call this per request.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user repository backed by this pool.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// LoginEvents returns the login-event repository backed by this pool.
func (db *DB) LoginEvents() *LoginEventDB {
	return &LoginEventDB{conn: db.conn}
}

// Sentiments returns the sentiment repository backed by this pool.
func (db *DB) Sentiments() *SentimentDB {
	return &SentimentDB{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent, so it is safe to run on every startup.
//
// Schema notes:
//   - users.email is UNIQUE: the constraint, not application locking,
//     arbitrates concurrent registrations.
//   - users.last_login is nullable — absent until the first login.
//   - login_events and sentiments are append-only; no UPDATE or DELETE
//     statement in this package touches them.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'USER',
			registered_at DATETIME NOT NULL,
			last_login    DATETIME
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS login_events (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			login_time DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_login_events_user_time
			ON login_events(user_id, login_time);
	`)
	if err != nil {
		return fmt.Errorf("creating login_events table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sentiments (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL REFERENCES users(id),
			text      TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sentiments_user_time
			ON sentiments(user_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating sentiments table: %w", err)
	}

	return nil
}
