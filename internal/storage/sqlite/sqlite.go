// Package sqlite implements the storage.Store interface on an embedded
// SQLite database.
//
// WHY SQLITE FOR A KEY-VALUE STORE?
// The application persists everything as string keys and string values —
// the Go equivalent of browser localStorage. SQLite gives us that with
// durability, a single file on disk, and zero infrastructure: no server
// to run, nothing to configure. A single `kv` table is all we need.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation
// of SQLite — it builds everywhere Go builds.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite" in its init function.
	_ "modernc.org/sqlite"

	"github.com/sakif/threadlite/internal/storage"
)

// compile-time check that *Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store is a SQLite-backed key-value store.
//
// The underlying sql.DB is a connection pool, not a single connection.
// The Store owns it: New opens it, Close releases it.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and prepares the kv table.
//
// dbPath examples:
//   - "data/threadlite.db"  → file-based, persistent
//   - ":memory:"            → in-memory, lost on close (used in tests)
func New(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// sql.Open doesn't actually connect; Ping forces an immediate
	// connection so a bad path fails here rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets reads proceed while a write is in flight. The feed
	// serves GETs concurrently with post mutations, so this matters even
	// with a single logical writer.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	s := &Store{conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return s, nil
}

// migrate creates the kv table and stamps the schema version.
// CREATE TABLE IF NOT EXISTS makes this safe to run on every startup.
func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}

	// Write the schema version only if it isn't there, so an existing
	// database keeps the version it was created with.
	_, err = s.conn.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		storage.KeySchemaVersion, storage.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}

	return nil
}

// Get returns the value for key. ok is false when the key is absent.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: getting key %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting key %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is a no-op, not an error.
func (s *Store) Remove(key string) error {
	_, err := s.conn.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite: removing key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection pool. Call it on shutdown so the
// WAL is checkpointed and the file lock released.
func (s *Store) Close() error {
	return s.conn.Close()
}
