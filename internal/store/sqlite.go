// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides credential/audit/authenticator persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates all tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_credentials (
		agent_id              TEXT PRIMARY KEY,
		owner_id              TEXT NOT NULL,
		api_key_hash          TEXT NOT NULL,
		agent_type            TEXT NOT NULL,
		is_active             INTEGER NOT NULL DEFAULT 1,
		created_at            TIMESTAMP NOT NULL,
		last_used_at          TIMESTAMP,
		daily_spend_limit     REAL,
		monthly_spend_limit   REAL,
		per_transaction_limit REAL,
		capabilities          TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_agent_credentials_hash
		ON agent_credentials(api_key_hash) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS audit_log (
		audit_id       TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		details        TEXT NOT NULL DEFAULT '{}',
		ts             TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_transaction
		ON audit_log(transaction_id);

	CREATE TABLE IF NOT EXISTS authenticators (
		id               TEXT PRIMARY KEY,
		actor_id         TEXT NOT NULL,
		credential_id    BLOB NOT NULL,
		public_key       BLOB NOT NULL,
		attestation_type TEXT NOT NULL DEFAULT '',
		transports       TEXT NOT NULL DEFAULT '',
		sign_count       INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_authenticators_actor
		ON authenticators(actor_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
