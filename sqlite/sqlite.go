// Package sqlite provides SQLite-based storage implementations for smbintel services.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	// Readers that stream rows must finish before the next write; see
	// LedgerService.PendingForInterpretation.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// WAL gives per-record durability without blocking readers.
	// Not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS crawl_records (
			fingerprint TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			normalized_url TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			http_status INTEGER NOT NULL DEFAULT 0,
			fetched_at TEXT NOT NULL,
			term TEXT NOT NULL DEFAULT '',
			pool TEXT NOT NULL DEFAULT '' CHECK (pool IN ('', 'exploit', 'explore')),
			cycle_id TEXT NOT NULL DEFAULT '',
			raw_text TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS interpretations (
			fingerprint TEXT PRIMARY KEY REFERENCES crawl_records(fingerprint),
			interpreted_at TEXT NOT NULL,
			claims INTEGER NOT NULL DEFAULT 0,
			dropped INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL REFERENCES crawl_records(fingerprint),
			signal_type TEXT NOT NULL DEFAULT '',
			quote TEXT NOT NULL,
			person_name TEXT NOT NULL DEFAULT '',
			person_title TEXT NOT NULL DEFAULT '',
			person_company TEXT NOT NULL DEFAULT '',
			company_name TEXT NOT NULL DEFAULT '',
			problem TEXT NOT NULL DEFAULT '',
			need TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS verifications (
			id TEXT PRIMARY KEY,
			claim_id TEXT NOT NULL REFERENCES claims(id),
			quote_score REAL NOT NULL,
			quote_check TEXT NOT NULL CHECK (quote_check IN ('passed', 'partial', 'failed')),
			liveness TEXT NOT NULL CHECK (liveness IN ('live', 'redirect', 'dead', 'timeout')),
			is_duplicate INTEGER NOT NULL DEFAULT 0,
			duplicate_of TEXT NOT NULL DEFAULT '',
			enriched INTEGER NOT NULL DEFAULT 0,
			enrichment TEXT NOT NULL DEFAULT '',
			final_status TEXT NOT NULL CHECK (final_status IN ('verified', 'weak', 'rejected')),
			retryable INTEGER NOT NULL DEFAULT 0,
			verified_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS keyword_usage (
			cycle_id TEXT NOT NULL,
			term TEXT NOT NULL,
			pool TEXT NOT NULL CHECK (pool IN ('exploit', 'explore')),
			used_at TEXT NOT NULL,
			PRIMARY KEY (cycle_id, term)
		);

		CREATE TABLE IF NOT EXISTS keyword_hits (
			cycle_id TEXT NOT NULL,
			term TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (cycle_id, term)
		);

		CREATE TABLE IF NOT EXISTS enrichment_cache (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			cached_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_crawl_records_normalized_url ON crawl_records(normalized_url);
		CREATE INDEX IF NOT EXISTS idx_claims_fingerprint ON claims(fingerprint);
		CREATE INDEX IF NOT EXISTS idx_claims_identity ON claims(person_name, company_name, person_company);
		CREATE INDEX IF NOT EXISTS idx_verifications_claim_id ON verifications(claim_id);
		CREATE INDEX IF NOT EXISTS idx_verifications_status ON verifications(final_status);
	`

	_, err := db.db.Exec(schema)
	return err
}
