// Package sqlite implements the series store and catalog on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/marketlens.db"
}

// Store reads and writes daily prices, catalog metadata and sweep runs.
// Safe for concurrent use; database/sql pools connections.
type Store struct {
	db   *sql.DB
	path string
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens the database with WAL mode and creates the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db, path: cfg.DBPath}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stocks (
			date       TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			close_norm REAL,
			PRIMARY KEY (symbol, date)
		);

		CREATE INDEX IF NOT EXISTS idx_stocks_symbol_upper ON stocks (UPPER(symbol), date);

		CREATE TABLE IF NOT EXISTS stock_info (
			symbol       TEXT PRIMARY KEY,
			company_name TEXT,
			category     TEXT
		);

		CREATE TABLE IF NOT EXISTS sweep_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			symbols     INTEGER NOT NULL,
			failures    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sweep_results (
			run_id     INTEGER NOT NULL REFERENCES sweep_runs(id),
			symbol     TEXT    NOT NULL,
			short_term TEXT,
			mid_term   TEXT,
			long_term  TEXT,
			confidence REAL,
			error      TEXT,
			PRIMARY KEY (run_id, symbol)
		);
	`)
	return err
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error {
	log.Printf("[sqlite] closing %s", s.path)
	return s.db.Close()
}
