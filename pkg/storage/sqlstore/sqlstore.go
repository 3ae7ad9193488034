// Package sqlstore keeps snapshots in a key/value table of a SQL database.
// SQLite (go-sqlite3) suits a single device; PostgreSQL (lib/pq) suits a hosted deployment.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chat-to-rich/pkg/storage"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	name       string
	driverName string
	schema     string
	selectSQL  string
	upsertSQL  string
	deleteSQL  string
}

// SQLite stores snapshots in a local database file.
var SQLite = Dialect{
	name:       "sqlite",
	driverName: "sqlite3",
	schema: `CREATE TABLE IF NOT EXISTS ledger_snapshots (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	selectSQL: `SELECT value FROM ledger_snapshots WHERE key = ?`,
	upsertSQL: `INSERT INTO ledger_snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	deleteSQL: `DELETE FROM ledger_snapshots WHERE key = ?`,
}

// Postgres stores snapshots in a PostgreSQL table.
var Postgres = Dialect{
	name:       "postgres",
	driverName: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS ledger_snapshots (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	)`,
	selectSQL: `SELECT value FROM ledger_snapshots WHERE key = $1`,
	upsertSQL: `INSERT INTO ledger_snapshots (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	deleteSQL: `DELETE FROM ledger_snapshots WHERE key = $1`,
}

// Name returns the dialect name.
func (d Dialect) Name() string {
	return d.name
}

// SQLBackend implements storage.Backend over database/sql.
type SQLBackend struct {
	db      *sql.DB
	name    string
	dialect Dialect
}

// Config holds SQL backend configuration.
type Config struct {
	// Name defaults to the dialect name
	Name string

	Dialect Dialect

	// DSN is a file path for SQLite or a connection string for PostgreSQL
	DSN string

	// ConnectTimeout bounds the initial ping (default 5s)
	ConnectTimeout time.Duration
}

// NewSQLiteBackend opens a SQLite file at path, creating parent directories.
func NewSQLiteBackend(name, path string) (*SQLBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", storage.ErrInvalidValue)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create database directory: %w", err)
		}
	}

	return New(Config{
		Name:    name,
		Dialect: SQLite,
		DSN:     fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path),
	})
}

// NewPostgresBackend connects to PostgreSQL with dsn.
func NewPostgresBackend(name, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", storage.ErrInvalidValue)
	}
	return New(Config{Name: name, Dialect: Postgres, DSN: dsn})
}

// New opens the database, pings it and creates the snapshot table.
func New(config Config) (*SQLBackend, error) {
	if config.Dialect.driverName == "" {
		return nil, fmt.Errorf("%w: sql dialect is required", storage.ErrInvalidValue)
	}
	if config.Name == "" {
		config.Name = config.Dialect.name
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}

	db, err := sql.Open(config.Dialect.driverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open connection: %w", config.Dialect.name, err)
	}

	if config.Dialect.driverName == SQLite.driverName {
		// one writer at a time keeps SQLite from returning SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to ping: %w", config.Dialect.name, err)
	}

	if _, err := db.ExecContext(ctx, config.Dialect.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to init tables: %w", config.Dialect.name, err)
	}

	return &SQLBackend{
		db:      db,
		name:    config.Name,
		dialect: config.Dialect,
	}, nil
}

// Get returns the payload stored under key.
func (s *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, s.dialect.selectSQL, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", s.dialect.name, err)
	}

	return value, nil
}

// Set upserts the payload under key.
func (s *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return storage.ErrInvalidValue
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSQL, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("%s set: %w", s.dialect.name, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.deleteSQL, key); err != nil {
		return fmt.Errorf("%s delete: %w", s.dialect.name, err)
	}
	return nil
}

// Name returns the backend name.
func (s *SQLBackend) Name() string {
	return s.name
}

// Ping checks the database connection.
func (s *SQLBackend) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping: %w", s.dialect.name, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *SQLBackend) Close() error {
	return s.db.Close()
}
