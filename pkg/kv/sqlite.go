package kv

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var _ Store = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY NOT NULL,
	value TEXT NOT NULL
) WITHOUT ROWID;
`

// SQLiteConfig holds the parameters for opening a SQLite-backed store.
type SQLiteConfig struct {
	// Path is the database file. It is created if it does not exist.
	Path string
	// PoolSize is the number of pooled connections (default 4).
	PoolSize int
	// Logger receives open/close messages. Nil discards them.
	Logger *slog.Logger
}

// SQLite is a Store backed by a WAL-mode SQLite database.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens (or creates) the database at cfg.Path and ensures the
// schema exists on every pooled connection.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("kv: sqlite path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite %s: %w", cfg.Path, err)
	}

	logger.Info("kv sqlite opened", "path", cfg.Path, "pool_size", poolSize)

	return &SQLite{pool: pool, logger: logger, path: cfg.Path}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("kv: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("kv: create schema: %w", err)
	}

	return nil
}

// Close closes every pooled connection.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("kv: close sqlite %s: %w", s.path, err)
	}

	s.logger.Info("kv sqlite closed", "path", s.path)

	return nil
}

// Get returns the value for key and whether it was found.
func (s *SQLite) Get(key string) (string, bool, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return "", false, fmt.Errorf("kv: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		value string
		found bool
	)

	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?;", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}

	return value, found, nil
}

// Set stores value under key.
func (s *SQLite) Set(key, value string) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("kv: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value;",
		&sqlitex.ExecOptions{Args: []any{key, value}},
	)
	if err != nil {
		return fmt.Errorf("kv: set %s: %w", key, err)
	}

	return nil
}

// Delete removes keys inside one transaction.
func (s *SQLite) Delete(keys ...string) (err error) {
	if len(keys) == 0 {
		return nil
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("kv: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("kv: begin delete: %w", err)
	}
	defer endFn(&err)

	for _, k := range keys {
		if err = sqlitex.Execute(conn, "DELETE FROM kv WHERE key = ?;", &sqlitex.ExecOptions{Args: []any{k}}); err != nil {
			return fmt.Errorf("kv: delete %s: %w", k, err)
		}
	}

	return nil
}

// Keys returns the sorted keys starting with prefix.
func (s *SQLite) Keys(prefix string) ([]string, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("kv: take conn: %w", err)
	}
	defer s.pool.Put(conn)

	var keys []string

	err = sqlitex.Execute(conn, "SELECT key FROM kv WHERE instr(key, ?) = 1 ORDER BY key;", &sqlitex.ExecOptions{
		Args: []any{prefix},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			keys = append(keys, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kv: keys %q: %w", prefix, err)
	}

	return keys, nil
}
