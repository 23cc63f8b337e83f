// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	// Path is the database file. The parent directory must exist.
	// ":memory:" is accepted, in which case PoolSize is forced to 1
	// since every in-memory connection is a separate database.
	Path string

	// PoolSize is the number of connections. Defaults to 4.
	PoolSize int

	// Schema is executed once at Open, in order, in one transaction.
	// Statements must be idempotent (CREATE TABLE IF NOT EXISTS).
	Schema []string

	Logger *slog.Logger
}

// Pool is a fixed-size pool of SQLite connections. Safe for
// concurrent use.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open creates the pool and applies the schema. The caller must call
// Close.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlitepool: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	if cfg.Path == ":memory:" {
		poolSize = 1
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}
	pool := &Pool{inner: inner, logger: logger, path: cfg.Path}

	if len(cfg.Schema) > 0 {
		if err := pool.With(ctx, func(conn *sqlite.Conn) (err error) {
			defer sqlitex.Save(conn)(&err)
			for _, statement := range cfg.Schema {
				if err := sqlitex.ExecuteTransient(conn, statement, nil); err != nil {
					return fmt.Errorf("applying schema: %w", err)
				}
			}
			return nil
		}); err != nil {
			inner.Close()
			return nil, fmt.Errorf("sqlitepool: %s: %w", cfg.Path, err)
		}
	}

	logger.Info("sqlite pool opened", "path", cfg.Path, "pool_size", poolSize)
	return pool, nil
}

// Take borrows a connection, blocking until one is free or ctx ends.
// The caller must Put it back.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// With takes a connection, runs fn, and puts the connection back.
func (p *Pool) With(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := p.Take(ctx)
	if err != nil {
		return err
	}
	defer p.Put(conn)
	return fn(conn)
}

// Close closes every connection, blocking until borrowed connections
// are returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close failed", "path", p.path, "error", err)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Info("sqlite pool closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}
	return nil
}
