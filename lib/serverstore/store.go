// Copyright 2026 The HARM Authors
// SPDX-License-Identifier: Apache-2.0

// Package serverstore is the daemon's registry of dedicated server
// definitions, kept in SQLite.
//
// Servers are listed in id order with keyset pagination: a page's
// NextPage is the id of its last entry, and the next request returns
// the servers whose id sorts after it.
package serverstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/harm-foundation/harm/lib/schema"
	"github.com/harm-foundation/harm/lib/sqlitepool"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("server not found")

// Page size bounds for List.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS servers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		config     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// Store is the server registry. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the registry at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:   path,
		Schema: schemaStatements,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// List returns up to limit servers whose id sorts after pageToken. A
// limit of zero selects DefaultPageSize; larger than MaxPageSize is
// clamped.
func (s *Store) List(ctx context.Context, limit int, pageToken string) (schema.ServerListPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	page := schema.ServerListPage{Data: []schema.ServerSummary{}}
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, name, config FROM servers WHERE id > ? ORDER BY id LIMIT ?`,
			&sqlitex.ExecOptions{
				// One extra row tells us whether another page exists.
				Args: []any{pageToken, limit + 1},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					server, err := scanServer(stmt)
					if err != nil {
						return err
					}
					page.Data = append(page.Data, server)
					return nil
				},
			})
	})
	if err != nil {
		return schema.ServerListPage{}, fmt.Errorf("listing servers: %w", err)
	}

	if len(page.Data) > limit {
		page.Data = page.Data[:limit]
		page.NextPage = page.Data[limit-1].ID
	}
	return page, nil
}

// Get returns one server.
func (s *Store) Get(ctx context.Context, id string) (schema.ServerSummary, error) {
	var server schema.ServerSummary
	found := false
	err := s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, name, config FROM servers WHERE id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					var err error
					server, err = scanServer(stmt)
					found = err == nil
					return err
				},
			})
	})
	if err != nil {
		return schema.ServerSummary{}, fmt.Errorf("getting server %s: %w", id, err)
	}
	if !found {
		return schema.ServerSummary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return server, nil
}

// Create registers a server named name with a fresh id and the
// default configuration.
func (s *Store) Create(ctx context.Context, name string) (schema.ServerSummary, error) {
	server := schema.ServerSummary{
		ID:     uuid.NewString(),
		Name:   name,
		Config: DefaultConfig(name),
	}
	encoded, err := json.Marshal(server.Config)
	if err != nil {
		return schema.ServerSummary{}, fmt.Errorf("encoding server config: %w", err)
	}

	err = s.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO servers (id, name, config, created_at) VALUES (?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{server.ID, server.Name, string(encoded), s.now().UTC().Format(time.RFC3339)},
			})
	})
	if err != nil {
		return schema.ServerSummary{}, fmt.Errorf("creating server: %w", err)
	}
	s.logger.Info("server created", "id", server.ID, "name", name)
	return server, nil
}

// DefaultConfig is the configuration of a newly created server: the
// dedicated server's stock network ports, with the game name set to
// name.
func DefaultConfig(name string) map[string]schema.ConfigValue {
	return map[string]schema.ConfigValue{
		"bindAddress": schema.TextValue("0.0.0.0"),
		"publicPort":  schema.TextValue(strconv.Itoa(2001)),
		"a2s": schema.MapValue(map[string]string{
			"address": "0.0.0.0",
			"port":    "17777",
		}),
		"rcon": schema.MapValue(map[string]string{
			"address":    "0.0.0.0",
			"port":       "19999",
			"maxClients": "16",
		}),
		"game": schema.MapValue(map[string]string{
			"name":       name,
			"scenarioId": "{59AD59368755F41A}Missions/21_GM_Eden.conf",
			"maxPlayers": "64",
			"visible":    "true",
		}),
	}
}

func scanServer(stmt *sqlite.Stmt) (schema.ServerSummary, error) {
	server := schema.ServerSummary{
		ID:   stmt.ColumnText(0),
		Name: stmt.ColumnText(1),
	}
	if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &server.Config); err != nil {
		return schema.ServerSummary{}, fmt.Errorf("decoding config of server %s: %w", server.ID, err)
	}
	return server, nil
}
