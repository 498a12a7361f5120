// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage implements the persisted schema: inodes, blocks and
// directory tree-nodes, in a transactional SQL store. It exposes only
// primitive row operations — insert, conditional update, conditional
// delete, filtered range scan, atomic arithmetic update — on which the
// inode and open-file layers compose transactions.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the database handle used by every component above it. Most
// row operations are exposed in two forms: a *sql.DB-receiver form that
// runs standalone, and a *sql.Tx-receiver form (suffixed Tx) so callers
// can compose several row operations into one transaction. Some exist in
// one form only (CreateRoot and SelfTreeNode standalone; RenameTreeNodeTx
// and RewriteDotDotTx transactional).
type Store struct {
	db     *sql.DB
	driver string
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting every query
// method be written once and reused by both the standalone and the
// Tx-suffixed entry points.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ execer = (*sql.DB)(nil)
	_ execer = (*sql.Tx)(nil)
)

// Open opens the database identified by dsn using the named driver
// ("sqlite3" or "postgres") and applies the embedded schema.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite cannot sustain concurrent writers; serialize all
		// transactions through a single connection rather than relying on
		// file-level locking to arbitrate between them.
		db.SetMaxOpenConns(1)

		// SQLite ignores the schema's REFERENCES ... ON DELETE CASCADE
		// clauses unless foreign keys are switched on for the connection.
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	schema := schemaSQLite
	if driver == "postgres" {
		schema = schemaPostgres
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// DB returns the underlying handle, for callers (the fs dispatcher) that
// need to begin their own transactions spanning several Store calls.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginTx starts a transaction against the store.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
