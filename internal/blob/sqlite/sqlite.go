// Package sqlite provides a SQLite-backed blob store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/satchelbase/satchel/pkg/model"
)

// Store persists blobs in a single SQLite table.
type Store struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS satchel_blobs (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Open opens the SQLite blob store at path, creating the table if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("blob path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure blobs table: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Read returns the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM satchel_blobs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// Write upserts the blob stored under name.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO satchel_blobs (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	return nil
}

// Delete removes the blob stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM satchel_blobs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
