// Package sqlitestore provides a SQLite-backed localcache.Store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/posrental/canteen_sdk_go/pkg/localcache"
)

const schema = `CREATE TABLE IF NOT EXISTS cache_collections (
  cache_key  TEXT PRIMARY KEY,
  payload    BLOB NOT NULL,
  updated_at INTEGER NOT NULL
)`

// Store persists collection payloads as rows of one table.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite cache file and creates its table.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps every write on one file handle.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Load implements localcache.Store.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, localcache.ErrClosed
	}

	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT payload FROM cache_collections WHERE cache_key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select cache payload: %w", err)
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, nil
}

// Save implements localcache.Store.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return localcache.ErrClosed
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("collection key is required")
	}
	if data == nil {
		data = []byte{}
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cache_collections (cache_key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		key, data, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert cache payload: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

var _ localcache.Store = (*Store)(nil)
