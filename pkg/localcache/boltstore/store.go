// Package boltstore provides a BoltDB-backed localcache.Store.
package boltstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/posrental/canteen_sdk_go/pkg/localcache"
)

const collectionsBucket = "collections"

// Store keeps every collection payload as one value of a single bucket.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) a BoltDB file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Load implements localcache.Store.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, localcache.ErrClosed
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionsBucket))
		if bucket == nil {
			return fmt.Errorf("collections bucket is missing")
		}
		if payload := bucket.Get([]byte(key)); payload != nil {
			// bbolt values are only valid for the life of the transaction.
			data = append([]byte{}, payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save implements localcache.Store.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return localcache.ErrClosed
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("collection key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collectionsBucket))
		if bucket == nil {
			return fmt.Errorf("collections bucket is missing")
		}
		return bucket.Put([]byte(key), data)
	})
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(collectionsBucket)); err != nil {
			return fmt.Errorf("create collections bucket: %w", err)
		}
		return nil
	})
}

var _ localcache.Store = (*Store)(nil)
