package localcache

import (
	"context"
	"errors"
)

var (
	// ErrCorrupt marks a cached collection whose payload cannot be decoded.
	ErrCorrupt = errors.New("localcache: corrupt collection")
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("localcache: store closed")
)

// Store persists raw collection payloads under string keys.
type Store interface {
	// Load returns the payload stored under key, or nil when the key has
	// never been written.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the payload stored under key.
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}
