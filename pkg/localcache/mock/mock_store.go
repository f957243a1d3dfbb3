// Package mock implements an in-memory localcache.Store, suitable for tests
// and for runs where nothing needs to survive the process.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/posrental/canteen_sdk_go/internal/devseed"
	"github.com/posrental/canteen_sdk_go/pkg/localcache"
)

// Mock keeps collection payloads in a map.
type Mock struct {
	mu     sync.RWMutex
	items  map[string][]byte
	writes int
	closed bool
}

// New creates an empty mock store.
func New() *Mock {
	return &Mock{items: make(map[string][]byte)}
}

// Seed loads initial payloads (typically decoded via devseed.LoadCacheSeed).
func (m *Mock) Seed(entries []devseed.CacheSeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("mock cache: seed entry missing key")
		}
		data := append([]byte(nil), e.Value...)
		if len(data) == 0 {
			data = []byte("[]")
		}
		m.items[e.Key] = data
	}
	return nil
}

// Load implements localcache.Store.
func (m *Mock) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, localcache.ErrClosed
	}

	data, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Save implements localcache.Store.
func (m *Mock) Save(ctx context.Context, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("mock cache: key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return localcache.ErrClosed
	}

	m.items[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Delete removes a key. Removing an absent key is a no-op.
func (m *Mock) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

// Keys lists the stored keys in order.
func (m *Mock) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Writes reports how many Save calls succeeded.
func (m *Mock) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close implements localcache.Store.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ localcache.Store = (*Mock)(nil)
