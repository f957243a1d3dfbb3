package localcache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/internal/metrics"
)

// Option configures a Collection.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger used to report corrupt payloads.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the collectors used to count corrupt payloads.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Collection is the typed view of one cached collection. It holds no state
// of its own: every Load decodes the stored payload and every Replace
// rewrites it. Callers serialise read-modify-write sequences themselves.
type Collection[T any] struct {
	store    Store
	key      string
	defaults func() []T
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewCollection binds key of store. defaults, when non-nil, produces the
// records written the first time the key is read and found never written.
func NewCollection[T any](store Store, key string, defaults func() []T, opts ...Option) (*Collection[T], error) {
	if store == nil {
		return nil, fmt.Errorf("localcache: store is nil")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("localcache: collection key is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	return &Collection[T]{
		store:    store,
		key:      key,
		defaults: defaults,
		logger:   logging.OrNop(o.logger).With(zap.String("cache_key", key)),
		metrics:  o.metrics,
	}, nil
}

// Key returns the store key backing the collection.
func (c *Collection[T]) Key() string {
	return c.key
}

// Load returns the cached records. A payload that cannot be decoded is
// reported and treated as an empty collection.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	data, err := c.store.Load(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("localcache: load %s: %w", c.key, err)
	}
	if data == nil {
		return c.initialise(ctx)
	}

	items, err := decode[T](data)
	if err != nil {
		c.logger.Warn("discarding unreadable cached collection", zap.Error(err))
		c.metrics.CacheCorrupt.WithLabelValues(c.key).Inc()
		return []T{}, nil
	}
	return items, nil
}

// Replace overwrites the cached records with items.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("localcache: encode %s: %w", c.key, err)
	}
	if err := c.store.Save(ctx, c.key, data); err != nil {
		return fmt.Errorf("localcache: save %s: %w", c.key, err)
	}
	return nil
}

func (c *Collection[T]) initialise(ctx context.Context) ([]T, error) {
	if c.defaults == nil {
		return []T{}, nil
	}
	items := c.defaults()
	if err := c.Replace(ctx, items); err != nil {
		return nil, err
	}
	c.logger.Debug("seeded cached collection with defaults", zap.Int("records", len(items)))
	return items, nil
}

func decode[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
