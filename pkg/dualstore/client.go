package dualstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/internal/metrics"
	"github.com/posrental/canteen_sdk_go/pkg/localcache"
	"github.com/posrental/canteen_sdk_go/pkg/remote"
)

// DefaultTimeout bounds each remote attempt.
const DefaultTimeout = 3 * time.Second

// Option configures a Client.
type Option func(*engine)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *engine) {
		e.logger = l
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock overrides the clock used for timestamps and local keys.
func WithClock(fn func() time.Time) Option {
	return func(e *engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// engine holds the type-independent parts of a Client.
type engine struct {
	name    string
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Client is the dual-source store of one collection.
type Client[T any, K comparable] struct {
	engine
	schema Schema[T, K]
	remote remote.Store[T, K]
	local  *localcache.Collection[T]

	// mu serialises every read-modify-write of the cached collection.
	mu sync.Mutex
}

// New builds a Client. A nil rs makes every operation run against the cache.
func New[T any, K comparable](schema Schema[T, K], rs remote.Store[T, K], local *localcache.Collection[T], opts ...Option) (*Client[T, K], error) {
	if strings.TrimSpace(schema.Name) == "" {
		return nil, fmt.Errorf("dualstore: schema name is required")
	}
	if schema.Key == nil || schema.WithKey == nil || schema.Stamp == nil || schema.NewKey == nil {
		return nil, fmt.Errorf("dualstore: schema %s is incomplete", schema.Name)
	}
	if local == nil {
		return nil, fmt.Errorf("dualstore: local collection is required")
	}

	c := &Client[T, K]{
		engine: engine{
			name:    schema.Name,
			timeout: DefaultTimeout,
			now:     func() time.Time { return time.Now().UTC() },
			metrics: metrics.Nop(),
		},
		schema: schema,
		remote: rs,
		local:  local,
	}
	for _, opt := range opts {
		opt(&c.engine)
	}
	c.logger = logging.OrNop(c.logger).With(zap.String("collection", schema.Name))
	return c, nil
}

// Name returns the collection label.
func (c *Client[T, K]) Name() string {
	return c.name
}

// List returns the records matching filter (nil means all). A remote answer
// replaces the cached copy of the records it covers: the whole collection for
// an unfiltered list, the matching records for a filtered one.
func (c *Client[T, K]) List(ctx context.Context, filter Filter[T]) ([]T, error) {
	var query url.Values
	if filter != nil {
		query = filter.Query()
	}
	res := attempt(ctx, &c.engine, c.remote != nil, "list", func(ctx context.Context) ([]T, error) {
		return c.remote.List(ctx, query)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if res.ok() {
		if filter == nil {
			if err := c.local.Replace(ctx, res.value); err != nil {
				return nil, err
			}
			return res.value, nil
		}
		if err := c.replaceMatching(ctx, filter, res.value); err != nil {
			return nil, err
		}
		return res.value, nil
	}
	if err := c.fallback(ctx, "list", res.err); err != nil {
		return nil, err
	}

	items, err := c.local.Load(ctx)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return items, nil
	}
	matched := make([]T, 0, len(items))
	for _, rec := range items {
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// Get returns the record stored under key.
func (c *Client[T, K]) Get(ctx context.Context, key K) (T, error) {
	var zero T
	res := attempt(ctx, &c.engine, c.remote != nil, "get", func(ctx context.Context) (T, error) {
		return c.remote.Get(ctx, key)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if res.ok() {
		if err := c.upsert(ctx, res.value); err != nil {
			return zero, err
		}
		return res.value, nil
	}
	if err := c.fallback(ctx, "get", res.err); err != nil {
		return zero, err
	}

	items, err := c.local.Load(ctx)
	if err != nil {
		return zero, err
	}
	idx := c.indexOf(items, key)
	if idx < 0 {
		return zero, fmt.Errorf("%s %v: %w", c.name, key, ErrNotFound)
	}
	return items[idx], nil
}

// Create stores data and returns the stored record. Offline, the record gets
// a locally generated key and fresh timestamps.
func (c *Client[T, K]) Create(ctx context.Context, data T) (T, error) {
	var zero T
	if c.schema.Validate != nil {
		if err := c.schema.Validate(data); err != nil {
			return zero, err
		}
	}
	res := attempt(ctx, &c.engine, c.remote != nil, "create", func(ctx context.Context) (T, error) {
		return c.remote.Create(ctx, data)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if res.ok() {
		if err := c.upsert(ctx, res.value); err != nil {
			return zero, err
		}
		return res.value, nil
	}
	if err := c.fallback(ctx, "create", res.err); err != nil {
		return zero, err
	}

	items, err := c.local.Load(ctx)
	if err != nil {
		return zero, err
	}
	create := c.localCreator(items)
	rec := create(data)
	if err := c.local.Replace(ctx, append(items, rec)); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update applies patch to the record stored under key.
func (c *Client[T, K]) Update(ctx context.Context, key K, patch Patch[T]) (T, error) {
	var zero T
	if patch == nil {
		return zero, Invalid("", "patch is required")
	}
	if err := patch.Validate(); err != nil {
		return zero, err
	}
	return c.modify(ctx, "update", key, patch, func(ctx context.Context) (T, error) {
		return c.remote.Update(ctx, key, patch)
	})
}

// Action runs a record-level remote action (PATCH /<collection>/{key}/<action>)
// and, offline, applies patch to the cached record instead.
func (c *Client[T, K]) Action(ctx context.Context, key K, action string, body any, patch Patch[T]) (T, error) {
	var zero T
	if strings.TrimSpace(action) == "" {
		return zero, Invalid("action", "is required")
	}
	if patch == nil {
		return zero, Invalid("", "patch is required")
	}
	if err := patch.Validate(); err != nil {
		return zero, err
	}
	return c.modify(ctx, action, key, patch, func(ctx context.Context) (T, error) {
		return c.remote.ItemAction(ctx, key, action, body)
	})
}

// Delete removes the record stored under key. Deleting an absent key is not
// an error.
func (c *Client[T, K]) Delete(ctx context.Context, key K) error {
	res := attempt(ctx, &c.engine, c.remote != nil, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.remote.Delete(ctx, key)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if !res.ok() {
		if err := c.fallback(ctx, "delete", res.err); err != nil {
			return err
		}
	}

	items, err := c.local.Load(ctx)
	if err != nil {
		return err
	}
	idx := c.indexOf(items, key)
	if idx < 0 {
		return nil
	}
	items = append(items[:idx], items[idx+1:]...)
	return c.local.Replace(ctx, items)
}

// Bulk runs a collection-level remote action (POST /<collection>/<action>)
// and caches the records it returns. Offline, local computes the records to
// add from the cached collection.
func (c *Client[T, K]) Bulk(ctx context.Context, action string, body any, local LocalBulk[T]) ([]T, error) {
	if strings.TrimSpace(action) == "" {
		return nil, Invalid("action", "is required")
	}
	if local == nil {
		return nil, Invalid("", "local bulk function is required")
	}
	res := attempt(ctx, &c.engine, c.remote != nil, action, func(ctx context.Context) ([]T, error) {
		return c.remote.CollectionAction(ctx, action, body)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if res.ok() {
		for _, rec := range res.value {
			if err := c.upsert(ctx, rec); err != nil {
				return nil, err
			}
		}
		return res.value, nil
	}
	if err := c.fallback(ctx, action, res.err); err != nil {
		return nil, err
	}

	items, err := c.local.Load(ctx)
	if err != nil {
		return nil, err
	}
	created, err := local(append([]T(nil), items...), c.localCreator(items))
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return []T{}, nil
	}
	if err := c.local.Replace(ctx, append(items, created...)); err != nil {
		return nil, err
	}
	return created, nil
}

// Cached returns the cached records without contacting the remote store.
func (c *Client[T, K]) Cached(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Load(ctx)
}

func (c *Client[T, K]) modify(ctx context.Context, op string, key K, patch Patch[T], call func(context.Context) (T, error)) (T, error) {
	var zero T
	res := attempt(ctx, &c.engine, c.remote != nil, op, call)

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.local.Load(ctx)
	if err != nil {
		return zero, err
	}
	idx := c.indexOf(items, key)

	if res.ok() {
		if idx >= 0 {
			items[idx] = res.value
			if err := c.local.Replace(ctx, items); err != nil {
				return zero, err
			}
		}
		return res.value, nil
	}
	if err := c.fallback(ctx, op, res.err); err != nil {
		return zero, err
	}

	if idx < 0 {
		return zero, fmt.Errorf("%s %v: %w", c.name, key, ErrNotFound)
	}
	merged := patch.Apply(items[idx])
	merged = c.schema.WithKey(merged, key)
	merged = c.schema.Stamp(merged, time.Time{}, c.now())
	items[idx] = merged
	if err := c.local.Replace(ctx, items); err != nil {
		return zero, err
	}
	return merged, nil
}

// localCreator returns a function that keys and stamps records created
// offline, never reusing a key present in items or issued earlier by it.
func (c *Client[T, K]) localCreator(items []T) func(T) T {
	used := make(map[K]struct{}, len(items))
	for _, rec := range items {
		used[c.schema.Key(rec)] = struct{}{}
	}
	taken := func(k K) bool {
		_, ok := used[k]
		return ok
	}
	return func(rec T) T {
		now := c.now()
		key := c.schema.NewKey(now, taken)
		used[key] = struct{}{}
		rec = c.schema.WithKey(rec, key)
		return c.schema.Stamp(rec, now, now)
	}
}

// upsert replaces the cached record with rec's key, or appends rec.
func (c *Client[T, K]) upsert(ctx context.Context, rec T) error {
	items, err := c.local.Load(ctx)
	if err != nil {
		return err
	}
	if idx := c.indexOf(items, c.schema.Key(rec)); idx >= 0 {
		items[idx] = rec
	} else {
		items = append(items, rec)
	}
	return c.local.Replace(ctx, items)
}

// replaceMatching drops cached records matched by filter or sharing a key
// with fresh, then appends fresh.
func (c *Client[T, K]) replaceMatching(ctx context.Context, filter Filter[T], fresh []T) error {
	items, err := c.local.Load(ctx)
	if err != nil {
		return err
	}
	incoming := make(map[K]struct{}, len(fresh))
	for _, rec := range fresh {
		incoming[c.schema.Key(rec)] = struct{}{}
	}
	kept := make([]T, 0, len(items)+len(fresh))
	for _, rec := range items {
		if _, dup := incoming[c.schema.Key(rec)]; dup || filter.Match(rec) {
			continue
		}
		kept = append(kept, rec)
	}
	return c.local.Replace(ctx, append(kept, fresh...))
}

func (c *Client[T, K]) indexOf(items []T, key K) int {
	for i, rec := range items {
		if c.schema.Key(rec) == key {
			return i
		}
	}
	return -1
}

// fallback records a failed remote attempt. It returns the caller's own
// cancellation, which is never masked by the local path.
func (e *engine) fallback(ctx context.Context, op string, cause *RemoteUnavailableError) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.metrics.Fallbacks.WithLabelValues(e.name, op).Inc()
	if errors.Is(cause, errOffline) {
		return nil
	}
	e.logger.Debug("remote store unavailable, serving from local cache",
		zap.String("operation", op),
		zap.Error(cause.Err),
	)
	return nil
}
