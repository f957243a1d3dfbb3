package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/posrental/canteen_sdk_go/internal/apiresp"
	"github.com/posrental/canteen_sdk_go/internal/httpx"
)

// Store is the remote side of one collection.
type Store[T any, K comparable] interface {
	List(ctx context.Context, query url.Values) ([]T, error)
	Get(ctx context.Context, key K) (T, error)
	Create(ctx context.Context, data T) (T, error)
	Update(ctx context.Context, key K, patch any) (T, error)
	Delete(ctx context.Context, key K) error
	// ItemAction runs PATCH /<collection>/{key}/<action>.
	ItemAction(ctx context.Context, key K, action string, body any) (T, error)
	// CollectionAction runs POST /<collection>/<action> and returns the
	// records it reports.
	CollectionAction(ctx context.Context, action string, body any) ([]T, error)
}

// Collection is the HTTP implementation of Store.
type Collection[T any, K comparable] struct {
	client *httpx.Client
	path   string
}

// New constructs a Collection for path (e.g. "stalls") bound to baseURL.
func New[T any, K comparable](baseURL, path string, opts ...httpx.Option) (*Collection[T, K], error) {
	cl, err := httpx.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient[T, K](cl, path)
}

// NewWithHTTPClient wraps an existing httpx.Client, letting several
// collections share one client.
func NewWithHTTPClient[T any, K comparable](client *httpx.Client, path string) (*Collection[T, K], error) {
	if client == nil {
		return nil, fmt.Errorf("remote: http client is nil")
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, fmt.Errorf("remote: collection path is required")
	}
	return &Collection[T, K]{client: client, path: path}, nil
}

// Path returns the collection path.
func (c *Collection[T, K]) Path() string {
	return c.path
}

// List implements Store.
func (c *Collection[T, K]) List(ctx context.Context, query url.Values) ([]T, error) {
	data, err := c.client.DoJSON(ctx, http.MethodGet, c.path, query, nil)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := apiresp.Decode(data, &items); err != nil {
		return nil, fmt.Errorf("remote: decode %s list: %w", c.path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Get implements Store.
func (c *Collection[T, K]) Get(ctx context.Context, key K) (T, error) {
	return c.one(ctx, http.MethodGet, c.itemPath(key), nil)
}

// Create implements Store.
func (c *Collection[T, K]) Create(ctx context.Context, data T) (T, error) {
	return c.one(ctx, http.MethodPost, c.path, data)
}

// Update implements Store.
func (c *Collection[T, K]) Update(ctx context.Context, key K, patch any) (T, error) {
	return c.one(ctx, http.MethodPut, c.itemPath(key), patch)
}

// Delete implements Store.
func (c *Collection[T, K]) Delete(ctx context.Context, key K) error {
	_, err := c.client.DoJSON(ctx, http.MethodDelete, c.itemPath(key), nil, nil)
	return err
}

// ItemAction implements Store.
func (c *Collection[T, K]) ItemAction(ctx context.Context, key K, action string, body any) (T, error) {
	return c.one(ctx, http.MethodPatch, c.itemPath(key)+"/"+url.PathEscape(action), body)
}

// CollectionAction implements Store.
func (c *Collection[T, K]) CollectionAction(ctx context.Context, action string, body any) ([]T, error) {
	data, err := c.client.DoJSON(ctx, http.MethodPost, c.path+"/"+url.PathEscape(action), nil, body)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := apiresp.Decode(data, &items); err != nil {
		return nil, fmt.Errorf("remote: decode %s %s: %w", c.path, action, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T, K]) one(ctx context.Context, method, path string, body any) (T, error) {
	var out T
	data, err := c.client.DoJSON(ctx, method, path, nil, body)
	if err != nil {
		return out, err
	}
	if err := apiresp.Decode(data, &out); err != nil {
		return out, fmt.Errorf("remote: decode %s record: %w", c.path, err)
	}
	return out, nil
}

func (c *Collection[T, K]) itemPath(key K) string {
	return c.path + "/" + url.PathEscape(fmt.Sprint(key))
}

var _ Store[struct{}, int64] = (*Collection[struct{}, int64])(nil)
