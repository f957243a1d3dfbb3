package canteen

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/httpx"
	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/internal/metrics"
	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
	"github.com/posrental/canteen_sdk_go/pkg/localcache"
	"github.com/posrental/canteen_sdk_go/pkg/remote"
)

// DefaultDueDay is the day of the month generated payments fall due.
const DefaultDueDay = 5

// Remotes holds the remote side of each collection. A nil field leaves that
// collection cache-only.
type Remotes struct {
	Stalls    remote.Store[Stall, int64]
	Tenants   remote.Store[Tenant, int64]
	Contracts remote.Store[Contract, int64]
	Payments  remote.Store[Payment, int64]
}

// NewHTTPRemotes binds the four collections to one API client.
func NewHTTPRemotes(client *httpx.Client) (*Remotes, error) {
	stalls, err := remote.NewWithHTTPClient[Stall, int64](client, stallsPath)
	if err != nil {
		return nil, err
	}
	tenants, err := remote.NewWithHTTPClient[Tenant, int64](client, tenantsPath)
	if err != nil {
		return nil, err
	}
	contracts, err := remote.NewWithHTTPClient[Contract, int64](client, contractsPath)
	if err != nil {
		return nil, err
	}
	payments, err := remote.NewWithHTTPClient[Payment, int64](client, paymentsPath)
	if err != nil {
		return nil, err
	}
	return &Remotes{Stalls: stalls, Tenants: tenants, Contracts: contracts, Payments: payments}, nil
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
	dueDay  int
}

// WithLogger sets the logger shared by every collection.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collectors shared by every collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTimeout bounds each remote attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClock overrides the clock used for timestamps, due dates and the
// current billing period.
func WithClock(fn func() time.Time) Option {
	return func(o *options) {
		if fn != nil {
			o.now = fn
		}
	}
}

// WithDueDay sets the day of the month generated payments fall due.
func WithDueDay(day int) Option {
	return func(o *options) {
		if day >= 1 && day <= 31 {
			o.dueDay = day
		}
	}
}

// Service is the canteen rental client: one dual-source collection per
// entity plus the operations spanning them.
type Service struct {
	stalls    *dualstore.Client[Stall, int64]
	tenants   *dualstore.Client[Tenant, int64]
	contracts *dualstore.Client[Contract, int64]
	payments  *dualstore.Client[Payment, int64]

	cache  localcache.Store
	now    func() time.Time
	dueDay int
	logger *zap.Logger
}

// New builds a Service over cache. With a nil remotes every operation is
// served by the cache. The Service owns cache and closes it in Close.
func New(cache localcache.Store, remotes *Remotes, opts ...Option) (*Service, error) {
	if cache == nil {
		return nil, errors.New("canteen: cache store is required")
	}
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		dueDay: DefaultDueDay,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	if remotes == nil {
		remotes = &Remotes{}
	}

	s := &Service{cache: cache, now: o.now, dueDay: o.dueDay, logger: o.logger}
	var err error
	if s.stalls, err = newClient(stallSchema(), remotes.Stalls, cache, StallsKey, func() []Stall { return DefaultStalls(o.now()) }, &o); err != nil {
		return nil, err
	}
	if s.tenants, err = newClient(tenantSchema(), remotes.Tenants, cache, TenantsKey, nil, &o); err != nil {
		return nil, err
	}
	if s.contracts, err = newClient(contractSchema(), remotes.Contracts, cache, ContractsKey, nil, &o); err != nil {
		return nil, err
	}
	if s.payments, err = newClient(paymentSchema(), remotes.Payments, cache, PaymentsKey, nil, &o); err != nil {
		return nil, err
	}
	return s, nil
}

func newClient[T any](schema dualstore.Schema[T, int64], rs remote.Store[T, int64], cache localcache.Store, key string, defaults func() []T, o *options) (*dualstore.Client[T, int64], error) {
	local, err := localcache.NewCollection(cache, key, defaults,
		localcache.WithLogger(o.logger),
		localcache.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("canteen: %s cache: %w", schema.Name, err)
	}
	client, err := dualstore.New(schema, rs, local,
		dualstore.WithLogger(o.logger),
		dualstore.WithMetrics(o.metrics),
		dualstore.WithTimeout(o.timeout),
		dualstore.WithClock(o.now),
	)
	if err != nil {
		return nil, fmt.Errorf("canteen: %s client: %w", schema.Name, err)
	}
	return client, nil
}

// Stalls returns the stall collection.
func (s *Service) Stalls() *dualstore.Client[Stall, int64] { return s.stalls }

// Tenants returns the tenant collection.
func (s *Service) Tenants() *dualstore.Client[Tenant, int64] { return s.tenants }

// Contracts returns the contract collection.
func (s *Service) Contracts() *dualstore.Client[Contract, int64] { return s.contracts }

// Payments returns the payment collection.
func (s *Service) Payments() *dualstore.Client[Payment, int64] { return s.payments }

// Close releases the cache store.
func (s *Service) Close() error {
	return s.cache.Close()
}
