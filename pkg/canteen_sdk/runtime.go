package canteen_sdk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/devseed"
	"github.com/posrental/canteen_sdk_go/internal/httpx"
	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/internal/metrics"
	"github.com/posrental/canteen_sdk_go/pkg/canteen"
	"github.com/posrental/canteen_sdk_go/pkg/localcache"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/boltstore"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/mock"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/sqlitestore"
)

const (
	ModeAuto    = "auto"
	ModeHTTP    = "http"
	ModeOffline = "offline"

	DriverMemory = "memory"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Config is the environment contract of NewFromEnv.
type Config struct {
	Mode           string        `env:"CANTEEN_RUNTIME_MODE"    envDefault:"auto"`
	APIURL         string        `env:"CANTEEN_API_URL"`
	APIToken       string        `env:"CANTEEN_API_TOKEN"`
	RemoteTimeout  time.Duration `env:"CANTEEN_REMOTE_TIMEOUT"  envDefault:"3s"`
	CacheDriver    string        `env:"CANTEEN_CACHE_DRIVER"    envDefault:"memory"`
	CachePath      string        `env:"CANTEEN_CACHE_PATH"      envDefault:"canteen-cache.db"`
	CacheSeed      string        `env:"CANTEEN_CACHE_SEED"`
	LogLevel       string        `env:"CANTEEN_LOG_LEVEL"       envDefault:"info"`
	LogDevelopment bool          `env:"CANTEEN_LOG_DEVELOPMENT" envDefault:"false"`
	PaymentDueDay  int           `env:"CANTEEN_PAYMENT_DUE_DAY" envDefault:"5"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("canteen_sdk: parse env: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.CacheDriver = strings.ToLower(strings.TrimSpace(cfg.CacheDriver))
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	return cfg, nil
}

// ResolveMode returns the effective runtime mode ("http" or "offline").
func (c Config) ResolveMode() (string, error) {
	switch c.Mode {
	case ModeAuto, "":
		if c.APIURL != "" {
			return ModeHTTP, nil
		}
		return ModeOffline, nil
	case ModeHTTP:
		if c.APIURL == "" {
			return "", fmt.Errorf("canteen_sdk: HTTP mode requires CANTEEN_API_URL")
		}
		return ModeHTTP, nil
	case ModeOffline:
		return ModeOffline, nil
	default:
		return "", fmt.Errorf("canteen_sdk: unsupported CANTEEN_RUNTIME_MODE value %q", c.Mode)
	}
}

// Option configures NewFromEnv and NewFromConfig.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	registerer prometheus.Registerer
	logger     *zap.Logger
}

// WithRegisterer registers the SDK collectors with reg. Without it the
// collectors stay unregistered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *runtimeOptions) { o.registerer = reg }
}

// WithLogger replaces the logger built from CANTEEN_LOG_LEVEL.
func WithLogger(l *zap.Logger) Option {
	return func(o *runtimeOptions) { o.logger = l }
}

// NewFromEnv builds a canteen.Service from environment variables and returns
// the resolved mode ("http" or "offline").
func NewFromEnv(opts ...Option) (*canteen.Service, string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig is NewFromEnv for an explicit Config.
func NewFromConfig(cfg Config, opts ...Option) (*canteen.Service, string, error) {
	o := runtimeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := cfg.ResolveMode()
	if err != nil {
		return nil, "", err
	}

	logger := o.logger
	if logger == nil {
		logger, err = logging.New(cfg.LogLevel, cfg.LogDevelopment)
		if err != nil {
			return nil, "", fmt.Errorf("canteen_sdk: init logger: %w", err)
		}
	}
	m := metrics.New(o.registerer)

	var remotes *canteen.Remotes
	if mode == ModeHTTP {
		client, err := httpx.NewClient(cfg.APIURL,
			httpx.WithBearerToken(cfg.APIToken),
			httpx.WithTimeout(cfg.RemoteTimeout),
		)
		if err != nil {
			return nil, "", fmt.Errorf("canteen_sdk: init HTTP client: %w", err)
		}
		if remotes, err = canteen.NewHTTPRemotes(client); err != nil {
			return nil, "", fmt.Errorf("canteen_sdk: init remote collections: %w", err)
		}
	}

	cache, err := openCache(cfg)
	if err != nil {
		return nil, "", err
	}

	svc, err := canteen.New(cache, remotes,
		canteen.WithLogger(logger),
		canteen.WithMetrics(m),
		canteen.WithTimeout(cfg.RemoteTimeout),
		canteen.WithDueDay(cfg.PaymentDueDay),
	)
	if err != nil {
		_ = cache.Close()
		return nil, "", err
	}
	logger.Info("canteen client ready",
		zap.String("mode", mode),
		zap.String("cache_driver", cfg.CacheDriver),
		zap.Duration("remote_timeout", cfg.RemoteTimeout),
	)
	return svc, mode, nil
}

func openCache(cfg Config) (localcache.Store, error) {
	var entries []devseed.CacheSeedEntry
	if path := strings.TrimSpace(cfg.CacheSeed); path != "" {
		var err error
		if entries, err = devseed.LoadCacheSeed(path); err != nil {
			return nil, fmt.Errorf("canteen_sdk: load cache seed: %w", err)
		}
	}

	switch cfg.CacheDriver {
	case DriverMemory, "":
		store := mock.New()
		if err := store.Seed(entries); err != nil {
			return nil, fmt.Errorf("canteen_sdk: apply cache seed: %w", err)
		}
		return store, nil
	case DriverBolt, DriverSQLite:
		var (
			store localcache.Store
			err   error
		)
		if cfg.CacheDriver == DriverBolt {
			store, err = boltstore.Open(cfg.CachePath)
		} else {
			store, err = sqlitestore.Open(cfg.CachePath)
		}
		if err != nil {
			return nil, fmt.Errorf("canteen_sdk: open %s cache: %w", cfg.CacheDriver, err)
		}
		if err := seedMissing(context.Background(), store, entries); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("canteen_sdk: unsupported CANTEEN_CACHE_DRIVER value %q", cfg.CacheDriver)
	}
}

// seedMissing writes seed entries whose key the durable cache has never
// stored, so restarting with the same seed keeps local changes.
func seedMissing(ctx context.Context, store localcache.Store, entries []devseed.CacheSeedEntry) error {
	for _, e := range entries {
		existing, err := store.Load(ctx, e.Key)
		if err != nil {
			return fmt.Errorf("canteen_sdk: apply cache seed: %w", err)
		}
		if existing != nil {
			continue
		}
		if err := store.Save(ctx, e.Key, e.Value); err != nil {
			return fmt.Errorf("canteen_sdk: apply cache seed: %w", err)
		}
	}
	return nil
}
