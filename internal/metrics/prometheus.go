package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RemoteRequests.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
)

// Metrics holds the Prometheus collectors of the dual-store engine.
type Metrics struct {
	// Remote attempts, labelled by collection, operation and outcome.
	RemoteRequests *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec

	// Local fallbacks taken after a remote failure.
	Fallbacks *prometheus.CounterVec

	// Cached collections that failed to decode and were treated as empty.
	CacheCorrupt *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemoteRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_remote_requests_total",
				Help: "Total number of remote store attempts",
			},
			[]string{"collection", "operation", "outcome"},
		),

		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canteen_remote_request_duration_seconds",
				Help:    "Duration of remote store attempts",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5},
			},
			[]string{"collection", "operation"},
		),

		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_local_fallbacks_total",
				Help: "Total number of operations served by the local cache after a remote failure",
			},
			[]string{"collection", "operation"},
		),

		CacheCorrupt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_cache_corrupt_total",
				Help: "Total number of cached collections that could not be decoded",
			},
			[]string{"collection"},
		),
	}
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}
