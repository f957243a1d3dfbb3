// Package sandbox is a development stand-in for the canteen API. It serves
// the REST contract the SDK's remote collections speak, backed by an
// offline canteen.Service, with optional latency and failure injection so
// the cache fallback can be exercised by hand.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/pkg/canteen"
	"github.com/posrental/canteen_sdk_go/pkg/dualstore"
)

// FailConfig injects failures into a share of API requests.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>".
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return FailConfig{}, err
			}
			if val < 0 || val > 1 {
				return FailConfig{}, fmt.Errorf("fail rate %v outside [0,1]", val)
			}
			cfg.Rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return FailConfig{}, err
			}
			cfg.Code = val
		default:
			return FailConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}

// Options tunes a Server.
type Options struct {
	Latency  time.Duration
	Fail     FailConfig
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Server routes the canteen API onto a canteen.Service.
type Server struct {
	router   *mux.Router
	svc      *canteen.Service
	opts     Options
	logger   *zap.Logger
	requests *prometheus.CounterVec
	rand     func() float64

	mu   sync.RWMutex
	fail FailConfig
}

// New builds a Server over svc. svc should be cache-only; the sandbox is the
// remote store.
func New(svc *canteen.Service, opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		requests: promauto.With(opts.Registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "canteen_sandbox_requests_total",
				Help: "Total number of API requests served by the sandbox",
			},
			[]string{"method", "route", "code"},
		),
		rand: rand.Float64,
		fail: opts.Fail,
	}
	s.routes()
	return s
}

// SetFail replaces the failure injection of a running server.
func (s *Server) SetFail(cfg FailConfig) {
	s.mu.Lock()
	s.fail = cfg
	s.mu.Unlock()
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.observe, s.inject)

	api.HandleFunc("/payments/generate-monthly", s.handleGenerateMonthly).Methods(http.MethodPost)
	api.HandleFunc("/payments/{id:[0-9]+}/mark-paid", s.handleMarkPaid).Methods(http.MethodPatch)
	api.HandleFunc("/dashboard/stats", s.handleDashboard).Methods(http.MethodGet)

	registerCollection[canteen.Stall, canteen.StallPatch](api, "stalls", s.svc.Stalls(), stallFilter)
	registerCollection[canteen.Tenant, canteen.TenantPatch](api, "tenants", s.svc.Tenants(), nil)
	registerCollection[canteen.Contract, canteen.ContractPatch](api, "contracts", s.svc.Contracts(), contractFilter)
	registerCollection[canteen.Payment, canteen.PaymentPatch](api, "payments", s.svc.Payments(), paymentFilter)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("sandbox request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
		)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		s.mu.RLock()
		fail := s.fail
		s.mu.RUnlock()
		if fail.Rate > 0 && s.rand() < fail.Rate {
			status := fail.Code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			writeError(w, status, "failure injected")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGenerateMonthly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string `json:"month"`
		Year  int    `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	month, err := canteen.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	created, err := s.svc.GenerateMonthly(r.Context(), canteen.Period{Month: month, Year: req.Year})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: created, Message: fmt.Sprintf("generated %d payments", len(created))})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var details canteen.PaymentDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	paid, err := s.svc.MarkPaid(r.Context(), id, details)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: paid})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.DashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: stats})
}

type envelope struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dualstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dualstore.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
