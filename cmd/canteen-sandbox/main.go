package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/posrental/canteen_sdk_go/internal/devseed"
	"github.com/posrental/canteen_sdk_go/internal/logging"
	"github.com/posrental/canteen_sdk_go/internal/metrics"
	"github.com/posrental/canteen_sdk_go/internal/sandbox"
	"github.com/posrental/canteen_sdk_go/pkg/canteen"
	"github.com/posrental/canteen_sdk_go/pkg/localcache/mock"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	seed := flag.String("seed", "", "path to YAML/JSON seed for the sandbox data")
	latency := flag.Duration("latency", 0, "artificial latency to inject per API request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(*logLevel, true)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store := mock.New()
	if *seed != "" {
		entries, err := devseed.LoadCacheSeed(*seed)
		if err != nil {
			logger.Fatal("load seed", zap.Error(err))
		}
		if err := store.Seed(entries); err != nil {
			logger.Fatal("apply seed", zap.Error(err))
		}
	}

	failCfg, err := sandbox.ParseFailConfig(*fail)
	if err != nil {
		logger.Fatal("parse fail flag", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := canteen.New(store, nil,
		canteen.WithLogger(logger.Named("store")),
		canteen.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		logger.Fatal("init sandbox store", zap.Error(err))
	}
	defer svc.Close()

	srv := sandbox.New(svc, sandbox.Options{
		Latency:  *latency,
		Fail:     failCfg,
		Logger:   logger,
		Registry: reg,
	})
	server := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	logger.Info("canteen-sandbox listening", zap.String("addr", *addr))
	fmt.Println()
	fmt.Println("export CANTEEN_RUNTIME_MODE=http")
	fmt.Printf("export CANTEEN_API_URL=http://%s/api\n", host)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
