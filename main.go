package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appcatalog "github.com/likha-market/marketplace/internal/application/catalog"
	"github.com/likha-market/marketplace/internal/application/fulfillment"
	"github.com/likha-market/marketplace/internal/application/ledger"
	appreview "github.com/likha-market/marketplace/internal/application/review"
	"github.com/likha-market/marketplace/internal/docstore"
	"github.com/likha-market/marketplace/internal/docstore/memory"
	"github.com/likha-market/marketplace/internal/docstore/postgres"
	httptransport "github.com/likha-market/marketplace/internal/infrastructure/http"
	"github.com/likha-market/marketplace/internal/infrastructure/id"
	"github.com/likha-market/marketplace/internal/infrastructure/notify"
	infraobs "github.com/likha-market/marketplace/internal/infrastructure/observability"
	"github.com/likha-market/marketplace/internal/infrastructure/observability/oteltrace"
	"github.com/likha-market/marketplace/internal/infrastructure/observability/prometrics"
	"github.com/likha-market/marketplace/internal/infrastructure/observability/zaplogger"
	"github.com/likha-market/marketplace/internal/infrastructure/outbox"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/pkg/config"
	"github.com/likha-market/marketplace/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	obsLogger := zaplogger.Wrap(baseLogger)
	tel := buildObservability(cfg.ServiceName, obsLogger)
	systemLogger := zaplogger.Wrap(logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID))

	store, cleanup, err := buildStore(cfg, obsLogger)
	if err != nil {
		systemLogger.Error("store_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(obsLogger)
	bus.Start(ctx)

	idGenerator := id.NewUUIDGenerator()
	policy := ledger.OversellClamp
	if cfg.OversellPolicy == config.PolicyReject {
		policy = ledger.OversellReject
	}

	ledgerService := ledger.New(store, idGenerator, bus, policy, tel)
	fulfillmentService := fulfillment.New(store, bus, tel)
	reviewService := appreview.New(store, idGenerator, tel)
	catalogService := appcatalog.New(store, idGenerator, tel)

	notify.New(bus, tel).Start()

	handler := httptransport.NewHandler(ledgerService, fulfillmentService, reviewService, catalogService, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store_backend", cfg.StoreBackend),
			observability.F("oversell_policy", cfg.OversellPolicy),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}

	// Stop after the server so in-flight requests can still publish.
	bus.Stop(shutdownCtx)
}

func buildObservability(serviceName string, logger observability.Logger) observability.Observability {
	metrics := prometrics.New("", "")

	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: metrics.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: metrics.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MExternalRequests: metrics.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external peers.",
			"peer", "endpoint", "outcome",
		),
		observability.MStockClamped: metrics.Counter(
			string(observability.MStockClamped),
			"Units requested at checkout that could not be reserved because stock floored at zero.",
		),
		observability.MSellerNotifications: metrics.Counter(
			string(observability.MSellerNotifications),
			"Seller notifications fanned out from order lifecycle events.",
			"kind",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: metrics.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: metrics.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: metrics.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of calls to external peers in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}

	return infraobs.New(oteltrace.New(serviceName), logger, counters, histograms)
}

func buildStore(cfg *config.Config, logger observability.Logger) (docstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Postgres.DSN(), logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
