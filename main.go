package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appPayment "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/application/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/config"
	dompay "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/domain/payment"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/memory"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/nganluong"
	infraobs "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/observability/oteltrace"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/observability/prometrics"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/observability/zaplogger"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/outbox"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/infrastructure/sqlite"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/pkg/logging"
	httppresentation "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/presentation/http"
	workerpresentation "github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/presentation/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, err := logging.NewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Instruments(prometrics.New(registry, ""))

	systemLogger := zaplogger.New(baseLogger)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), systemLogger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeStore, err := openSessionStore(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	orders := memory.NewOrderRepository()
	processor := nganluong.NewClient(cfg.NganLuong, nil, tel)

	bus := outbox.NewBus(tel)
	workerpresentation.NewSettlementWorker(bus, tel).Start()
	bus.Start(ctx)

	payments := appPayment.NewOrchestrator(appPayment.Dependencies{
		Sessions:  sessions,
		Orders:    orders,
		Processor: processor,
		Publisher: bus,
		Telemetry: tel,
	})

	handler := httppresentation.NewHandler(payments, orders, httppresentation.Options{
		Credentials:       cfg.Credentials,
		Settings:          cfg.Settings,
		CallbackRateRPS:   cfg.CallbackRateRPS,
		CallbackRateBurst: cfg.CallbackRateBurst,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}, tel)

	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	root.Mount("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("session_store", cfg.SessionStore),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.F("error", err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
	return nil
}

func openSessionStore(ctx context.Context, cfg config.Config, logger observability.Logger) (dompay.SessionStore, func(), error) {
	if cfg.SessionStore != config.StoreSQLite {
		return memory.NewSessionStore(), func() {}, nil
	}
	store, err := sqlite.Open(ctx, cfg.SQLiteDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite session store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("session_store_close_failed", observability.F("error", err))
		}
	}, nil
}
