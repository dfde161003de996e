package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinemarket/backoffice/internal/services/compensation"
	"github.com/cinemarket/backoffice/internal/services/outbox"
	"github.com/cinemarket/backoffice/internal/services/projection"
	"github.com/cinemarket/backoffice/internal/services/reconcile"
	"github.com/cinemarket/backoffice/internal/shared/config"
	"github.com/cinemarket/backoffice/internal/shared/infra/postgres"
	"github.com/cinemarket/backoffice/internal/shared/infra/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("starting sales back-office",
		"admin_port", cfg.PortAdmin,
		"catalog_base_url", cfg.CatalogBaseURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schema first, then the pool.
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	conn, err := rabbitmq.Connect(ctx, cfg.AMQPURL, logger)
	if err != nil {
		slog.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	topoCh, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open topology channel", "error", err)
		os.Exit(1)
	}
	if err := rabbitmq.Declare(topoCh, cfg.StockRetryTTL); err != nil {
		slog.Error("failed to declare broker topology", "error", err)
		os.Exit(1)
	}
	topoCh.Close()

	publisher, err := rabbitmq.NewPublisher(conn, rabbitmq.SalesExchange, logger)
	if err != nil {
		slog.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Stores
	outboxStore := postgres.NewOutboxStore(pg.Pool(), cfg.OutboxMaxAttempts, logger)
	projectionStore := postgres.NewProjectionStore(pg.Pool(), logger)
	lockStore := postgres.NewLockStore(pg.Pool(), logger)
	ledgerStore := postgres.NewLedgerStore(pg.Pool(), logger)
	purchaseStore := postgres.NewPurchaseStore(pg.Pool(), outboxStore, logger)

	// Outbox relay
	relay := outbox.NewRelay(outboxStore, publisher, outbox.RelayConfig{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		BaseDelay:      cfg.OutboxBaseDelay,
		ConfirmTimeout: cfg.PublishConfirmTimeout,
	}, logger)
	go func() {
		if err := relay.Start(ctx); err != nil {
			slog.Error("outbox relay error", "error", err)
		}
	}()

	// Catalog projection consumer
	catalogCh, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open catalog channel", "error", err)
		os.Exit(1)
	}
	synchronizer := projection.NewSynchronizer(projectionStore, logger)
	catalogConsumer, err := projection.NewConsumer(catalogCh, synchronizer, logger)
	if err != nil {
		slog.Error("failed to create catalog consumer", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := catalogConsumer.Start(ctx); err != nil {
			slog.Error("catalog consumer error", "error", err)
		}
	}()

	// Stock compensation consumer
	stockCh, err := conn.Channel()
	if err != nil {
		slog.Error("failed to open stock channel", "error", err)
		os.Exit(1)
	}
	processor := compensation.NewProcessor(ledgerStore, purchaseStore, logger)
	stockConsumer, err := compensation.NewConsumer(stockCh, processor, cfg.StockMaxRetries, logger)
	if err != nil {
		slog.Error("failed to create stock consumer", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := stockConsumer.Start(ctx); err != nil {
			slog.Error("stock consumer error", "error", err)
		}
	}()

	// Reconciliation + admin surface
	catalogClient := reconcile.NewHTTPCatalogClient(
		&http.Client{Timeout: 30 * time.Second},
		cfg.CatalogBaseURL,
		cfg.CatalogPageSize,
		logger,
	)
	coordinator := reconcile.NewCoordinator(catalogClient, projectionStore, lockStore, logger)

	mux := http.NewServeMux()
	reconcile.NewHandler(coordinator, cfg.AdminToken, logger).RegisterRoutes(mux)
	adminServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PortAdmin),
		Handler: mux,
	}
	go func() {
		slog.Info("admin server listening", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled")
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin server shutdown error", "error", err)
	}
	cancel()

	slog.Info("sales back-office stopped")
}

// newLogger creates a structured logger based on configuration.
func newLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
