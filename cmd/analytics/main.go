// Command analytics starts the standalone browse analytics service.
//
// It consumes browse events from Kafka, aggregates them in memory (session
// starts, pages revealed, filter and sort usage, latency percentiles),
// snapshots the aggregate to PostgreSQL and exposes it over HTTP for
// dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/postgres"
)

// main boots the analytics service: a Kafka consumer feeding the in-memory
// aggregator, optional PostgreSQL snapshots, a health checker and the HTTP
// API. SIGINT/SIGTERM trigger a graceful shutdown.
func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	agg := analytics.NewAggregator()

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.BrowseEvents, "analytics", agg.HandleEvent())
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("browse event consumer error", "error", err)
		}
	}()
	slog.Info("browse event consumer started", "topic", cfg.Kafka.Topics.BrowseEvents)
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	// Snapshots are optional: without PostgreSQL the service still serves
	// live aggregates.
	var snapshots analytics.SnapshotLister
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate analytics schema", "error", err)
			os.Exit(1)
		}
		store := aggregator.NewStore(db)
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
		checker.RegisterOptional("postgres", health.PingCheck(db.Ping))
	}

	m := metrics.New()
	analyticsHandler := analytics.NewHandler(agg, snapshots)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics(m))
	r.Get("/api/v1/analytics", analyticsHandler.Stats)
	r.Get("/api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
