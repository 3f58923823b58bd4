// Command catalog serves classifieds browsing: categories, filter
// definitions and per-visitor sessions with filtering, sorting and infinite
// scroll.
//
// Usage:
//
//	go run ./cmd/catalog [-config configs/development.yaml]
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
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/handler"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/session"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/resilience"
)

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
	slog.Info("starting catalog service",
		"port", cfg.Server.Port,
		"source", cfg.Catalog.Source,
		"page_size", cfg.Catalog.PageSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsServer, err := metrics.StartServer(cfg.Metrics, prometheus.DefaultGatherer)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsServer.Shutdown(context.Background())
	}

	checker := health.NewChecker()

	var src source.Source
	switch cfg.Catalog.Source {
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate catalog schema", "error", err)
			os.Exit(1)
		}
		pg := source.NewPostgres(db)
		checker.Register("postgres", health.PingCheck(pg.Ping))
		src = pg
	default:
		src = source.NewDir(os.DirFS(cfg.Catalog.DataDir))
		slog.Info("serving catalog from stub files", "data_dir", cfg.Catalog.DataDir)
	}

	var cached *source.Cached
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis, "catalog")
		if err != nil {
			slog.Warn("redis unavailable, catalog cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cached = source.NewCached(src, redisClient, cfg.Redis.CacheTTL, func(hit bool) {
				if hit {
					m.SourceCacheHits.Inc()
				} else {
					m.SourceCacheMisses.Inc()
				}
			}).WithBreaker(resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				OnStateChange: func(_ string, _, to resilience.State) {
					m.SourceCacheBreaker.Set(float64(to))
				},
			})
			src = cached
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
			slog.Info("catalog cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	registry := source.NewRegistry(src, source.RegistryConfig{
		Timeout: cfg.Catalog.LoadTimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Catalog.LoadRetries,
			InitialDelay:   200 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		Observe: func(c *source.Catalog, err error) {
			if err != nil {
				m.CatalogReloadsTotal.WithLabelValues("error").Inc()
				return
			}
			m.CatalogReloadsTotal.WithLabelValues("ok").Inc()
			m.CatalogListings.Reset()
			for category, n := range c.Counts() {
				m.CatalogListings.WithLabelValues(category).Set(float64(n))
			}
		},
	})
	if _, err := registry.Reload(ctx); err != nil {
		slog.Error("initial catalog load failed", "error", err)
		os.Exit(1)
	}
	checker.Register("catalog", registry.Check)
	invalidator := source.NewInvalidator(registry, cached)

	var tracker handler.Tracker
	reload := invalidator.Apply
	if cfg.Kafka.Enabled {
		events := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.BrowseEvents)
		defer events.Close()
		collector := analytics.NewCollector(events, analytics.CollectorConfig{
			BufferSize: cfg.Analytics.BufferSize,
			OnDrop:     m.BrowseEventsDropped.Inc,
		})
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("browse event collector started", "topic", cfg.Kafka.Topics.BrowseEvents)

		updates := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates)
		defer updates.Close()
		hostname, _ := os.Hostname()
		notifier := source.NewNotifier(updates, hostname)
		reload = func(ctx context.Context) error {
			return notifier.Notify(ctx, "reload requested over http")
		}

		// Each instance joins its own group so that every instance sees every
		// update.
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogUpdates, hostname, invalidator.Handle)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("catalog update consumer error", "error", err)
			}
		}()
		checker.RegisterOptional("kafka", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusUp, Message: "producers and consumer active"}
		})
	}

	sessions := session.NewManager(cfg.Session, session.Options{
		PageSize: cfg.Catalog.PageSize,
		Hooks: session.Hooks{
			Pipeline: func(hit bool, d time.Duration) {
				label := "miss"
				if hit {
					label = "hit"
				}
				m.PipelineRunsTotal.WithLabelValues(label).Inc()
				if !hit {
					m.PipelineDuration.Observe(d.Seconds())
				}
			},
			PageRevealed:  m.PagesRevealedTotal.Inc,
			FilterChanged: func(op string) { m.FilterChangesTotal.WithLabelValues(op).Inc() },
		},
		OnCount: func(n int) { m.ActiveSessions.Set(float64(n)) },
	})
	go sessions.Run(ctx)

	var limiter *ratelimit.Limiter
	if cfg.Session.CreateLimit > 0 {
		limiter = ratelimit.New(cfg.Session.CreateLimit, cfg.Session.CreateWindow)
		go limiter.Run(ctx)
	}

	h := handler.New(handler.Config{
		Catalog:       registry,
		Sessions:      sessions,
		Tracker:       tracker,
		Reload:        handler.ReloadFunc(reload),
		CreateLimiter: limiter,
		AdminKey:      cfg.Server.AdminKey,
	})
	router := handler.NewRouter(handler.RouterConfig{
		Handler:        h,
		Health:         checker,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
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

	slog.Info("catalog service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("catalog service stopped")
}
