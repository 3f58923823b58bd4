package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/middleware"
)

// RouterConfig assembles the catalog HTTP surface. Health and Metrics are
// optional.
type RouterConfig struct {
	Handler        *Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	Timeout        time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Location"},
		MaxAge:         300,
	}))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Timeout > 0 {
			r.Use(middleware.Timeout(cfg.Timeout))
		}
		cfg.Handler.Routes(r)
	})
	return r
}
