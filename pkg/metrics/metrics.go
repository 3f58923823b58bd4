// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PipelineRunsTotal    *prometheus.CounterVec
	PipelineDuration     prometheus.Histogram
	PagesRevealedTotal   prometheus.Counter
	FilterChangesTotal   *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge
	CatalogListings      *prometheus.GaugeVec
	CatalogReloadsTotal  *prometheus.CounterVec
	SourceCacheHits      prometheus.Counter
	SourceCacheMisses    prometheus.Counter
	SourceCacheBreaker   prometheus.Gauge
	BrowseEventsDropped  prometheus.Counter
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PipelineRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_runs_total",
				Help: "Filter/sort pipeline invocations by cache result (hit, miss).",
			},
			[]string{"cache"},
		),
		PipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_pipeline_duration_seconds",
				Help:    "Filter/sort pipeline latency in seconds.",
				Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		PagesRevealedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_pages_revealed_total",
				Help: "Total pages revealed by infinite scroll.",
			},
		),
		FilterChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_filter_changes_total",
				Help: "Filter store mutations by operation.",
			},
			[]string{"op"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_active_sessions",
				Help: "Number of live browsing sessions.",
			},
		),
		CatalogListings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "catalog_listings",
				Help: "Number of listings per category in the loaded catalog.",
			},
			[]string{"category"},
		),
		CatalogReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_reloads_total",
				Help: "Catalog loads by status.",
			},
			[]string{"status"},
		),
		SourceCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_source_cache_hits_total",
				Help: "Total catalog source cache hits.",
			},
		),
		SourceCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_source_cache_misses_total",
				Help: "Total catalog source cache misses.",
			},
		),
		SourceCacheBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_source_cache_breaker_state",
				Help: "Catalog cache circuit breaker state (0 closed, 1 open, 2 half-open).",
			},
		),
		BrowseEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_browse_events_dropped_total",
				Help: "Browse events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PipelineRunsTotal,
		m.PipelineDuration,
		m.PagesRevealedTotal,
		m.FilterChangesTotal,
		m.ActiveSessions,
		m.CatalogListings,
		m.CatalogReloadsTotal,
		m.SourceCacheHits,
		m.SourceCacheMisses,
		m.SourceCacheBreaker,
		m.BrowseEventsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
