package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
)

// Server is a dedicated scrape endpoint kept off the public API port.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// StartServer binds the scrape port before returning, so a port clash fails
// startup instead of surfacing later in a log line. gatherer is usually
// prometheus.DefaultGatherer; tests pass their own registry.
func StartServer(cfg config.MetricsConfig, gatherer prometheus.Gatherer) (*Server, error) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "catalog metrics are served at %s\n", path)
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("binding metrics port %d: %w", cfg.Port, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		ln: ln,
	}

	go func() {
		slog.Info("metrics server listening", "addr", ln.Addr().String(), "path", path)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return s, nil
}

// Addr is the bound address, useful when the configured port is 0.
func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
