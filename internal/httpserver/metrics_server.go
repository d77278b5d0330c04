package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
)

// MetricsServer serves Prometheus metrics on a dedicated port.
type MetricsServer struct {
	*component
	gatherer prometheus.Gatherer
}

// NewMetricsServer creates a server for GET /metrics backed by the default registry.
func NewMetricsServer(logger *slog.Logger, port string) *MetricsServer {
	if port == "" {
		port = defaultMetricsPort
	}

	return &MetricsServer{
		component: newComponent(logger, "metrics-server", port),
		gatherer:  prometheus.DefaultGatherer,
	}
}

var _ shutdown.Shutdowner = (*MetricsServer)(nil)

// Routes returns the metrics handler tree.
func (s *MetricsServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		EnableOpenMetrics: true,
	}))

	return mux
}

// Start binds the metrics port and serves in the background.
func (s *MetricsServer) Start(ctx context.Context) error {
	return s.serve(ctx, s.Routes())
}

// PingerReadyCritical keeps readiness independent of the metrics port.
func (s *MetricsServer) PingerReadyCritical() bool {
	return false
}
