package api

import (
	"context"
	"net/http"

	service "github.com/okian/benchmarks/internal/app"
	"github.com/okian/benchmarks/pkg/logger"
	"github.com/okian/benchmarks/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports queue, worker and store counters.
type StatsProvider interface {
	GetStats(ctx context.Context) (service.Stats, error)
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth answers 503 while the store does not respond to a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", logger.Error(err))
		noteErrorCode(w, "store_unavailable")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.GetStats(r.Context())
	if err != nil {
		s.fail(w, r, "api.stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MetricsHandler exposes the service registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
