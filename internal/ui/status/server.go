// Package status serves the daemon's observability endpoints: Prometheus
// metrics, a health check, and the per-scope compilation status.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"gls/internal/core/app"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	addr          string
	app           *app.App
	healthService *app.HealthService
	server        *http.Server
}

func NewServer(addr string, a *app.App) *Server {
	return &Server{
		addr:          addr,
		app:           a,
		healthService: app.NewHealthService(a),
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.healthService.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})

	// Per-scope compilation state
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.app.Status())
	})

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	slog.Info("status server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server failed", "error", err)
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
