package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-transcode-worker/internal/infra/worker"
)

// Server exposes the worker's operational surface: liveness, Prometheus
// metrics, and a JSON snapshot of the running tally. It carries no job
// control endpoints; enqueueing and admin belong to the API service.
type Server struct {
	loop   *worker.Loop
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(port int, loop *worker.Loop, log *zerolog.Logger) *Server {
	s := &Server{loop: loop, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin http listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.loop.Stats()
	payload := struct {
		worker.Stats
		UptimeSeconds int64 `json:"uptime_seconds"`
	}{
		Stats:         stats,
		UptimeSeconds: int64(time.Since(stats.StartedAt).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("encode status")
	}
}
