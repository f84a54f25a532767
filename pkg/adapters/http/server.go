package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/observer"
	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/watchers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer is the part of the facade exposed over HTTP.
type Observer interface {
	Watchers() []watchers.Info
	UnwatchAll() int
}

// Server serves the registry and metrics of an Observer.
type Server struct {
	Observer Observer
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithGatherer exposes the metrics of g on /metrics instead of the
// default Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger configures a logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates the HTTP handler:
//
//	GET    /healthz   liveness
//	GET    /info      application and version
//	GET    /watchers  live top-level watchers
//	DELETE /watchers  unwatch everything
//	GET    /metrics   Prometheus exposition
func NewHandler(obs Observer, opts ...Option) http.Handler {
	s := &Server{
		Observer: obs,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/watchers", s.ListWatchers)
	r.Delete("/watchers", s.UnwatchAll)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	return r
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "observer",
		"version": strings.TrimSpace(observer.Version),
	})
}

// ListWatchers handles the GET /watchers request.
func (s *Server) ListWatchers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Observer.Watchers())
}

// UnwatchAll handles the DELETE /watchers request.
func (s *Server) UnwatchAll(w http.ResponseWriter, r *http.Request) {
	n := s.Observer.UnwatchAll()
	s.writeJSON(w, http.StatusOK, map[string]int{"released": n})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Error("Response encode failed", "error", err)
	}
}
