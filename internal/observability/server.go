// Package observability provides the Prometheus metrics endpoint and the
// HTTP server wrapper shared by the engine's API and metrics listeners.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server wraps an http.Server with lifecycle logging.
type Server struct {
	server *http.Server
	name   string
	addr   string
}

// NewServer creates a named HTTP server for the given handler.
func NewServer(name, addr string, handler http.Handler) *Server {
	return &Server{
		name: name,
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// MetricsHandler serves Prometheus metrics plus basic health probes.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("server", s.name).Str("addr", s.addr).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("server", s.name).Msg("HTTP server error")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("server", s.name).Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
