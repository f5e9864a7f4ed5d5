// Package server serves the platform endpoints: liveness, readiness and
// Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tiltakspenger-overgangsstonad/internal/common/logging"
)

const (
	AlivePath   = "/isalive"
	ReadyPath   = "/isready"
	MetricsPath = "/metrics"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func() error

// Server represents an HTTP server
type Server struct {
	srv *http.Server
}

// New creates a new server instance
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// NewRouter routes the platform endpoints. The service is alive while
// alive() returns nil and ready while every readiness check passes.
func NewRouter(gatherer prometheus.Gatherer, alive HealthCheck, ready ...HealthCheck) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc(AlivePath, checkHandler("alive", []HealthCheck{alive})).Methods(http.MethodGet)
	router.HandleFunc(ReadyPath, checkHandler("ready", ready)).Methods(http.MethodGet)
	router.Handle(MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

func checkHandler(name string, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(); err != nil {
				logging.Warn("Health check failed",
					logging.Field{Key: "check", Value: name},
					logging.Err(err),
				)
				http.Error(w, "NOT "+name, http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(name))
	}
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	logging.Info("HTTP server listening", logging.Field{Key: "addr", Value: s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
