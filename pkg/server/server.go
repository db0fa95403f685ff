// Package server exposes graph metrics and health probes over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/pvcgraph/pkg/health"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
)

// DefaultShutdownTimeout bounds how long Serve waits for requests to drain
const DefaultShutdownTimeout = 5 * time.Second

// Server wraps an HTTP server with graceful shutdown
type Server struct {
	server       *http.Server
	listener     net.Listener
	logger       logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// New creates a server publishing reg at path, checker's health checks at
// /healthz and its readiness checks at /readyz. checker may be nil.
func New(addr, path string, reg *metrics.Registry, checker *health.HealthChecker, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		logger:     logger.With(logging.Component("server")),
		shutdownCh: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	if checker == nil {
		checker = health.NewHealthChecker()
	}
	checker.RegisterCheck("server", s.shutdownCheck)
	mux.HandleFunc("/healthz", checker.HTTPHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Listen binds the server's address. Serve calls it if needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics", logging.String("addr", s.Addr()))
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(DefaultShutdownTimeout)
	}
}

// Shutdown initiates a graceful shutdown
func (s *Server) Shutdown(timeout time.Duration) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err = s.server.Shutdown(ctx); err != nil {
			s.logger.Error("error during shutdown", logging.Error(err))
			return
		}
		s.logger.Info("server shutdown complete")
	})
	return err
}

// IsShuttingDown returns true if shutdown has been initiated
func (s *Server) IsShuttingDown() bool {
	select {
	case <-s.shutdownCh:
		return true
	default:
		return false
	}
}

func (s *Server) shutdownCheck() health.Check {
	if s.IsShuttingDown() {
		return health.Check{Name: "server", Status: health.StatusUnhealthy, Message: "Shutting down"}
	}
	return health.Check{Name: "server", Status: health.StatusHealthy, Message: "Serving"}
}
