// Package api hosts the HTTP server wrapping the versioned API controllers.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	v1 "github.com/pavewatch/pavewatch-go/internal/api/v1"
	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/datastore"
	"github.com/pavewatch/pavewatch-go/internal/logging"
	"github.com/pavewatch/pavewatch-go/internal/observability"
)

// shutdownTimeout bounds a graceful stop: in-flight requests get this long
// to finish before the listener is torn down.
const shutdownTimeout = 10 * time.Second

// Server owns the Echo instance and the lifecycle of the v1 API controller.
type Server struct {
	echo     *echo.Echo
	settings *conf.Settings
	logger   *log.Logger
	slogger  *slog.Logger

	dataStore datastore.Interface
	service   v1.Service
	metrics   *observability.Metrics

	apiController *v1.Controller

	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the standard logger for the server.
func WithLogger(logger *log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDataStore sets the datastore backing read endpoints.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithService sets the assessment service backing write endpoints.
func WithService(svc v1.Service) ServerOption {
	return func(s *Server) {
		s.service = svc
	}
}

// WithMetrics sets the observability metrics exposed at /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates the HTTP server and mounts the v1 controller on it.
func NewServer(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	if settings == nil {
		return nil, errors.New("api: settings are required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		echo:      echo.New(),
		settings:  settings,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.slogger == nil {
		s.slogger = logging.ForService("api-server")
		if s.slogger == nil {
			s.slogger = slog.Default()
		}
	}
	if s.dataStore == nil {
		cancel()
		return nil, errors.New("api: datastore is required")
	}
	if s.service == nil {
		cancel()
		return nil, errors.New("api: assessment service is required")
	}

	controller, err := v1.New(s.echo, s.dataStore, s.service, settings, s.logger, s.metrics)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("api: failed to create v1 controller: %w", err)
	}
	s.apiController = controller

	return s, nil
}

// Address returns the listen address derived from configuration.
func (s *Server) Address() string {
	return ":" + s.settings.WebServer.Port
}

// Start begins serving in a background goroutine and returns immediately.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			s.slogger.Error("Server error", "error", err)
		}
	}()

	s.logger.Printf("🌐 HTTP server starting on %s", s.Address())
}

// startBlocking serves HTTP requests until the server is shut down.
func (s *Server) startBlocking() error {
	addr := s.Address()
	s.slogger.Info("Starting HTTP server", "address", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then stops it gracefully.
func (s *Server) StartWithGracefulShutdown() error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.slogger.Info("Shutdown signal received, initiating graceful shutdown")
	s.logger.Println("🛑 Shutdown signal received")

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.slogger.Info("Server stopped")
	return nil
}
