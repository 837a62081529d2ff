// Package api exposes the sensor service over HTTP. Routes map one-to-one
// onto service operations; handlers only decode, call, and encode.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"procodus.dev/polysense/internal/telemetry"
	"procodus.dev/polysense/pkg/metrics"
)

// APIName and APIVersion identify the service on the index route.
const (
	APIName    = "polysense"
	APIVersion = "0.1.0"
)

// Server represents the sensor HTTP API server.
type Server struct {
	logger     *slog.Logger
	service    *telemetry.Service
	metrics    *metrics.APIMetrics
	httpServer *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger  *slog.Logger
	Service *telemetry.Service

	// HTTP server configuration
	HTTPPort int
}

// NewServer creates a new API Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Service == nil {
		return nil, errors.New("service cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	return &Server{
		logger:  cfg.Logger,
		service: cfg.Service,
		config:  cfg,
	}, nil
}

// SetMetrics sets the Prometheus metrics for the server. Optional; when nil
// the middleware records nothing.
func (s *Server) SetMetrics(m *metrics.APIMetrics) {
	s.metrics = m
}

// Run starts the API server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting API server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("API server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down API server")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	s.logger.Info("API server shutdown completed successfully")
	return nil
}

// Handler returns the configured HTTP routes. The fixed /sensors subroutes
// must be registered before the {id} routes so mux does not swallow them.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware)
	router.Use(s.metricsMiddleware)

	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	sensors := router.PathPrefix("/sensors").Subrouter()
	sensors.HandleFunc("/near", s.handleFindNear).Methods(http.MethodGet)
	sensors.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	sensors.HandleFunc("/temperature/values", s.handleTemperatureValues).Methods(http.MethodGet)
	sensors.HandleFunc("/quantity_by_type", s.handleCountByType).Methods(http.MethodGet)
	sensors.HandleFunc("/low_battery", s.handleLowBattery).Methods(http.MethodGet)
	sensors.HandleFunc("", s.handleList).Methods(http.MethodGet)
	sensors.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	sensors.HandleFunc("/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	sensors.HandleFunc("/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)
	sensors.HandleFunc("/{id:[0-9]+}/data", s.handleGetData).Methods(http.MethodGet)
	sensors.HandleFunc("/{id:[0-9]+}/data", s.handleRecord).Methods(http.MethodPost)

	return router
}
