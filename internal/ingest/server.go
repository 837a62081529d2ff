package ingest

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

	"procodus.dev/polysense/internal/telemetry"
	"procodus.dev/polysense/pkg/metrics"
)

// Server runs the queue consumer and a small HTTP endpoint for metrics
// and health checks.
type Server struct {
	logger     *slog.Logger
	consumer   *Consumer
	httpServer *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the ingest server.
type ServerConfig struct {
	Logger  *slog.Logger
	Service *telemetry.Service

	// RabbitMQ configuration
	RabbitMQURL string
	QueueName   string

	// MetricsPort serves /metrics and /health
	MetricsPort int

	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.IngestMetrics
}

// NewServer creates a new ingest Server instance.
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

	if cfg.MetricsPort <= 0 {
		return nil, errors.New("metrics port must be positive")
	}

	consumer, err := NewConsumer(&ConsumerConfig{
		Logger:      cfg.Logger,
		Service:     cfg.Service,
		RabbitMQURL: cfg.RabbitMQURL,
		QueueName:   cfg.QueueName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize consumer: %w", err)
	}

	if cfg.Metrics != nil {
		consumer.SetMetrics(cfg.Metrics)
	}

	return &Server{
		logger:   cfg.Logger,
		consumer: consumer,
		config:   cfg,
	}, nil
}

// Run starts the consumer and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting ingest server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("metrics server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("ingest server started successfully", "metrics_port", s.config.MetricsPort)

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("metrics server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the consumer and the metrics endpoint.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down ingest server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown metrics server", "error", err)
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	}

	if s.consumer != nil {
		s.logger.Info("stopping consumer")
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
			if shutdownErr != nil {
				shutdownErr = fmt.Errorf("%w; consumer shutdown error: %w", shutdownErr, err)
			} else {
				shutdownErr = fmt.Errorf("consumer shutdown error: %w", err)
			}
		}
	}

	if shutdownErr != nil {
		s.logger.Error("ingest server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("ingest server shutdown completed successfully")
	return nil
}
