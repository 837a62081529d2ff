// Package simulate registers a synthetic sensor fleet through the HTTP API
// and publishes a continuous stream of readings for it to RabbitMQ.
package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"procodus.dev/polysense/pkg/metrics"
	"procodus.dev/polysense/pkg/mq"
	"procodus.dev/polysense/pkg/simulator"
)

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// APIURL is the base URL of the sensor HTTP API used to register the fleet
	APIURL string
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// QueueName is the name of the queue to publish readings to
	QueueName string
	// SensorCount is the number of synthetic sensors to register
	SensorCount int
	// Interval is the time between readings per sensor
	Interval time.Duration
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
	// MQClient overrides the RabbitMQ client. When nil a real client is
	// created from RabbitMQURL.
	MQClient mq.ClientInterface
}

// Server manages the fleet registration and the per-sensor reading loops.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	mqClient   mq.ClientInterface
	httpClient *http.Client
	generators []*simulator.SignalGenerator
	wg         sync.WaitGroup
	metrics    *metrics.SimulatorMetrics
}

var (
	errConfigRequired     = errors.New("config cannot be nil")
	errInvalidSensorCount = errors.New("sensor count must be greater than 0")
	errInvalidInterval    = errors.New("interval must be greater than 0")
	errLoggerRequired     = errors.New("logger is required")
	errAPIURLRequired     = errors.New("API URL is required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.APIURL == "" {
		return nil, errAPIURLRequired
	}

	if cfg.SensorCount <= 0 {
		return nil, errInvalidSensorCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	client := cfg.MQClient
	if client == nil {
		realClient := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "mq-client"),
		))
		if cfg.MQMetrics != nil {
			realClient.SetMetrics(cfg.MQMetrics)
		}
		client = realClient
	}

	return &Server{
		logger:     cfg.Logger,
		config:     cfg,
		mqClient:   client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		metrics:    cfg.Metrics,
	}, nil
}

// Run registers the fleet, starts the reading loops, and blocks until a
// shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	if err := s.registerFleet(ctx); err != nil {
		return fmt.Errorf("failed to register fleet: %w", err)
	}

	for i, generator := range s.generators {
		s.wg.Add(1)
		go s.runSensor(ctx, i, generator)
	}

	s.logger.Info("simulator server started",
		"sensor_count", len(s.generators),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for sensor loops to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ client...")
	if err := s.mqClient.Close(); err != nil {
		s.logger.Error("failed to close MQ client", "error", err)
	}

	s.logger.Info("simulator server stopped")
	return nil
}

// registerFleet creates SensorCount synthetic sensors through the HTTP API
// and builds a signal generator for each assigned id. Individual failures
// are logged and skipped; a fleet with no sensors at all is an error.
func (s *Server) registerFleet(ctx context.Context) error {
	s.generators = make([]*simulator.SignalGenerator, 0, s.config.SensorCount)

	for range s.config.SensorCount {
		sensor := simulator.NewSensor()
		if sensor == nil {
			continue
		}

		id, err := s.registerSensor(ctx, sensor)
		if err != nil {
			s.logger.Error("failed to register sensor",
				"name", sensor.Name,
				"error", err,
			)
			if s.metrics != nil {
				s.metrics.GenerationFailures.WithLabelValues("register_error").Inc()
			}
			continue
		}

		s.logger.Info("sensor registered",
			"sensor_id", id,
			"name", sensor.Name,
			"type", sensor.Type,
		)

		if s.metrics != nil {
			s.metrics.SensorsRegistered.Inc()
		}

		s.generators = append(s.generators, simulator.NewSignalGenerator(id))
	}

	if len(s.generators) == 0 {
		return errors.New("no sensors could be registered")
	}

	return nil
}

// registerSensor posts one sensor definition and returns the assigned id.
func (s *Server) registerSensor(ctx context.Context, sensor *simulator.Sensor) (int64, error) {
	payload, err := json.Marshal(sensor)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sensor: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.config.APIURL+"/sensors",
		bytes.NewReader(payload),
	)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("failed to decode creation response: %w", err)
	}

	return created.ID, nil
}

// runSensor publishes one reading per interval for a single sensor.
func (s *Server) runSensor(ctx context.Context, id int, generator *simulator.SignalGenerator) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActiveSimulators.Inc()
		defer s.metrics.ActiveSimulators.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	sensorLogger := s.logger.With(slog.Int("simulator_id", id))
	sensorLogger.Info("sensor loop started")

	for {
		select {
		case <-ctx.Done():
			sensorLogger.Info("sensor loop shutting down")
			return

		case t := <-ticker.C:
			if err := s.publishReading(ctx, generator, t); err != nil {
				sensorLogger.Error("failed to publish reading", "error", err)
				// Continue on error - don't stop the loop
				continue
			}

			sensorLogger.Debug("reading published")
		}
	}
}

// publishReading generates the reading for time t and pushes it to the queue.
func (s *Server) publishReading(ctx context.Context, generator *simulator.SignalGenerator, t time.Time) error {
	envelope := generator.Next(t.UTC())

	message, err := json.Marshal(envelope)
	if err != nil {
		if s.metrics != nil {
			s.metrics.GenerationFailures.WithLabelValues("marshal_error").Inc()
		}
		return err
	}

	if err := s.mqClient.Push(ctx, message); err != nil {
		if s.metrics != nil {
			s.metrics.GenerationFailures.WithLabelValues("push_error").Inc()
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.ReadingsGenerated.Inc()
	}

	return nil
}
