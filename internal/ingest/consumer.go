// Package ingest consumes reading envelopes from RabbitMQ and records them
// through the telemetry service.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/polysense/internal/telemetry"
	"procodus.dev/polysense/pkg/metrics"
	"procodus.dev/polysense/pkg/mq"
	"procodus.dev/polysense/pkg/wire"
)

// Consumer consumes reading envelopes from RabbitMQ and fans them out
// through the telemetry service.
type Consumer struct {
	logger    *slog.Logger
	service   *telemetry.Service
	mqClient  mq.ClientInterface
	queueName string
	metrics   *metrics.IngestMetrics
	done      chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	Service     *telemetry.Service
	RabbitMQURL string
	QueueName   string

	// MQClient overrides the RabbitMQ client. When nil a real client is
	// created from RabbitMQURL.
	MQClient mq.ClientInterface
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Service == nil {
		return nil, errors.New("service cannot be nil")
	}

	if cfg.RabbitMQURL == "" && cfg.MQClient == nil {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	mqClient := cfg.MQClient
	if mqClient == nil {
		mqClient = mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
	}

	return &Consumer{
		logger:    cfg.Logger,
		service:   cfg.Service,
		mqClient:  mqClient,
		queueName: cfg.QueueName,
		done:      make(chan struct{}),
	}, nil
}

// SetMetrics sets the Prometheus metrics for the consumer. Optional; when
// nil nothing is recorded.
func (c *Consumer) SetMetrics(m *metrics.IngestMetrics) {
	c.metrics = m
}

// Start begins consuming messages from RabbitMQ.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting consumer", "queue", c.queueName)

	// Wait for MQ client to be ready
	time.Sleep(2 * time.Second)

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer started, waiting for messages")

	if c.metrics != nil {
		c.metrics.ActiveConsumers.Inc()
	}

	go c.processMessages(ctx, deliveries)

	return nil
}

// processMessages processes incoming messages from the deliveries channel.
func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			close(c.done)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				close(c.done)
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single message delivery. Undecodable envelopes
// and readings for unknown sensors are acked and dropped; store failures are
// nacked back onto the queue for redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(c.queueName))
		defer timer.ObserveDuration()
	}

	var envelope wire.ReadingEnvelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		c.logger.Error("failed to unmarshal reading envelope", "error", err)
		c.observe("rejected")
		c.ack(delivery)
		return
	}

	c.logger.Debug("received reading",
		"sensor_id", envelope.SensorID,
		"temperature", envelope.Temperature,
		"battery_level", envelope.BatteryLevel,
	)

	err := c.service.Record(ctx, envelope.SensorID, telemetry.Reading{
		Velocity:     envelope.Velocity,
		Temperature:  envelope.Temperature,
		Humidity:     envelope.Humidity,
		BatteryLevel: envelope.BatteryLevel,
		LastSeen:     envelope.LastSeen,
	})

	switch {
	case errors.Is(err, telemetry.ErrNotFound):
		// Unknown sensor: redelivery cannot help, drop the message.
		c.logger.Warn("reading for unknown sensor dropped", "sensor_id", envelope.SensorID)
		c.observe("rejected")
		c.ack(delivery)
		return

	case err != nil:
		c.logger.Error("failed to record reading",
			"sensor_id", envelope.SensorID,
			"error", err,
		)
		c.observe("error")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	c.observe("success")
	c.ack(delivery)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

func (c *Consumer) observe(status string) {
	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(c.queueName, status).Inc()
	}
}

// Stop stops the consumer and closes the MQ client.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	// Wait for message processing to complete
	<-c.done

	if c.metrics != nil {
		c.metrics.ActiveConsumers.Dec()
	}

	c.logger.Info("consumer stopped")
	return nil
}
