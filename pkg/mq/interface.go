package mq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ClientInterface abstracts the queue client so the ingest consumer and the
// simulator can take the mock from pkg/mq/mock instead of a live connection.
type ClientInterface interface {
	// Push publishes data and blocks until the broker confirms receipt,
	// retrying with backoff while the connection is down. The context
	// bounds the whole attempt, retries included.
	Push(ctx context.Context, data []byte) error

	// UnsafePush publishes without waiting for a broker confirmation.
	// The message may be lost if the connection drops mid-flight.
	UnsafePush(ctx context.Context, data []byte) error

	// Consume returns a channel of deliveries from the queue. Every
	// delivery received must be Acked or Nacked by the caller.
	Consume() (<-chan amqp.Delivery, error)

	// Close shuts down the channel and the connection.
	Close() error
}

var _ ClientInterface = (*Client)(nil)
