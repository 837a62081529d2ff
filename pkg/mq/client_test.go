package mq_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/pkg/mq"
)

var _ = Describe("MQ Client", func() {
	var (
		logger *slog.Logger
	)

	BeforeEach(func() {
		// Create a logger that discards output for tests
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		It("should create a new client instance", func() {
			client := mq.New("test-queue", "amqp://localhost:5672", logger)
			Expect(client).NotTo(BeNil())
		})

		It("should start background reconnection goroutine", func() {
			client := mq.New("test-queue", "amqp://invalid:5672", logger)
			Expect(client).NotTo(BeNil())

			// Give the goroutine a moment to start
			time.Sleep(100 * time.Millisecond)

			// Clean up
			_ = client.Close()
		})
	})

	Describe("Push", func() {
		Context("when not connected", func() {
			It("should retry with backoff and timeout", func() {
				client := mq.New("test-queue", "amqp://invalid:5672", logger)

				// Give client time to attempt connection and fail
				time.Sleep(100 * time.Millisecond)

				// Use a context with timeout to prevent infinite retries
				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte("test message"))
				elapsed := time.Since(start)

				// Should eventually timeout due to context
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(SatisfyAny(
					ContainSubstring("context deadline exceeded"),
					ContainSubstring("context canceled"),
				))
				// Should have waited for backoff retries
				Expect(elapsed).To(BeNumerically(">=", 100*time.Millisecond))

				_ = client.Close()
			})

			It("should return error after max retry attempts", func() {
				client := mq.New("test-queue", "amqp://invalid:5672", logger)

				// Give client time to attempt connection and fail
				time.Sleep(100 * time.Millisecond)

				// Use a long timeout that won't interfere with max retry logic
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				start := time.Now()
				err := client.Push(ctx, []byte("test message"))
				elapsed := time.Since(start)

				// Should return max retries exceeded error
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("maximum retry attempts exceeded"))

				// Should have waited for multiple backoff attempts
				// 5 retries with backoff: 100ms + 200ms + 400ms + 800ms + 1600ms = 3100ms minimum
				Expect(elapsed).To(BeNumerically(">=", 3*time.Second))
				Expect(elapsed).To(BeNumerically("<", 10*time.Second))

				_ = client.Close()
			})

			It("should return error for UnsafePush", func() {
				client := mq.New("test-queue", "amqp://invalid:5672", logger)

				// Give client time to attempt connection and fail
				time.Sleep(100 * time.Millisecond)

				err := client.UnsafePush(context.Background(), []byte("test message"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not connected"))

				_ = client.Close()
			})
		})
	})

	Describe("Consume", func() {
		Context("when not connected", func() {
			It("should return error", func() {
				client := mq.New("test-queue", "amqp://invalid:5672", logger)

				// Give client time to attempt connection and fail
				time.Sleep(100 * time.Millisecond)

				deliveries, err := client.Consume()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not connected"))
				Expect(deliveries).To(BeNil())

				_ = client.Close()
			})
		})
	})

	Describe("Close", func() {
		Context("when never connected", func() {
			It("should return already closed error", func() {
				client := mq.New("test-queue", "amqp://invalid:5672", logger)

				err := client.Close()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("already closed"))
			})
		})
	})
})
