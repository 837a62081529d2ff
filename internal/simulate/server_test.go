package simulate_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/simulate"
	"procodus.dev/polysense/pkg/mq/mock"
	"procodus.dev/polysense/pkg/wire"
)

var _ = Describe("Simulator Server", func() {
	var (
		logger *slog.Logger
	)

	BeforeEach(func() {
		// Create a logger for tests
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError, // Only show errors in tests
		}))
	})

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create a server", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 5,
					Interval:    5 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
			})

			It("should create server with minimum sensor count", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 1,
					Interval:    1 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
			})

			It("should create server with small interval", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 2,
					Interval:    100 * time.Millisecond,
				}

				server, err := simulate.NewServer(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(server).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				server, err := simulate.NewServer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config"))
				Expect(server).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				config := &simulate.ServerConfig{
					Logger:      nil,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 5,
					Interval:    5 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(server).To(BeNil())
			})

			It("should return error when API URL is empty", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 5,
					Interval:    5 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("API URL"))
				Expect(server).To(BeNil())
			})

			It("should return error when sensor count is zero", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 0,
					Interval:    5 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("sensor count"))
				Expect(server).To(BeNil())
			})

			It("should return error when sensor count is negative", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: -1,
					Interval:    5 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("sensor count"))
				Expect(server).To(BeNil())
			})

			It("should return error when interval is zero", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 5,
					Interval:    0,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("interval"))
				Expect(server).To(BeNil())
			})

			It("should return error when interval is negative", func() {
				config := &simulate.ServerConfig{
					Logger:      logger,
					APIURL:      "http://localhost:8080",
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
					SensorCount: 5,
					Interval:    -1 * time.Second,
				}

				server, err := simulate.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("interval"))
				Expect(server).To(BeNil())
			})
		})
	})

	Describe("Run", func() {
		It("should register the fleet and publish readings until canceled", func() {
			var (
				mu         sync.Mutex
				registered int64
			)

			api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/sensors" {
					w.WriteHeader(http.StatusNotFound)
					return
				}

				mu.Lock()
				registered++
				id := registered
				mu.Unlock()

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
			}))
			defer api.Close()

			mqClient := mock.NewMockClient()

			server, err := simulate.NewServer(&simulate.ServerConfig{
				Logger:      logger,
				APIURL:      api.URL,
				QueueName:   "test-queue",
				SensorCount: 3,
				Interval:    50 * time.Millisecond,
				MQClient:    mqClient,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- server.Run(ctx)
			}()

			Eventually(done, 5*time.Second).Should(Receive(BeNil()))

			mu.Lock()
			Expect(registered).To(Equal(int64(3)))
			mu.Unlock()

			// Each of the three sensors ticks several times in 500ms.
			Expect(mqClient.PushCount()).To(BeNumerically(">", 0))
			Expect(mqClient.CloseCalls).To(Equal(1))

			// Published messages decode as reading envelopes for assigned ids.
			var envelope wire.ReadingEnvelope
			Expect(json.Unmarshal(mqClient.PushCalls[0].Data, &envelope)).To(Succeed())
			Expect(envelope.SensorID).To(BeNumerically(">=", 1))
			Expect(envelope.SensorID).To(BeNumerically("<=", 3))
		})

		It("should fail when no sensor can be registered", func() {
			api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer api.Close()

			server, err := simulate.NewServer(&simulate.ServerConfig{
				Logger:      logger,
				APIURL:      api.URL,
				QueueName:   "test-queue",
				SensorCount: 2,
				Interval:    time.Second,
				MQClient:    mock.NewMockClient(),
			})
			Expect(err).NotTo(HaveOccurred())

			err = server.Run(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to register fleet"))
		})
	})
})
