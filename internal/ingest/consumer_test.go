package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/polysense/internal/ingest"
	"procodus.dev/polysense/internal/telemetry"
	"procodus.dev/polysense/internal/telemetry/telemetrytest"
	"procodus.dev/polysense/pkg/mq/mock"
	"procodus.dev/polysense/pkg/wire"
)

// fakeAcknowledger records ack and nack outcomes for injected deliveries.
type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return f.Nack(0, false, requeue)
}

func (f *fakeAcknowledger) ackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks
}

func (f *fakeAcknowledger) nackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nacks
}

var _ = Describe("Consumer", func() {
	var (
		logger  *slog.Logger
		service *telemetry.Service
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		service = newTestService(logger)
	})

	Describe("NewConsumer", func() {
		Context("with valid configuration", func() {
			It("should create a consumer", func() {
				consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
					Logger:      logger,
					Service:     service,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(consumer).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				consumer, err := ingest.NewConsumer(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
					Logger:      nil,
					Service:     service,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when service is nil", func() {
				consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
					Logger:      logger,
					Service:     nil,
					RabbitMQURL: "amqp://localhost:5672",
					QueueName:   "test-queue",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("service"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when rabbitmq URL is empty", func() {
				consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
					Logger:    logger,
					Service:   service,
					QueueName: "test-queue",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("rabbitmq URL"))
				Expect(consumer).To(BeNil())
			})

			It("should return error when queue name is empty", func() {
				consumer, err := ingest.NewConsumer(&ingest.ConsumerConfig{
					Logger:      logger,
					Service:     service,
					RabbitMQURL: "amqp://localhost:5672",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("queue name"))
				Expect(consumer).To(BeNil())
			})
		})
	})

	Describe("message handling", func() {
		var (
			cache      *telemetrytest.CacheFake
			columns    *telemetrytest.ColumnFake
			timeseries *telemetrytest.TimeseriesFake
			deliveries chan amqp.Delivery
			mqClient   *mock.MockClient
			consumer   *ingest.Consumer
			acker      *fakeAcknowledger
			sensorID   int64
			cancel     context.CancelFunc
		)

		BeforeEach(func() {
			cache = telemetrytest.NewCacheFake()
			columns = telemetrytest.NewColumnFake()
			timeseries = telemetrytest.NewTimeseriesFake()

			svc, err := telemetry.NewService(&telemetry.ServiceConfig{
				Logger:     logger,
				Relational: telemetrytest.NewRelationalFake(),
				Documents:  telemetrytest.NewDocumentFake(),
				Cache:      cache,
				Columns:    columns,
				Timeseries: timeseries,
				Search:     telemetrytest.NewSearchFake(),
			})
			Expect(err).NotTo(HaveOccurred())

			record, err := svc.Create(context.Background(), telemetry.CreateSensor{
				Name: "ingest-sensor",
				Type: "weather",
			})
			Expect(err).NotTo(HaveOccurred())
			sensorID = record.ID

			deliveries = make(chan amqp.Delivery, 1)
			mqClient = mock.NewMockClient()
			mqClient.ConsumeChannel = deliveries

			consumer, err = ingest.NewConsumer(&ingest.ConsumerConfig{
				Logger:    logger,
				Service:   svc,
				QueueName: "test-queue",
				MQClient:  mqClient,
			})
			Expect(err).NotTo(HaveOccurred())

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			Expect(consumer.Start(ctx)).To(Succeed())

			acker = &fakeAcknowledger{}
		})

		AfterEach(func() {
			cancel()
			Expect(consumer.Stop()).To(Succeed())
		})

		deliver := func(body []byte) {
			deliveries <- amqp.Delivery{
				Acknowledger: acker,
				DeliveryTag:  1,
				Body:         body,
			}
		}

		envelope := func(id int64) []byte {
			temperature := 21.5
			payload, err := json.Marshal(wire.ReadingEnvelope{
				SensorID:    id,
				Temperature: &temperature,
			})
			Expect(err).NotTo(HaveOccurred())
			return payload
		}

		It("should record and ack a valid reading", func() {
			deliver(envelope(sensorID))

			Eventually(acker.ackCount, 5*time.Second).Should(Equal(1))
			Expect(cache.Len()).To(Equal(1))
			Expect(acker.nackCount()).To(BeZero())
		})

		It("should ack and drop an undecodable envelope", func() {
			deliver([]byte("not json"))

			Eventually(acker.ackCount, 5*time.Second).Should(Equal(1))
			Expect(cache.Len()).To(BeZero())
		})

		It("should ack and drop a reading for an unknown sensor", func() {
			deliver(envelope(sensorID + 1000))

			Eventually(acker.ackCount, 5*time.Second).Should(Equal(1))
			Expect(cache.Len()).To(BeZero())
		})

		It("should nack with requeue when the stores fail", func() {
			columns.ErrSample = errors.New("cassandra down")
			timeseries.ErrSample = errors.New("timescale down")
			cache.ErrNext = errors.New("redis down")

			deliver(envelope(sensorID))

			Eventually(acker.nackCount, 5*time.Second).Should(Equal(1))
			acker.mu.Lock()
			requeued := acker.requeued
			acker.mu.Unlock()
			Expect(requeued).To(BeTrue())
			Expect(acker.ackCount()).To(BeZero())
		})
	})
})
