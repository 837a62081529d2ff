package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/polysense/internal/ingest"
	"procodus.dev/polysense/internal/store"
	"procodus.dev/polysense/pkg/metrics"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the queue ingest service",
	Long: `Run the ingest service that:
- Consumes reading envelopes from RabbitMQ
- Fans each reading out across Redis, TimescaleDB, and Cassandra
- Maintains running temperature statistics and low-battery records`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	// Ingest-specific flags
	ingestCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	ingestCmd.Flags().String("queue-name", "sensor-readings", "RabbitMQ queue name for readings")
	ingestCmd.Flags().Int("metrics-port", 9091, "HTTP port for /metrics and /health")
	registerStoreFlags(ingestCmd, "ingest")

	// Bind flags to viper
	_ = viper.BindPFlag("ingest.rabbitmq.url", ingestCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("ingest.rabbitmq.queue_name", ingestCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("ingest.metrics.port", ingestCmd.Flags().Lookup("metrics-port"))
}

func runIngest(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting ingest service")

	ctx := context.Background()

	stores, err := store.Open(ctx, storeConfig(logger, "ingest"))
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		return err
	}
	defer func() {
		if err := stores.Close(ctx); err != nil {
			logger.Error("failed to close stores", "error", err)
		}
	}()

	service, err := stores.Service(logger)
	if err != nil {
		logger.Error("failed to create service", "error", err)
		return err
	}
	service.Writer().SetMetrics(metrics.NewFanoutMetrics("polysense"))

	server, err := ingest.NewServer(&ingest.ServerConfig{
		Logger:      logger,
		Service:     service,
		RabbitMQURL: viper.GetString("ingest.rabbitmq.url"),
		QueueName:   viper.GetString("ingest.rabbitmq.queue_name"),
		MetricsPort: viper.GetInt("ingest.metrics.port"),
		Metrics:     metrics.NewIngestMetrics("polysense"),
	})
	if err != nil {
		logger.Error("failed to create ingest server", "error", err)
		return err
	}

	logger.Info("ingest server configuration",
		"rabbitmq_url", viper.GetString("ingest.rabbitmq.url"),
		"queue", viper.GetString("ingest.rabbitmq.queue_name"),
		"metrics_port", viper.GetInt("ingest.metrics.port"),
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("ingest server error", "error", err)
		return err
	}

	logger.Info("ingest server stopped")
	return nil
}
