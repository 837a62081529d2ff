package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/polysense/internal/simulate"
	"procodus.dev/polysense/pkg/metrics"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the fleet simulator",
	Long: `Run the fleet simulator that:
- Registers a synthetic sensor fleet through the HTTP API
- Generates correlated telemetry signals per sensor
- Publishes reading envelopes to RabbitMQ`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	// Simulator-specific flags
	simulateCmd.Flags().String("api-url", "http://localhost:8080", "Base URL of the sensor HTTP API")
	simulateCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	simulateCmd.Flags().String("queue-name", "sensor-readings", "RabbitMQ queue name for readings")
	simulateCmd.Flags().Int("sensor-count", 5, "Number of synthetic sensors to register")
	simulateCmd.Flags().Duration("interval", 5*time.Second, "Interval between readings per sensor")

	// Bind flags to viper
	_ = viper.BindPFlag("simulate.api_url", simulateCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("simulate.rabbitmq.url", simulateCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("simulate.rabbitmq.queue_name", simulateCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("simulate.sensor_count", simulateCmd.Flags().Lookup("sensor-count"))
	_ = viper.BindPFlag("simulate.interval", simulateCmd.Flags().Lookup("interval"))
}

func runSimulate(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting simulator service")

	config := &simulate.ServerConfig{
		Logger:      logger,
		APIURL:      viper.GetString("simulate.api_url"),
		RabbitMQURL: viper.GetString("simulate.rabbitmq.url"),
		QueueName:   viper.GetString("simulate.rabbitmq.queue_name"),
		SensorCount: viper.GetInt("simulate.sensor_count"),
		Interval:    viper.GetDuration("simulate.interval"),
		Metrics:     metrics.NewSimulatorMetrics("polysense"),
		MQMetrics:   metrics.NewMQMetrics("polysense"),
	}

	server, err := simulate.NewServer(config)
	if err != nil {
		logger.Error("failed to create simulator server", "error", err)
		return err
	}

	logger.Info("simulator server configuration",
		"api_url", config.APIURL,
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
		"sensor_count", config.SensorCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		logger.Error("simulator server error", "error", err)
		return err
	}

	logger.Info("simulator server stopped")
	return nil
}
