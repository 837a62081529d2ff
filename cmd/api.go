package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/polysense/internal/api"
	"procodus.dev/polysense/internal/store"
	"procodus.dev/polysense/pkg/metrics"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server that:
- Manages sensors across PostgreSQL, MongoDB, and Elasticsearch
- Serves latest readings from Redis and statistics from Cassandra
- Answers bucketed window queries from TimescaleDB`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	// API-specific flags
	apiCmd.Flags().Int("http-port", 8080, "HTTP server port")
	registerStoreFlags(apiCmd, "api")

	// Bind flags to viper
	_ = viper.BindPFlag("api.http.port", apiCmd.Flags().Lookup("http-port"))
}

func runAPI(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting api service")

	ctx := context.Background()

	stores, err := store.Open(ctx, storeConfig(logger, "api"))
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

	server, err := api.NewServer(&api.ServerConfig{
		Logger:   logger,
		Service:  service,
		HTTPPort: viper.GetInt("api.http.port"),
	})
	if err != nil {
		logger.Error("failed to create api server", "error", err)
		return err
	}
	server.SetMetrics(metrics.NewAPIMetrics("polysense"))

	logger.Info("api server configuration",
		"http_port", viper.GetInt("api.http.port"),
		"db_host", viper.GetString("api.db.host"),
		"redis_addr", viper.GetString("api.redis.addr"),
		"mongo_uri", viper.GetString("api.mongo.uri"),
		"cassandra_hosts", viper.GetStringSlice("api.cassandra.hosts"),
		"elastic_addresses", viper.GetStringSlice("api.elastic.addresses"),
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("api server error", "error", err)
		return err
	}

	logger.Info("api server stopped")
	return nil
}
