// Package store opens and closes the five persistence backends and the
// search index as one unit, so the api and ingest services share the same
// bootstrap sequence.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"procodus.dev/polysense/internal/store/cassandra"
	"procodus.dev/polysense/internal/store/mongodoc"
	"procodus.dev/polysense/internal/store/postgres"
	"procodus.dev/polysense/internal/store/rediscache"
	"procodus.dev/polysense/internal/store/search"
	"procodus.dev/polysense/internal/store/timescale"
	"procodus.dev/polysense/internal/telemetry"
)

// Config holds the connection settings for every backend.
type Config struct {
	Logger *slog.Logger

	// PostgreSQL (sensor identity)
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (latest reading cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MongoDB (sensor attributes and location)
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Cassandra (statistics, counters, low battery)
	CassandraHosts []string

	// TimescaleDB (raw samples and aggregates)
	TimescaleURL string

	// Elasticsearch (search index)
	ElasticAddresses []string
	ElasticIndex     string
}

// Stores bundles the opened adapters.
type Stores struct {
	logger     *slog.Logger
	Relational *postgres.Store
	Cache      *rediscache.Store
	Documents  *mongodoc.Store
	Columns    *cassandra.Store
	Timeseries *timescale.Store
	Search     *search.Store
}

// Open connects to every backend in turn. On any failure the already-opened
// backends are closed before the error is returned.
func Open(ctx context.Context, cfg *Config) (*Stores, error) {
	if cfg == nil {
		return nil, errors.New("store config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	s := &Stores{logger: cfg.Logger}

	relational, err := postgres.New(&postgres.Config{
		Logger:   cfg.Logger,
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	s.Relational = relational

	cache, err := rediscache.New(&rediscache.Config{
		Logger:   cfg.Logger,
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to open redis: %w", err)
	}
	s.Cache = cache

	documents, err := mongodoc.New(ctx, &mongodoc.Config{
		Logger:     cfg.Logger,
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to open mongodb: %w", err)
	}
	s.Documents = documents

	columns, err := cassandra.New(&cassandra.Config{
		Logger: cfg.Logger,
		Hosts:  cfg.CassandraHosts,
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to open cassandra: %w", err)
	}
	s.Columns = columns

	timeseries, err := timescale.New(ctx, &timescale.Config{
		Logger: cfg.Logger,
		URL:    cfg.TimescaleURL,
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to open timescale: %w", err)
	}
	s.Timeseries = timeseries

	index, err := search.New(ctx, &search.Config{
		Logger:    cfg.Logger,
		Addresses: cfg.ElasticAddresses,
		Index:     cfg.ElasticIndex,
	})
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to open elasticsearch: %w", err)
	}
	s.Search = index

	cfg.Logger.Info("all stores opened")

	return s, nil
}

// Service wires the opened adapters into a telemetry service.
func (s *Stores) Service(logger *slog.Logger) (*telemetry.Service, error) {
	return telemetry.NewService(&telemetry.ServiceConfig{
		Logger:     logger,
		Relational: s.Relational,
		Documents:  s.Documents,
		Cache:      s.Cache,
		Columns:    s.Columns,
		Timeseries: s.Timeseries,
		Search:     s.Search,
	})
}

// Close shuts down every opened backend and joins the failures.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error

	if s.Timeseries != nil {
		s.Timeseries.Close()
	}

	if s.Columns != nil {
		s.Columns.Close()
	}

	if s.Documents != nil {
		if err := s.Documents.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb close error: %w", err))
		}
	}

	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if s.Relational != nil {
		if err := s.Relational.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if len(errs) == 0 {
		s.logger.Info("all stores closed")
	}

	return errors.Join(errs...)
}
