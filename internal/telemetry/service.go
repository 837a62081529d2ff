package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultListLimit bounds identity listings when the caller gives no limit.
const DefaultListLimit = 100

// Service is the entry point for every sensor operation. It owns the
// lifecycle fan-out (create/delete span five stores without a transaction)
// and delegates readings, window queries, and joins to the core components.
type Service struct {
	logger     *slog.Logger
	relational RelationalStore
	documents  DocumentStore
	cache      Cache
	columns    ColumnStore
	search     SearchIndex
	writer     *Writer
	windows    *Windows
	assembler  *Assembler
}

// ServiceConfig holds the configuration for the Service.
type ServiceConfig struct {
	Logger     *slog.Logger
	Relational RelationalStore
	Documents  DocumentStore
	Cache      Cache
	Columns    ColumnStore
	Timeseries TimeseriesStore
	Search     SearchIndex
}

// NewService creates a new Service instance and wires the core components.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("service config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Relational == nil {
		return nil, errors.New("relational store cannot be nil")
	}

	if cfg.Documents == nil {
		return nil, errors.New("document store cannot be nil")
	}

	if cfg.Cache == nil {
		return nil, errors.New("cache store cannot be nil")
	}

	if cfg.Columns == nil {
		return nil, errors.New("column store cannot be nil")
	}

	if cfg.Timeseries == nil {
		return nil, errors.New("timeseries store cannot be nil")
	}

	if cfg.Search == nil {
		return nil, errors.New("search index cannot be nil")
	}

	stats, err := NewAggregator(cfg.Columns)
	if err != nil {
		return nil, err
	}

	writer, err := NewWriter(&WriterConfig{
		Logger:     cfg.Logger,
		Cache:      cfg.Cache,
		Timeseries: cfg.Timeseries,
		Columns:    cfg.Columns,
		Stats:      stats,
	})
	if err != nil {
		return nil, err
	}

	windows, err := NewWindows(&WindowsConfig{
		Logger:     cfg.Logger,
		Timeseries: cfg.Timeseries,
	})
	if err != nil {
		return nil, err
	}

	assembler, err := NewAssembler(&AssemblerConfig{
		Logger:     cfg.Logger,
		Relational: cfg.Relational,
		Documents:  cfg.Documents,
		Cache:      cfg.Cache,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:     cfg.Logger,
		relational: cfg.Relational,
		documents:  cfg.Documents,
		cache:      cfg.Cache,
		columns:    cfg.Columns,
		search:     cfg.Search,
		writer:     writer,
		windows:    windows,
		assembler:  assembler,
	}, nil
}

// Writer exposes the fan-out writer, e.g. for metrics injection.
func (s *Service) Writer() *Writer {
	return s.writer
}

// Create registers a new sensor across the relational, document, search,
// and counter stores. The name uniqueness check is a pre-check, not an
// atomic guarantee. Identity, attributes, and index failures propagate;
// the type counter is derived state and only logs.
func (s *Service) Create(ctx context.Context, in CreateSensor) (SensorRecord, error) {
	if in.Name == "" {
		return SensorRecord{}, fmt.Errorf("%w: sensor name cannot be empty", ErrInvalidArgument)
	}

	if _, err := s.relational.GetByName(ctx, in.Name); err == nil {
		return SensorRecord{}, fmt.Errorf("sensor %q: %w", in.Name, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return SensorRecord{}, fmt.Errorf("failed to check sensor name: %w", err)
	}

	identity, err := s.relational.Insert(ctx, in.Name)
	if err != nil {
		return SensorRecord{}, fmt.Errorf("failed to create sensor identity: %w", err)
	}

	attrs := SensorAttributes{
		SensorID:        identity.ID,
		Type:            in.Type,
		MACAddress:      in.MACAddress,
		Manufacturer:    in.Manufacturer,
		Model:           in.Model,
		SerieNumber:     in.SerieNumber,
		FirmwareVersion: in.FirmwareVersion,
		Description:     in.Description,
		Longitude:       in.Longitude,
		Latitude:        in.Latitude,
	}

	if err := s.documents.Insert(ctx, attrs); err != nil {
		return SensorRecord{}, fmt.Errorf("failed to store sensor attributes: %w", err)
	}

	if err := s.search.IndexDocument(ctx, SearchDocument{
		SensorID:    identity.ID,
		Name:        identity.Name,
		Type:        in.Type,
		Description: in.Description,
	}); err != nil {
		return SensorRecord{}, fmt.Errorf("failed to index sensor: %w", err)
	}

	if err := s.columns.IncrementTypeCount(ctx, in.Type); err != nil {
		s.logger.Error("type counter increment failed",
			"sensor_id", identity.ID,
			"type", in.Type,
			"error", err,
		)
	}

	s.logger.Info("sensor created",
		"sensor_id", identity.ID,
		"name", identity.Name,
		"type", in.Type,
	)

	return SensorRecord{
		ID:              identity.ID,
		Name:            identity.Name,
		Type:            in.Type,
		MACAddress:      in.MACAddress,
		Manufacturer:    in.Manufacturer,
		Model:           in.Model,
		SerieNumber:     in.SerieNumber,
		FirmwareVersion: in.FirmwareVersion,
		Description:     in.Description,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
	}, nil
}

// Get returns the assembled sensor record without the latest reading.
func (s *Service) Get(ctx context.Context, sensorID int64) (SensorRecord, error) {
	return s.assembler.Assemble(ctx, sensorID, false)
}

// GetData returns the assembled record with the latest reading overlaid.
func (s *Service) GetData(ctx context.Context, sensorID int64) (SensorRecord, error) {
	return s.assembler.Assemble(ctx, sensorID, true)
}

// List returns sensor identities from the relational store.
func (s *Service) List(ctx context.Context, offset, limit int) ([]SensorIdentity, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.relational.List(ctx, offset, limit)
}

// Record validates the sensor's existence and fans the reading out.
func (s *Service) Record(ctx context.Context, sensorID int64, r Reading) error {
	if _, err := s.relational.GetByID(ctx, sensorID); err != nil {
		return err
	}
	return s.writer.Record(ctx, sensorID, r)
}

// QueryWindow validates the sensor's existence and runs a bucketed query.
func (s *Service) QueryWindow(ctx context.Context, sensorID int64, from, to time.Time, bucket string) (map[time.Time]BucketAverages, error) {
	if _, err := s.relational.GetByID(ctx, sensorID); err != nil {
		return nil, err
	}
	return s.windows.Query(ctx, sensorID, from, to, bucket)
}

// Delete removes the sensor's identity, attributes, and cached reading.
// Historical samples, statistics, the type counter contribution, and the
// search document stay behind. The three removals are attempted
// independently and their failures joined.
func (s *Service) Delete(ctx context.Context, sensorID int64) error {
	if _, err := s.relational.GetByID(ctx, sensorID); err != nil {
		return err
	}

	var errs []error

	if err := s.cache.Delete(ctx, LatestReadingKey(sensorID)); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("failed to delete cached reading: %w", err))
	}

	if err := s.documents.DeleteBySensor(ctx, sensorID); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("failed to delete attributes document: %w", err))
	}

	if err := s.relational.Delete(ctx, sensorID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete sensor identity: %w", err))
	}

	if len(errs) == 0 {
		s.logger.Info("sensor deleted", "sensor_id", sensorID)
	}

	return errors.Join(errs...)
}
