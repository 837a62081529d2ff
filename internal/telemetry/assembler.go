package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Assembler joins relational identity, document attributes, and the cached
// latest reading into one logical sensor record. Every read path bottoms
// out here.
type Assembler struct {
	logger     *slog.Logger
	relational RelationalStore
	documents  DocumentStore
	cache      Cache
}

// AssemblerConfig holds the configuration for the Assembler.
type AssemblerConfig struct {
	Logger     *slog.Logger
	Relational RelationalStore
	Documents  DocumentStore
	Cache      Cache
}

// NewAssembler creates a new Assembler instance.
func NewAssembler(cfg *AssemblerConfig) (*Assembler, error) {
	if cfg == nil {
		return nil, errors.New("assembler config cannot be nil")
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

	return &Assembler{
		logger:     cfg.Logger,
		relational: cfg.Relational,
		documents:  cfg.Documents,
		cache:      cfg.Cache,
	}, nil
}

// Assemble reconstructs the sensor record for id. A missing identity or a
// missing attributes document both surface as ErrNotFound: identity without
// attributes is treated as a missing sensor for read purposes. With
// withLatest set, the cached reading is decoded and overlaid last; a cache
// miss or undecodable entry leaves the reading fields unset.
func (a *Assembler) Assemble(ctx context.Context, sensorID int64, withLatest bool) (SensorRecord, error) {
	identity, err := a.relational.GetByID(ctx, sensorID)
	if err != nil {
		return SensorRecord{}, err
	}

	attrs, err := a.documents.FindBySensor(ctx, sensorID)
	if errors.Is(err, ErrNotFound) {
		return SensorRecord{}, fmt.Errorf("sensor %d has no attributes document: %w", sensorID, ErrNotFound)
	}
	if err != nil {
		return SensorRecord{}, fmt.Errorf("failed to load attributes for sensor %d: %w", sensorID, err)
	}

	record := SensorRecord{
		ID:              identity.ID,
		Name:            identity.Name,
		Type:            attrs.Type,
		MACAddress:      attrs.MACAddress,
		Manufacturer:    attrs.Manufacturer,
		Model:           attrs.Model,
		SerieNumber:     attrs.SerieNumber,
		FirmwareVersion: attrs.FirmwareVersion,
		Description:     attrs.Description,
		Latitude:        attrs.Latitude,
		Longitude:       attrs.Longitude,
	}

	if withLatest {
		a.overlayLatest(ctx, &record)
	}

	return record, nil
}

// overlayLatest merges the cached latest reading into record. Losing the
// overlay is tolerable; losing the record is not, so failures here only log.
func (a *Assembler) overlayLatest(ctx context.Context, record *SensorRecord) {
	payload, err := a.cache.Get(ctx, LatestReadingKey(record.ID))
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Warn("latest reading lookup failed",
			"sensor_id", record.ID,
			"error", err,
		)
		return
	}

	var reading Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		a.logger.Warn("latest reading entry is not decodable",
			"sensor_id", record.ID,
			"error", err,
		)
		return
	}

	record.Reading = reading
}
