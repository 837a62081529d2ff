package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// LowBatteryThreshold is the battery level at or below which a sensor is
// reported by the low-battery listing.
const LowBatteryThreshold = 0.2

// DefaultSearchSize bounds search results when the caller gives no size.
const DefaultSearchSize = 10

// LowBatterySensor is a sensor record paired with its reported battery
// level, rounded to two decimals.
type LowBatterySensor struct {
	SensorRecord
	BatteryLevel float64 `json:"battery_level"`
}

// TemperatureRange is the statistics triple attached to a sensor in the
// temperature values listing.
type TemperatureRange struct {
	Max float64 `json:"max_temperature"`
	Min float64 `json:"min_temperature"`
	Avg float64 `json:"average_temperature"`
}

// TemperatureSummary is a sensor record with its temperature statistics.
type TemperatureSummary struct {
	SensorRecord
	Values []TemperatureRange `json:"values"`
}

// FindNear returns the sensors whose location lies within radiusMeters of
// the given point, nearest first (store-native ordering). Each candidate is
// hydrated with its latest reading; candidates that no longer assemble are
// dropped silently. No match yields an empty slice, not an error.
func (s *Service) FindNear(ctx context.Context, longitude, latitude float64, radiusMeters int) ([]SensorRecord, error) {
	candidates, err := s.documents.FindNear(ctx, longitude, latitude, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("proximity query failed: %w", err)
	}

	records := make([]SensorRecord, 0, len(candidates))
	for _, candidate := range candidates {
		record, err := s.assembler.Assemble(ctx, candidate.SensorID, true)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// Search runs a text query in one of the three modes and hydrates every
// hit through the assembler. The index only generates candidates; hits that
// no longer assemble are dropped. An invalid mode fails before querying.
func (s *Service) Search(ctx context.Context, field, value string, size int, mode SearchMode) ([]SensorRecord, error) {
	switch mode {
	case SearchMatch, SearchPrefix, SearchSimilar:
	default:
		return nil, fmt.Errorf("%w: search mode %q (allowed: match, prefix, similar)", ErrInvalidArgument, mode)
	}

	if field == "" {
		return nil, fmt.Errorf("%w: search field cannot be empty", ErrInvalidArgument)
	}

	if size <= 0 {
		size = DefaultSearchSize
	}

	ids, err := s.search.Search(ctx, SearchQuery{
		Field: field,
		Value: value,
		Size:  size,
		Mode:  mode,
	})
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	records := make([]SensorRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.assembler.Assemble(ctx, id, false)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// LowBattery lists the sensors whose newest low-battery rows report a level
// at or below the threshold. A failed scan or a sensor that no longer
// assembles degrades to an empty or shorter listing rather than an error:
// this path favors availability over correctness visibility.
func (s *Service) LowBattery(ctx context.Context) ([]LowBatterySensor, error) {
	rows, err := s.columns.ListLowBattery(ctx, LowBatteryThreshold)
	if err != nil {
		s.logger.Error("low battery scan failed", "error", err)
		return []LowBatterySensor{}, nil
	}

	sensors := make([]LowBatterySensor, 0, len(rows))
	for _, row := range rows {
		record, err := s.assembler.Assemble(ctx, row.SensorID, false)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.Warn("low battery hydration failed",
					"sensor_id", row.SensorID,
					"error", err,
				)
			}
			continue
		}
		sensors = append(sensors, LowBatterySensor{
			SensorRecord: record,
			BatteryLevel: math.Round(row.BatteryLevel*100) / 100,
		})
	}

	return sensors, nil
}

// TemperatureValues lists every sensor's running temperature statistics,
// hydrated to full records. Same availability bias as LowBattery.
func (s *Service) TemperatureValues(ctx context.Context) ([]TemperatureSummary, error) {
	rows, err := s.columns.ListTemperatureStats(ctx)
	if err != nil {
		s.logger.Error("temperature statistics scan failed", "error", err)
		return []TemperatureSummary{}, nil
	}

	summaries := make([]TemperatureSummary, 0, len(rows))
	for _, row := range rows {
		record, err := s.assembler.Assemble(ctx, row.SensorID, false)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.logger.Warn("temperature values hydration failed",
					"sensor_id", row.SensorID,
					"error", err,
				)
			}
			continue
		}
		summaries = append(summaries, TemperatureSummary{
			SensorRecord: record,
			Values: []TemperatureRange{{
				Max: row.Max,
				Min: row.Min,
				Avg: row.Avg,
			}},
		})
	}

	return summaries, nil
}

// CountByType reads the per-type creation counter verbatim. The counter is
// never decremented on delete. A failed scan yields an empty map.
func (s *Service) CountByType(ctx context.Context) (map[string]int64, error) {
	counts, err := s.columns.TypeCounts(ctx)
	if err != nil {
		s.logger.Error("type counter scan failed", "error", err)
		return map[string]int64{}, nil
	}
	return counts, nil
}
