package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// aggregatorStripes is the number of lock stripes guarding the per-sensor
// read-modify-write. Two sensors may share a stripe; that only costs a
// little contention, never correctness.
const aggregatorStripes = 64

// Aggregator maintains the per-sensor running temperature statistics row.
// The row is read, folded, and fully rewritten on every update. A striped
// per-sensor lock serializes in-process writers; concurrent processes can
// still race the row, which the design accepts.
type Aggregator struct {
	columns ColumnStore
	locks   [aggregatorStripes]sync.Mutex
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(columns ColumnStore) (*Aggregator, error) {
	if columns == nil {
		return nil, errors.New("column store cannot be nil")
	}
	return &Aggregator{columns: columns}, nil
}

// UpdateTemperature folds one temperature into the sensor's statistics row.
// A missing row initializes max, min, and avg to the temperature with count 1.
func (a *Aggregator) UpdateTemperature(ctx context.Context, sensorID int64, temperature float64) error {
	lock := &a.locks[uint64(sensorID)%aggregatorStripes]
	lock.Lock()
	defer lock.Unlock()

	next := TemperatureStats{
		SensorID: sensorID,
		Max:      temperature,
		Min:      temperature,
		Avg:      temperature,
		Total:    temperature,
		Count:    1,
	}

	current, err := a.columns.TemperatureStats(ctx, sensorID)
	switch {
	case errors.Is(err, ErrNotFound):
		// First temperature for this sensor; keep the initial row.
	case err != nil:
		return fmt.Errorf("failed to read temperature statistics: %w", err)
	default:
		next.Max = max(current.Max, temperature)
		next.Min = min(current.Min, temperature)
		next.Count = current.Count + 1
		next.Total = current.Total + temperature
		next.Avg = next.Total / float64(next.Count)
	}

	if err := a.columns.PutTemperatureStats(ctx, next); err != nil {
		return fmt.Errorf("failed to write temperature statistics: %w", err)
	}

	return nil
}
