package telemetry

import (
	"context"
	"time"
)

// The core consumes each backing store through one of the capability
// interfaces below. Adapters own connections, authentication, and schema
// bootstrap; they map driver-level "no rows" conditions to ErrNotFound.

// RelationalStore holds sensor identity (id and unique name).
type RelationalStore interface {
	Insert(ctx context.Context, name string) (SensorIdentity, error)
	GetByID(ctx context.Context, id int64) (SensorIdentity, error)
	GetByName(ctx context.Context, name string) (SensorIdentity, error)
	List(ctx context.Context, offset, limit int) ([]SensorIdentity, error)
	Delete(ctx context.Context, id int64) error
}

// DocumentStore holds descriptive and geospatial attributes. FindNear
// returns candidates nearest-first in store-native order.
type DocumentStore interface {
	Insert(ctx context.Context, attrs SensorAttributes) error
	FindBySensor(ctx context.Context, sensorID int64) (SensorAttributes, error)
	FindNear(ctx context.Context, longitude, latitude float64, radiusMeters int) ([]SensorAttributes, error)
	DeleteBySensor(ctx context.Context, sensorID int64) error
}

// Cache holds one mutable latest-reading value per key, overwritten whole.
type Cache interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ColumnStore holds the append-only sample log, the per-sensor temperature
// statistics row, the low-battery log, and the per-type counter.
type ColumnStore interface {
	InsertSample(ctx context.Context, sensorID int64, r Reading) error

	TemperatureStats(ctx context.Context, sensorID int64) (TemperatureStats, error)
	PutTemperatureStats(ctx context.Context, stats TemperatureStats) error
	ListTemperatureStats(ctx context.Context) ([]TemperatureStats, error)

	InsertLowBattery(ctx context.Context, sensorID int64, level float64, at *time.Time) error
	ListLowBattery(ctx context.Context, threshold float64) ([]LowBatteryRecord, error)

	IncrementTypeCount(ctx context.Context, sensorType string) error
	TypeCounts(ctx context.Context) (map[string]int64, error)
}

// TimeseriesStore holds raw samples and the pre-aggregated bucket views.
type TimeseriesStore interface {
	InsertSample(ctx context.Context, sensorID int64, r Reading) error
	RefreshAggregate(ctx context.Context, view string) error
	QueryAggregate(ctx context.Context, view, bucketColumn string, sensorID int64, from, to time.Time) (map[time.Time]BucketAverages, error)
}

// SearchIndex generates sensor-id candidates from text queries. It is never
// an authoritative source; every hit is re-hydrated through the assembler.
type SearchIndex interface {
	IndexDocument(ctx context.Context, doc SearchDocument) error
	Search(ctx context.Context, q SearchQuery) ([]int64, error)
}
