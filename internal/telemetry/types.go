// Package telemetry implements the polyglot fan-out and aggregation core:
// recording a reading into the cache, column, and time-series stores,
// maintaining running temperature statistics, answering bucketed window
// queries, and reassembling full sensor records from store fragments.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the core. Store adapters map their driver
// errors onto these so callers never see driver types.
var (
	// ErrNotFound signals that a sensor or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument signals a rejected request before any store access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyExists signals a sensor name collision on creation.
	ErrAlreadyExists = errors.New("already exists")
)

// Reading is a single telemetry sample. Every measurement field is optional;
// absent fields stay NULL all the way down to the stores.
type Reading struct {
	Velocity     *float64   `json:"velocity"`
	Temperature  *float64   `json:"temperature"`
	Humidity     *float64   `json:"humidity"`
	BatteryLevel *float64   `json:"battery_level"`
	LastSeen     *time.Time `json:"last_seen"`
}

// SensorIdentity is the relational fragment of a sensor: the authoritative
// id and unique name.
type SensorIdentity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SensorAttributes is the document-store fragment of a sensor, keyed by
// SensorID as a weak back-reference to the identity row.
type SensorAttributes struct {
	SensorID        int64
	Type            string
	MACAddress      string
	Manufacturer    string
	Model           string
	SerieNumber     string
	FirmwareVersion string
	Description     string
	Longitude       float64
	Latitude        float64
}

// SensorRecord is the full logical sensor, joined from the relational,
// document, and (optionally) cache fragments. Identity fields win over
// attribute fields; the latest reading, when overlaid, wins over both.
type SensorRecord struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	MACAddress      string  `json:"mac_address"`
	Manufacturer    string  `json:"manufacturer"`
	Model           string  `json:"model"`
	SerieNumber     string  `json:"serie_number"`
	FirmwareVersion string  `json:"firmware_version"`
	Description     string  `json:"description"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`

	Reading
}

// CreateSensor carries the fields of a sensor creation request.
type CreateSensor struct {
	Name            string  `json:"name"`
	Longitude       float64 `json:"longitude"`
	Latitude        float64 `json:"latitude"`
	Type            string  `json:"type"`
	MACAddress      string  `json:"mac_address"`
	Manufacturer    string  `json:"manufacturer"`
	Model           string  `json:"model"`
	SerieNumber     string  `json:"serie_number"`
	FirmwareVersion string  `json:"firmware_version"`
	Description     string  `json:"description"`
}

// TemperatureStats is the per-sensor running statistics row. Invariant:
// Avg = Total / Count, and Count never decreases.
type TemperatureStats struct {
	SensorID int64   `json:"sensor_id"`
	Max      float64 `json:"max_temperature"`
	Min      float64 `json:"min_temperature"`
	Avg      float64 `json:"avg_temperature"`
	Total    float64 `json:"total_temperature"`
	Count    int64   `json:"temperature_count"`
}

// LowBatteryRecord is one appended low-battery fact. A sensor accumulates
// one row per battery-bearing reading; the newest is authoritative.
type LowBatteryRecord struct {
	SensorID     int64
	BatteryLevel float64
	LastUpdate   *time.Time
}

// BucketAverages holds the averaged measurements of one time bucket.
// Fields are nil when every contributing sample was NULL.
type BucketAverages struct {
	AvgVelocity     *float64 `json:"avg_velocity"`
	AvgTemperature  *float64 `json:"avg_temperature"`
	AvgHumidity     *float64 `json:"avg_humidity"`
	AvgBatteryLevel *float64 `json:"avg_battery_level"`
}

// SearchDocument is the search-index fragment of a sensor, written once at
// creation time.
type SearchDocument struct {
	SensorID    int64  `json:"id_sensor"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SearchMode selects the query shape used against the search index.
type SearchMode string

const (
	// SearchMatch is a free-text query across name, description, and type.
	SearchMatch SearchMode = "match"
	// SearchPrefix is an exact prefix match on the untokenized field.
	SearchPrefix SearchMode = "prefix"
	// SearchSimilar is a fuzzy match with automatic edit-distance tolerance.
	SearchSimilar SearchMode = "similar"
)

// SearchQuery is a validated candidate-generation query. The index returns
// sensor ids only; hydration happens in the core.
type SearchQuery struct {
	Field string
	Value string
	Size  int
	Mode  SearchMode
}

// LatestReadingKey is the cache key holding the JSON-encoded latest reading
// for a sensor.
func LatestReadingKey(sensorID int64) string {
	return fmt.Sprintf("sensor:%d:data", sensorID)
}
