// Package wire defines the JSON message formats carried over the queue.
package wire

import "time"

// ReadingEnvelope is one telemetry reading addressed to a sensor. The
// measurement fields mirror the reading stored in the cache: all optional,
// absent fields travel as null.
type ReadingEnvelope struct {
	SensorID     int64      `json:"sensor_id"`
	Velocity     *float64   `json:"velocity"`
	Temperature  *float64   `json:"temperature"`
	Humidity     *float64   `json:"humidity"`
	BatteryLevel *float64   `json:"battery_level"`
	LastSeen     *time.Time `json:"last_seen"`
}
