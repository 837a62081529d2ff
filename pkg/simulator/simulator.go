// Package simulator generates a synthetic sensor fleet and plausible
// telemetry signals for it.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"procodus.dev/polysense/pkg/wire"
)

// Sensor is a synthetic sensor definition used to register a fleet. The
// JSON keys match the creation endpoint's request body.
type Sensor struct {
	Name            string  `json:"name"             fake:"{adjective}-{noun}-###"`
	Type            string  `json:"type"             fake:"{randomstring:[temperature,humidity,multi,weather]}"`
	MACAddress      string  `json:"mac_address"      fake:"{macaddress}"`
	Manufacturer    string  `json:"manufacturer"     fake:"{company}"`
	Model           string  `json:"model"            fake:"{appname}"`
	SerieNumber     string  `json:"serie_number"     fake:"{uuid}"`
	FirmwareVersion string  `json:"firmware_version" fake:"{appversion}"`
	Description     string  `json:"description"      fake:"{sentence:8}"`
	Latitude        float64 `json:"latitude"         fake:"{latitude}"`
	Longitude       float64 `json:"longitude"        fake:"{longitude}"`
}

// NewSensor produces one synthetic sensor definition.
func NewSensor() *Sensor {
	var s Sensor
	if err := gofakeit.Struct(&s); err != nil {
		return nil
	}
	return &s
}

// SignalGenerator produces a reading stream for one sensor with a daily
// temperature cycle, inversely correlated humidity, and a slowly draining
// battery. Uses math/rand: weak randomness is fine for simulation data.
type SignalGenerator struct {
	sensorID         int64
	baselineTemp     float64
	baselineHumidity float64
	baselineVelocity float64
	noise            float64
	battery          float64
}

// NewSignalGenerator creates a generator for the given sensor id.
func NewSignalGenerator(sensorID int64) *SignalGenerator {
	return &SignalGenerator{
		sensorID:         sensorID,
		baselineTemp:     20.0 + rand.Float64()*10,  // 20-30°C
		baselineHumidity: 50.0 + rand.Float64()*20,  // 50-70%
		baselineVelocity: 2.0 + rand.Float64()*6,    // 2-8 m/s
		noise:            rand.Float64() * 2,
		battery:          0.6 + rand.Float64()*0.4, // 60-100%
	}
}

// Next produces the reading for time t. Each measurement is occasionally
// omitted so downstream NULL handling stays exercised.
func (g *SignalGenerator) Next(t time.Time) wire.ReadingEnvelope {
	hour := float64(t.Hour())

	// Daily cycle with its peak in the early afternoon.
	dailyCycle := 5 * math.Sin((hour-6)*math.Pi/12)
	temp := g.baselineTemp + dailyCycle + (rand.Float64()-0.5)*g.noise

	// Humidity runs inverse to temperature.
	humidity := g.baselineHumidity - 3*math.Sin((hour-6)*math.Pi/12) - (temp-g.baselineTemp)*1.5
	humidity = math.Max(0, math.Min(100, humidity))

	velocity := math.Max(0, g.baselineVelocity+(rand.Float64()-0.5)*g.noise*2)

	// Batteries drain slowly and jitter slightly.
	g.battery = math.Max(0, g.battery-0.0005-rand.Float64()*0.0005)

	env := wire.ReadingEnvelope{
		SensorID: g.sensorID,
		LastSeen: &t,
	}
	if rand.Float64() > 0.05 {
		env.Temperature = &temp
	}
	if rand.Float64() > 0.1 {
		env.Humidity = &humidity
	}
	if rand.Float64() > 0.3 {
		env.Velocity = &velocity
	}
	if rand.Float64() > 0.2 {
		battery := g.battery
		env.BatteryLevel = &battery
	}
	return env
}
