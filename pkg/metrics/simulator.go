package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the fleet simulator.
type SimulatorMetrics struct {
	SensorsRegistered  prometheus.Counter
	ReadingsGenerated  prometheus.Counter
	GenerationFailures *prometheus.CounterVec
	ActiveSimulators   prometheus.Gauge
}

// NewSimulatorMetrics creates and registers simulator metrics.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		SensorsRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "sensors_registered_total",
				Help:      "Total number of synthetic sensors registered",
			},
		),
		ReadingsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_generated_total",
				Help:      "Total number of readings generated and published",
			},
		),
		GenerationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "generation_failures_total",
				Help:      "Total number of generation or publish failures",
			},
			[]string{"reason"}, // reason: register_error, marshal_error, push_error
		),
		ActiveSimulators: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "active_simulators",
				Help:      "Number of running per-sensor simulator loops",
			},
		),
	}

	MustRegister(
		m.SensorsRegistered,
		m.ReadingsGenerated,
		m.GenerationFailures,
		m.ActiveSimulators,
	)

	return m
}
