package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FanoutMetrics contains Prometheus metrics for the telemetry fan-out core.
type FanoutMetrics struct {
	StoreWrites        *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	RecordDuration     prometheus.Histogram
}

// NewFanoutMetrics creates and registers fan-out writer metrics.
func NewFanoutMetrics(namespace string) *FanoutMetrics {
	m := &FanoutMetrics{
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "store_writes_total",
				Help:      "Per-store write attempts of the reading fan-out",
			},
			[]string{"store", "status"}, // store: cache, timeseries, column
		),
		SideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "side_effect_failures_total",
				Help:      "Swallowed failures of the statistics and low-battery side effects",
			},
			[]string{"effect"},
		),
		RecordDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "record_duration_seconds",
				Help:      "End-to-end duration of one reading fan-out",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	MustRegister(
		m.StoreWrites,
		m.SideEffectFailures,
		m.RecordDuration,
	)

	return m
}
