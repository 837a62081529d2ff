package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/polysense/pkg/metrics"
)

// Writer fans one incoming reading out to the cache, time-series, and
// column stores, then triggers the statistics and low-battery side effects.
// There is no transaction across stores: every write is attempted
// independently and nothing is rolled back.
type Writer struct {
	logger     *slog.Logger
	cache      Cache
	timeseries TimeseriesStore
	columns    ColumnStore
	stats      *Aggregator
	metrics    *metrics.FanoutMetrics // Optional metrics
}

// WriterConfig holds the configuration for the Writer.
type WriterConfig struct {
	Logger     *slog.Logger
	Cache      Cache
	Timeseries TimeseriesStore
	Columns    ColumnStore
	Stats      *Aggregator
}

// NewWriter creates a new Writer instance.
func NewWriter(cfg *WriterConfig) (*Writer, error) {
	if cfg == nil {
		return nil, errors.New("writer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Cache == nil {
		return nil, errors.New("cache store cannot be nil")
	}

	if cfg.Timeseries == nil {
		return nil, errors.New("timeseries store cannot be nil")
	}

	if cfg.Columns == nil {
		return nil, errors.New("column store cannot be nil")
	}

	if cfg.Stats == nil {
		return nil, errors.New("statistics aggregator cannot be nil")
	}

	return &Writer{
		logger:     cfg.Logger,
		cache:      cfg.Cache,
		timeseries: cfg.Timeseries,
		columns:    cfg.Columns,
		stats:      cfg.Stats,
	}, nil
}

// SetMetrics sets the metrics collector for this writer.
func (w *Writer) SetMetrics(m *metrics.FanoutMetrics) {
	w.metrics = m
}

// Record writes one reading to the three primary stores and runs the
// conditional side effects. Primary failures are collected and returned
// joined; side-effect failures are logged and counted, never surfaced.
func (w *Writer) Record(ctx context.Context, sensorID int64, r Reading) error {
	var timer *prometheus.Timer
	if w.metrics != nil {
		timer = prometheus.NewTimer(w.metrics.RecordDuration)
		defer timer.ObserveDuration()
	}

	var errs []error

	payload, err := json.Marshal(r)
	if err != nil {
		// Reading is a plain value type; this only happens on NaN/Inf.
		errs = append(errs, fmt.Errorf("failed to encode reading: %w", err))
	} else if err := w.cache.Set(ctx, LatestReadingKey(sensorID), payload); err != nil {
		w.observeWrite("cache", err)
		errs = append(errs, fmt.Errorf("cache write failed: %w", err))
	} else {
		w.observeWrite("cache", nil)
	}

	if err := w.timeseries.InsertSample(ctx, sensorID, r); err != nil {
		w.observeWrite("timeseries", err)
		errs = append(errs, fmt.Errorf("timeseries sample write failed: %w", err))
	} else {
		w.observeWrite("timeseries", nil)
	}

	if err := w.columns.InsertSample(ctx, sensorID, r); err != nil {
		w.observeWrite("column", err)
		errs = append(errs, fmt.Errorf("column sample write failed: %w", err))
	} else {
		w.observeWrite("column", nil)
	}

	if r.Temperature != nil {
		if err := w.stats.UpdateTemperature(ctx, sensorID, *r.Temperature); err != nil {
			w.logger.Error("temperature statistics update failed",
				"sensor_id", sensorID,
				"error", err,
			)
			w.observeSideEffect("statistics")
		}
	}

	if r.BatteryLevel != nil {
		if err := w.columns.InsertLowBattery(ctx, sensorID, *r.BatteryLevel, r.LastSeen); err != nil {
			w.logger.Error("low battery record append failed",
				"sensor_id", sensorID,
				"error", err,
			)
			w.observeSideEffect("low_battery")
		}
	}

	return errors.Join(errs...)
}

func (w *Writer) observeWrite(store string, err error) {
	if w.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	w.metrics.StoreWrites.WithLabelValues(store, status).Inc()
}

func (w *Writer) observeSideEffect(effect string) {
	if w.metrics == nil {
		return
	}
	w.metrics.SideEffectFailures.WithLabelValues(effect).Inc()
}
