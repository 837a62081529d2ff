package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBucket is used when a window query names no bucket.
const DefaultBucket = "hour"

// bucketViews maps each bucket granularity to its pre-aggregated
// materialized view. The view's bucket column carries the bucket name.
var bucketViews = map[string]string{
	"hour":  "sensor_data_hourly",
	"day":   "sensor_data_daily",
	"week":  "sensor_data_weekly",
	"month": "sensor_data_monthly",
	"year":  "sensor_data_yearly",
}

// Windows answers time-windowed queries against the pre-aggregated bucket
// views, forcing a refresh before each read because the views may be stale.
type Windows struct {
	logger     *slog.Logger
	timeseries TimeseriesStore
}

// WindowsConfig holds the configuration for the Windows query engine.
type WindowsConfig struct {
	Logger     *slog.Logger
	Timeseries TimeseriesStore
}

// NewWindows creates a new Windows instance.
func NewWindows(cfg *WindowsConfig) (*Windows, error) {
	if cfg == nil {
		return nil, errors.New("windows config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Timeseries == nil {
		return nil, errors.New("timeseries store cannot be nil")
	}

	return &Windows{
		logger:     cfg.Logger,
		timeseries: cfg.Timeseries,
	}, nil
}

// Query returns the per-bucket averages for a sensor over [from, to].
// An empty bucket defaults to hour; an unknown bucket fails with
// ErrInvalidArgument before any store access. Week queries expand the range
// to Monday-aligned full calendar weeks. Missing buckets are absent from
// the result, never zero-filled.
func (w *Windows) Query(ctx context.Context, sensorID int64, from, to time.Time, bucket string) (map[time.Time]BucketAverages, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	view, ok := bucketViews[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidArgument, bucket)
	}

	if err := w.timeseries.RefreshAggregate(ctx, view); err != nil {
		return nil, fmt.Errorf("failed to refresh aggregate %s: %w", view, err)
	}

	if bucket == "week" {
		from = from.AddDate(0, 0, -mondayIndex(from))
		to = to.AddDate(0, 0, 6-mondayIndex(to))
	}

	w.logger.Debug("querying aggregate window",
		"sensor_id", sensorID,
		"view", view,
		"from", from,
		"to", to,
	)

	result, err := w.timeseries.QueryAggregate(ctx, view, bucket, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregate %s: %w", view, err)
	}

	return result, nil
}

// mondayIndex returns the weekday with Monday as 0 and Sunday as 6.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
