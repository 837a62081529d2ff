// Package timescale implements the time-series store: the raw sample
// hypertable and the pre-aggregated bucket views the window engine reads.
package timescale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"procodus.dev/polysense/internal/telemetry"
)

// aggregateViews is the closed set of refreshable views. View and bucket
// column names are interpolated into SQL, so both are allowlisted here.
var aggregateViews = map[string]string{
	"sensor_data_hourly":  "hour",
	"sensor_data_daily":   "day",
	"sensor_data_weekly":  "week",
	"sensor_data_monthly": "month",
	"sensor_data_yearly":  "year",
}

// Config holds the TimescaleDB connection configuration.
type Config struct {
	Logger *slog.Logger
	URL    string
}

// Store is the time-series adapter.
type Store struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

var _ telemetry.TimeseriesStore = (*Store)(nil)

// New connects to TimescaleDB. Schema provisioning lives in migrations/;
// the adapter only verifies connectivity.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("timescale config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URL == "" {
		return nil, errors.New("timescale URL cannot be empty")
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create timescale pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping timescale: %w", err)
	}

	cfg.Logger.Info("timescale connection established")

	return &Store{logger: cfg.Logger, pool: pool}, nil
}

// InsertSample appends one reading to the raw sample table. Absent
// measurement fields are stored as NULL; a missing timestamp falls back to
// the server clock because the hypertable time column cannot be NULL.
func (s *Store) InsertSample(ctx context.Context, sensorID int64, r telemetry.Reading) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sensor_data (sensor_id, velocity, temperature, humidity, battery_level, time)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))`,
		sensorID, r.Velocity, r.Temperature, r.Humidity, r.BatteryLevel, r.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sample for sensor %d: %w", sensorID, err)
	}
	return nil
}

// RefreshAggregate re-materializes one bucket view so a following query
// sees recent raw data.
func (s *Store) RefreshAggregate(ctx context.Context, view string) error {
	if _, ok := aggregateViews[view]; !ok {
		return fmt.Errorf("%w: unknown aggregate view %q", telemetry.ErrInvalidArgument, view)
	}

	if _, err := s.pool.Exec(ctx, "REFRESH MATERIALIZED VIEW "+view); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", view, err)
	}
	return nil
}

// QueryAggregate reads the averaged buckets for one sensor over [from, to],
// keyed by bucket timestamp. Buckets with no data are simply absent.
func (s *Store) QueryAggregate(ctx context.Context, view, bucketColumn string, sensorID int64, from, to time.Time) (map[time.Time]telemetry.BucketAverages, error) {
	wantColumn, ok := aggregateViews[view]
	if !ok || bucketColumn != wantColumn {
		return nil, fmt.Errorf("%w: unknown aggregate view %q / bucket %q", telemetry.ErrInvalidArgument, view, bucketColumn)
	}

	query := fmt.Sprintf(
		`SELECT %s, avg_velocity, avg_temperature, avg_humidity, avg_battery_level
		 FROM %s
		 WHERE sensor_id = $1 AND %s BETWEEN $2 AND $3`,
		bucketColumn, view, bucketColumn,
	)

	rows, err := s.pool.Query(ctx, query, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", view, err)
	}
	defer rows.Close()

	result := make(map[time.Time]telemetry.BucketAverages)
	for rows.Next() {
		var (
			bucket   time.Time
			averages telemetry.BucketAverages
		)
		err := rows.Scan(
			&bucket,
			&averages.AvgVelocity,
			&averages.AvgTemperature,
			&averages.AvgHumidity,
			&averages.AvgBatteryLevel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", view, err)
		}
		result[bucket] = averages
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", view, err)
	}

	return result, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
