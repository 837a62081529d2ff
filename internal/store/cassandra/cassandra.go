// Package cassandra implements the column store holding the append-only
// sample log, temperature statistics, low-battery records, and the
// per-type creation counter.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"

	"procodus.dev/polysense/internal/telemetry"
)

// Schema bootstrap statements, owned by the adapter. Samples and
// low-battery rows cluster on a timeuuid because the reported timestamp is
// nullable and a clustering column cannot be.
var schemaStatements = []string{
	`CREATE KEYSPACE IF NOT EXISTS sensor WITH replication = {
		'class': 'SimpleStrategy',
		'replication_factor': '1'
	}`,
	`CREATE TABLE IF NOT EXISTS sensor.sensor_data_tbl (
		sensor_id bigint,
		id timeuuid,
		timestamp timestamp,
		temperature double,
		humidity double,
		velocity double,
		battery_level double,
		PRIMARY KEY (sensor_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS sensor.temperature_statistics (
		sensor_id bigint PRIMARY KEY,
		max_temperature double,
		min_temperature double,
		avg_temperature double,
		total_temperature double,
		temperature_count bigint
	)`,
	`CREATE TABLE IF NOT EXISTS sensor.low_battery_sensors (
		sensor_id bigint,
		id timeuuid,
		battery_level double,
		last_update timestamp,
		PRIMARY KEY (sensor_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS sensor.sensor_count_by_type (
		sensor_type text PRIMARY KEY,
		count counter
	)`,
}

// Config holds the Cassandra connection configuration.
type Config struct {
	Logger *slog.Logger
	Hosts  []string
}

// Store is the column-store adapter.
type Store struct {
	logger  *slog.Logger
	session *gocql.Session
}

var _ telemetry.ColumnStore = (*Store)(nil)

// New connects to the cluster and bootstraps the keyspace and tables.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("cassandra config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cassandra hosts cannot be empty")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.ProtoVersion = 4
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}

	for _, stmt := range schemaStatements {
		if err := session.Query(stmt).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}

	cfg.Logger.Info("cassandra connection established", "hosts", cfg.Hosts)

	return &Store{logger: cfg.Logger, session: session}, nil
}

// InsertSample appends one reading to the sample log. Absent measurement
// fields are stored as null.
func (s *Store) InsertSample(ctx context.Context, sensorID int64, r telemetry.Reading) error {
	err := s.session.Query(
		`INSERT INTO sensor.sensor_data_tbl
		 (sensor_id, id, timestamp, temperature, humidity, velocity, battery_level)
		 VALUES (?, now(), ?, ?, ?, ?, ?)`,
		sensorID, r.LastSeen, r.Temperature, r.Humidity, r.Velocity, r.BatteryLevel,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert sample for sensor %d: %w", sensorID, err)
	}
	return nil
}

// TemperatureStats returns the statistics row for sensorID.
func (s *Store) TemperatureStats(ctx context.Context, sensorID int64) (telemetry.TemperatureStats, error) {
	stats := telemetry.TemperatureStats{SensorID: sensorID}
	err := s.session.Query(
		`SELECT max_temperature, min_temperature, avg_temperature, total_temperature, temperature_count
		 FROM sensor.temperature_statistics WHERE sensor_id = ?`,
		sensorID,
	).WithContext(ctx).Scan(&stats.Max, &stats.Min, &stats.Avg, &stats.Total, &stats.Count)
	if errors.Is(err, gocql.ErrNotFound) {
		return telemetry.TemperatureStats{}, fmt.Errorf("statistics for sensor %d: %w", sensorID, telemetry.ErrNotFound)
	}
	if err != nil {
		return telemetry.TemperatureStats{}, fmt.Errorf("failed to load statistics for sensor %d: %w", sensorID, err)
	}
	return stats, nil
}

// PutTemperatureStats fully replaces the statistics row.
func (s *Store) PutTemperatureStats(ctx context.Context, stats telemetry.TemperatureStats) error {
	err := s.session.Query(
		`INSERT INTO sensor.temperature_statistics
		 (sensor_id, max_temperature, min_temperature, avg_temperature, total_temperature, temperature_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stats.SensorID, stats.Max, stats.Min, stats.Avg, stats.Total, stats.Count,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to write statistics for sensor %d: %w", stats.SensorID, err)
	}
	return nil
}

// ListTemperatureStats returns every sensor's statistics row.
func (s *Store) ListTemperatureStats(ctx context.Context) ([]telemetry.TemperatureStats, error) {
	iter := s.session.Query(
		`SELECT sensor_id, max_temperature, min_temperature, avg_temperature, total_temperature, temperature_count
		 FROM sensor.temperature_statistics`,
	).WithContext(ctx).Iter()

	var rows []telemetry.TemperatureStats
	var row telemetry.TemperatureStats
	for iter.Scan(&row.SensorID, &row.Max, &row.Min, &row.Avg, &row.Total, &row.Count) {
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list temperature statistics: %w", err)
	}
	return rows, nil
}

// InsertLowBattery appends one low-battery fact. No dedup: the newest row
// is authoritative for "current" queries.
func (s *Store) InsertLowBattery(ctx context.Context, sensorID int64, level float64, at *time.Time) error {
	err := s.session.Query(
		`INSERT INTO sensor.low_battery_sensors (sensor_id, id, battery_level, last_update)
		 VALUES (?, now(), ?, ?)`,
		sensorID, level, at,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert low battery record for sensor %d: %w", sensorID, err)
	}
	return nil
}

// ListLowBattery returns the records at or below threshold. The scan is a
// full-table filter; acceptable at fleet scale.
func (s *Store) ListLowBattery(ctx context.Context, threshold float64) ([]telemetry.LowBatteryRecord, error) {
	iter := s.session.Query(
		`SELECT sensor_id, battery_level, last_update
		 FROM sensor.low_battery_sensors WHERE battery_level <= ? ALLOW FILTERING`,
		threshold,
	).WithContext(ctx).Iter()

	var rows []telemetry.LowBatteryRecord
	var (
		sensorID int64
		level    float64
		at       time.Time
	)
	for iter.Scan(&sensorID, &level, &at) {
		record := telemetry.LowBatteryRecord{SensorID: sensorID, BatteryLevel: level}
		if !at.IsZero() {
			t := at
			record.LastUpdate = &t
		}
		rows = append(rows, record)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list low battery records: %w", err)
	}
	return rows, nil
}

// IncrementTypeCount bumps the per-type creation counter. Never decremented.
func (s *Store) IncrementTypeCount(ctx context.Context, sensorType string) error {
	err := s.session.Query(
		`UPDATE sensor.sensor_count_by_type SET count = count + 1 WHERE sensor_type = ?`,
		sensorType,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to increment counter for type %q: %w", sensorType, err)
	}
	return nil
}

// TypeCounts reads the counter table verbatim.
func (s *Store) TypeCounts(ctx context.Context) (map[string]int64, error) {
	iter := s.session.Query(
		`SELECT sensor_type, count FROM sensor.sensor_count_by_type`,
	).WithContext(ctx).Iter()

	counts := make(map[string]int64)
	var (
		sensorType string
		count      int64
	)
	for iter.Scan(&sensorType, &count) {
		counts[sensorType] = count
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read type counters: %w", err)
	}
	return counts, nil
}

// Close shuts the session down.
func (s *Store) Close() {
	s.session.Close()
}
