// Package postgres implements the relational identity store on PostgreSQL
// via GORM. It is the authoritative home of sensor ids and unique names.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"procodus.dev/polysense/internal/telemetry"
)

// Sensor is the identity row. Everything else about a sensor lives in the
// other stores.
type Sensor struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for the Sensor model.
func (Sensor) TableName() string {
	return "sensors"
}

// Config holds the database configuration.
type Config struct {
	Logger   *slog.Logger
	Host     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Port     int
}

// Store is the relational adapter.
type Store struct {
	logger *slog.Logger
	db     *gorm.DB
}

var _ telemetry.RelationalStore = (*Store)(nil)

// New connects to PostgreSQL and migrates the identity schema.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("postgres config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	cfg.Logger.Info("connecting to postgres",
		"host", cfg.Host,
		"port", cfg.Port,
		"dbname", cfg.DBName,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent), // Use slog instead of GORM's logger
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if err := db.AutoMigrate(&Sensor{}); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	cfg.Logger.Info("postgres connection established")

	return &Store{logger: cfg.Logger, db: db}, nil
}

// Insert creates a new identity row and returns it with its generated id.
func (s *Store) Insert(ctx context.Context, name string) (telemetry.SensorIdentity, error) {
	row := Sensor{Name: name}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return telemetry.SensorIdentity{}, fmt.Errorf("failed to insert sensor: %w", err)
	}
	return telemetry.SensorIdentity{ID: row.ID, Name: row.Name}, nil
}

// GetByID returns the identity row for id.
func (s *Store) GetByID(ctx context.Context, id int64) (telemetry.SensorIdentity, error) {
	var row Sensor
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return telemetry.SensorIdentity{}, fmt.Errorf("sensor %d: %w", id, telemetry.ErrNotFound)
	}
	if err != nil {
		return telemetry.SensorIdentity{}, fmt.Errorf("failed to load sensor %d: %w", id, err)
	}
	return telemetry.SensorIdentity{ID: row.ID, Name: row.Name}, nil
}

// GetByName returns the identity row with the given unique name.
func (s *Store) GetByName(ctx context.Context, name string) (telemetry.SensorIdentity, error) {
	var row Sensor
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return telemetry.SensorIdentity{}, fmt.Errorf("sensor %q: %w", name, telemetry.ErrNotFound)
	}
	if err != nil {
		return telemetry.SensorIdentity{}, fmt.Errorf("failed to load sensor %q: %w", name, err)
	}
	return telemetry.SensorIdentity{ID: row.ID, Name: row.Name}, nil
}

// List returns identity rows ordered by id.
func (s *Store) List(ctx context.Context, offset, limit int) ([]telemetry.SensorIdentity, error) {
	var rows []Sensor
	err := s.db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}

	identities := make([]telemetry.SensorIdentity, 0, len(rows))
	for _, row := range rows {
		identities = append(identities, telemetry.SensorIdentity{ID: row.ID, Name: row.Name})
	}
	return identities, nil
}

// Delete removes the identity row for id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Sensor{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete sensor %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sensor %d: %w", id, telemetry.ErrNotFound)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	s.logger.Info("closing postgres connection")
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close postgres: %w", err)
	}
	return nil
}
