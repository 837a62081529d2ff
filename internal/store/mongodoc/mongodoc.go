// Package mongodoc implements the sensor attributes document store on
// MongoDB, including the geospatial proximity query.
package mongodoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"procodus.dev/polysense/internal/telemetry"
)

// geoPoint is a GeoJSON Point. Coordinates are [longitude, latitude].
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// document is the stored attributes shape, keyed by id_sensor as a weak
// back-reference to the relational identity.
type document struct {
	SensorID        int64    `bson:"id_sensor"`
	Type            string   `bson:"type"`
	MACAddress      string   `bson:"mac_address"`
	Manufacturer    string   `bson:"manufacturer"`
	Model           string   `bson:"model"`
	SerieNumber     string   `bson:"serie_number"`
	FirmwareVersion string   `bson:"firmware_version"`
	Description     string   `bson:"description"`
	Location        geoPoint `bson:"location"`
}

// Config holds the MongoDB connection configuration.
type Config struct {
	Logger     *slog.Logger
	URI        string
	Database   string
	Collection string
}

// Store is the document adapter.
type Store struct {
	logger     *slog.Logger
	client     *mongo.Client
	collection *mongo.Collection
}

var _ telemetry.DocumentStore = (*Store)(nil)

// New connects to MongoDB and ensures the 2dsphere index the proximity
// query depends on.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("mongo config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URI == "" {
		return nil, errors.New("mongo URI cannot be empty")
	}

	if cfg.Database == "" {
		cfg.Database = "polysense"
	}

	if cfg.Collection == "" {
		cfg.Collection = "sensors"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure 2dsphere index: %w", err)
	}

	cfg.Logger.Info("mongo connection established",
		"database", cfg.Database,
		"collection", cfg.Collection,
	)

	return &Store{
		logger:     cfg.Logger,
		client:     client,
		collection: collection,
	}, nil
}

// Insert stores one attributes document.
func (s *Store) Insert(ctx context.Context, attrs telemetry.SensorAttributes) error {
	if _, err := s.collection.InsertOne(ctx, toDocument(attrs)); err != nil {
		return fmt.Errorf("failed to insert attributes for sensor %d: %w", attrs.SensorID, err)
	}
	return nil
}

// FindBySensor returns the attributes document for sensorID.
func (s *Store) FindBySensor(ctx context.Context, sensorID int64) (telemetry.SensorAttributes, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"id_sensor": sensorID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return telemetry.SensorAttributes{}, fmt.Errorf("attributes for sensor %d: %w", sensorID, telemetry.ErrNotFound)
	}
	if err != nil {
		return telemetry.SensorAttributes{}, fmt.Errorf("failed to load attributes for sensor %d: %w", sensorID, err)
	}
	return fromDocument(doc), nil
}

// FindNear returns the attribute documents within radiusMeters of the given
// point, nearest first ($near keeps that ordering server-side).
func (s *Store) FindNear(ctx context.Context, longitude, latitude float64, radiusMeters int) ([]telemetry.SensorAttributes, error) {
	filter := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": geoPoint{
					Type:        "Point",
					Coordinates: []float64{longitude, latitude},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("proximity query failed: %w", err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read proximity results: %w", err)
	}

	attrs := make([]telemetry.SensorAttributes, 0, len(docs))
	for _, doc := range docs {
		attrs = append(attrs, fromDocument(doc))
	}
	return attrs, nil
}

// DeleteBySensor removes the attributes document for sensorID.
func (s *Store) DeleteBySensor(ctx context.Context, sensorID int64) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"id_sensor": sensorID})
	if err != nil {
		return fmt.Errorf("failed to delete attributes for sensor %d: %w", sensorID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("attributes for sensor %d: %w", sensorID, telemetry.ErrNotFound)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toDocument(attrs telemetry.SensorAttributes) document {
	return document{
		SensorID:        attrs.SensorID,
		Type:            attrs.Type,
		MACAddress:      attrs.MACAddress,
		Manufacturer:    attrs.Manufacturer,
		Model:           attrs.Model,
		SerieNumber:     attrs.SerieNumber,
		FirmwareVersion: attrs.FirmwareVersion,
		Description:     attrs.Description,
		Location: geoPoint{
			Type:        "Point",
			Coordinates: []float64{attrs.Longitude, attrs.Latitude},
		},
	}
}

func fromDocument(doc document) telemetry.SensorAttributes {
	attrs := telemetry.SensorAttributes{
		SensorID:        doc.SensorID,
		Type:            doc.Type,
		MACAddress:      doc.MACAddress,
		Manufacturer:    doc.Manufacturer,
		Model:           doc.Model,
		SerieNumber:     doc.SerieNumber,
		FirmwareVersion: doc.FirmwareVersion,
		Description:     doc.Description,
	}
	// GeoJSON order is [longitude, latitude].
	if len(doc.Location.Coordinates) == 2 {
		attrs.Longitude = doc.Location.Coordinates[0]
		attrs.Latitude = doc.Location.Coordinates[1]
	}
	return attrs
}
