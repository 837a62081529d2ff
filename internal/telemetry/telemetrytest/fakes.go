// Package telemetrytest provides in-memory store fakes for testing the
// telemetry core and the services built on it. Every fake is safe for
// concurrent use and supports error injection through its Err* fields.
package telemetrytest

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"procodus.dev/polysense/internal/telemetry"
)

var (
	_ telemetry.RelationalStore = (*RelationalFake)(nil)
	_ telemetry.DocumentStore   = (*DocumentFake)(nil)
	_ telemetry.Cache           = (*CacheFake)(nil)
	_ telemetry.ColumnStore     = (*ColumnFake)(nil)
	_ telemetry.TimeseriesStore = (*TimeseriesFake)(nil)
	_ telemetry.SearchIndex     = (*SearchFake)(nil)
)

// RelationalFake is an in-memory RelationalStore.
type RelationalFake struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]telemetry.SensorIdentity
	ErrNext error // returned once by the next call
}

// NewRelationalFake creates an empty relational fake.
func NewRelationalFake() *RelationalFake {
	return &RelationalFake{rows: make(map[int64]telemetry.SensorIdentity)}
}

func (f *RelationalFake) takeErr() error {
	err := f.ErrNext
	f.ErrNext = nil
	return err
}

func (f *RelationalFake) Insert(_ context.Context, name string) (telemetry.SensorIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return telemetry.SensorIdentity{}, err
	}
	f.nextID++
	identity := telemetry.SensorIdentity{ID: f.nextID, Name: name}
	f.rows[identity.ID] = identity
	return identity, nil
}

func (f *RelationalFake) GetByID(_ context.Context, id int64) (telemetry.SensorIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return telemetry.SensorIdentity{}, err
	}
	identity, ok := f.rows[id]
	if !ok {
		return telemetry.SensorIdentity{}, telemetry.ErrNotFound
	}
	return identity, nil
}

func (f *RelationalFake) GetByName(_ context.Context, name string) (telemetry.SensorIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return telemetry.SensorIdentity{}, err
	}
	for _, identity := range f.rows {
		if identity.Name == name {
			return identity, nil
		}
	}
	return telemetry.SensorIdentity{}, telemetry.ErrNotFound
}

func (f *RelationalFake) List(_ context.Context, offset, limit int) ([]telemetry.SensorIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	identities := make([]telemetry.SensorIdentity, 0, len(f.rows))
	for _, identity := range f.rows {
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].ID < identities[j].ID })
	if offset >= len(identities) {
		return []telemetry.SensorIdentity{}, nil
	}
	identities = identities[offset:]
	if limit < len(identities) {
		identities = identities[:limit]
	}
	return identities, nil
}

func (f *RelationalFake) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.rows[id]; !ok {
		return telemetry.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// DocumentFake is an in-memory DocumentStore with a planar distance
// approximation for FindNear.
type DocumentFake struct {
	mu      sync.Mutex
	docs    map[int64]telemetry.SensorAttributes
	ErrNext error
}

// NewDocumentFake creates an empty document fake.
func NewDocumentFake() *DocumentFake {
	return &DocumentFake{docs: make(map[int64]telemetry.SensorAttributes)}
}

func (f *DocumentFake) takeErr() error {
	err := f.ErrNext
	f.ErrNext = nil
	return err
}

func (f *DocumentFake) Insert(_ context.Context, attrs telemetry.SensorAttributes) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.docs[attrs.SensorID] = attrs
	return nil
}

func (f *DocumentFake) FindBySensor(_ context.Context, sensorID int64) (telemetry.SensorAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return telemetry.SensorAttributes{}, err
	}
	attrs, ok := f.docs[sensorID]
	if !ok {
		return telemetry.SensorAttributes{}, telemetry.ErrNotFound
	}
	return attrs, nil
}

// metersPerDegree approximates one degree of latitude near the equator.
const metersPerDegree = 111_000.0

func (f *DocumentFake) FindNear(_ context.Context, longitude, latitude float64, radiusMeters int) ([]telemetry.SensorAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	type candidate struct {
		attrs    telemetry.SensorAttributes
		distance float64
	}
	candidates := make([]candidate, 0, len(f.docs))
	for _, attrs := range f.docs {
		dx := (attrs.Longitude - longitude) * metersPerDegree
		dy := (attrs.Latitude - latitude) * metersPerDegree
		distance := math.Hypot(dx, dy)
		if distance <= float64(radiusMeters) {
			candidates = append(candidates, candidate{attrs: attrs, distance: distance})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	result := make([]telemetry.SensorAttributes, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.attrs)
	}
	return result, nil
}

func (f *DocumentFake) DeleteBySensor(_ context.Context, sensorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.docs[sensorID]; !ok {
		return telemetry.ErrNotFound
	}
	delete(f.docs, sensorID)
	return nil
}

// CacheFake is an in-memory Cache.
type CacheFake struct {
	mu      sync.Mutex
	values  map[string][]byte
	ErrNext error
}

// NewCacheFake creates an empty cache fake.
func NewCacheFake() *CacheFake {
	return &CacheFake{values: make(map[string][]byte)}
}

func (f *CacheFake) takeErr() error {
	err := f.ErrNext
	f.ErrNext = nil
	return err
}

func (f *CacheFake) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	f.values[key] = stored
	return nil
}

func (f *CacheFake) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	value, ok := f.values[key]
	if !ok {
		return nil, telemetry.ErrNotFound
	}
	return value, nil
}

func (f *CacheFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	if _, ok := f.values[key]; !ok {
		return telemetry.ErrNotFound
	}
	delete(f.values, key)
	return nil
}

// Len reports the number of cached values.
func (f *CacheFake) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

// ColumnFake is an in-memory ColumnStore.
type ColumnFake struct {
	mu         sync.Mutex
	Samples    []ColumnSample
	stats      map[int64]telemetry.TemperatureStats
	lowBattery []telemetry.LowBatteryRecord
	counts     map[string]int64

	ErrNext       error
	ErrSample     error // returned by every InsertSample call while set
	ErrStats      error // returned by every stats read/write while set
	ErrLowBattery error // returned by every low-battery call while set
}

// ColumnSample is one recorded sample.
type ColumnSample struct {
	SensorID int64
	Reading  telemetry.Reading
}

// NewColumnFake creates an empty column-store fake.
func NewColumnFake() *ColumnFake {
	return &ColumnFake{
		stats:  make(map[int64]telemetry.TemperatureStats),
		counts: make(map[string]int64),
	}
}

func (f *ColumnFake) takeErr() error {
	err := f.ErrNext
	f.ErrNext = nil
	return err
}

func (f *ColumnFake) InsertSample(_ context.Context, sensorID int64, r telemetry.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSample != nil {
		return f.ErrSample
	}
	if err := f.takeErr(); err != nil {
		return err
	}
	f.Samples = append(f.Samples, ColumnSample{SensorID: sensorID, Reading: r})
	return nil
}

func (f *ColumnFake) TemperatureStats(_ context.Context, sensorID int64) (telemetry.TemperatureStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStats != nil {
		return telemetry.TemperatureStats{}, f.ErrStats
	}
	stats, ok := f.stats[sensorID]
	if !ok {
		return telemetry.TemperatureStats{}, telemetry.ErrNotFound
	}
	return stats, nil
}

func (f *ColumnFake) PutTemperatureStats(_ context.Context, stats telemetry.TemperatureStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStats != nil {
		return f.ErrStats
	}
	f.stats[stats.SensorID] = stats
	return nil
}

func (f *ColumnFake) ListTemperatureStats(_ context.Context) ([]telemetry.TemperatureStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStats != nil {
		return nil, f.ErrStats
	}
	rows := make([]telemetry.TemperatureStats, 0, len(f.stats))
	for _, stats := range f.stats {
		rows = append(rows, stats)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SensorID < rows[j].SensorID })
	return rows, nil
}

func (f *ColumnFake) InsertLowBattery(_ context.Context, sensorID int64, level float64, at *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrLowBattery != nil {
		return f.ErrLowBattery
	}
	f.lowBattery = append(f.lowBattery, telemetry.LowBatteryRecord{
		SensorID:     sensorID,
		BatteryLevel: level,
		LastUpdate:   at,
	})
	return nil
}

func (f *ColumnFake) ListLowBattery(_ context.Context, threshold float64) ([]telemetry.LowBatteryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrLowBattery != nil {
		return nil, f.ErrLowBattery
	}
	rows := make([]telemetry.LowBatteryRecord, 0, len(f.lowBattery))
	for _, row := range f.lowBattery {
		if row.BatteryLevel <= threshold {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// LowBatteryCount reports the number of appended low-battery rows.
func (f *ColumnFake) LowBatteryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lowBattery)
}

func (f *ColumnFake) IncrementTypeCount(_ context.Context, sensorType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return err
	}
	f.counts[sensorType]++
	return nil
}

func (f *ColumnFake) TypeCounts(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(f.counts))
	for k, v := range f.counts {
		counts[k] = v
	}
	return counts, nil
}

// TimeseriesFake is an in-memory TimeseriesStore that serves canned
// aggregate results and records the queries it receives.
type TimeseriesFake struct {
	mu       sync.Mutex
	Samples  []ColumnSample
	Buckets  map[time.Time]telemetry.BucketAverages
	Queries  []TimeseriesQuery
	Refreshs []string

	ErrNext   error
	ErrSample error
}

// TimeseriesQuery records one QueryAggregate invocation.
type TimeseriesQuery struct {
	View         string
	BucketColumn string
	SensorID     int64
	From, To     time.Time
}

// NewTimeseriesFake creates an empty time-series fake.
func NewTimeseriesFake() *TimeseriesFake {
	return &TimeseriesFake{Buckets: make(map[time.Time]telemetry.BucketAverages)}
}

func (f *TimeseriesFake) InsertSample(_ context.Context, sensorID int64, r telemetry.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSample != nil {
		return f.ErrSample
	}
	f.Samples = append(f.Samples, ColumnSample{SensorID: sensorID, Reading: r})
	return nil
}

func (f *TimeseriesFake) RefreshAggregate(_ context.Context, view string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ErrNext; err != nil {
		f.ErrNext = nil
		return err
	}
	f.Refreshs = append(f.Refreshs, view)
	return nil
}

func (f *TimeseriesFake) QueryAggregate(_ context.Context, view, bucketColumn string, sensorID int64, from, to time.Time) (map[time.Time]telemetry.BucketAverages, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, TimeseriesQuery{
		View:         view,
		BucketColumn: bucketColumn,
		SensorID:     sensorID,
		From:         from,
		To:           to,
	})
	return f.Buckets, nil
}

// SearchFake is an in-memory SearchIndex returning canned hit lists.
type SearchFake struct {
	mu      sync.Mutex
	Docs    []telemetry.SearchDocument
	Hits    []int64
	Queries []telemetry.SearchQuery
	ErrNext error
}

// NewSearchFake creates an empty search fake.
func NewSearchFake() *SearchFake {
	return &SearchFake{}
}

func (f *SearchFake) IndexDocument(_ context.Context, doc telemetry.SearchDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ErrNext; err != nil {
		f.ErrNext = nil
		return err
	}
	f.Docs = append(f.Docs, doc)
	return nil
}

func (f *SearchFake) Search(_ context.Context, q telemetry.SearchQuery) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ErrNext; err != nil {
		f.ErrNext = nil
		return nil, err
	}
	f.Queries = append(f.Queries, q)
	return f.Hits, nil
}
