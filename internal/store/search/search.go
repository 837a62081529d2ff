// Package search implements the candidate-generating search index on
// Elasticsearch. Hits carry sensor ids only; hydration happens in the core.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"procodus.dev/polysense/internal/telemetry"
)

// indexMapping keeps name untokenized under name.keyword so prefix queries
// can match the exact stored form.
const indexMapping = `{
	"properties": {
		"name": {
			"type": "text",
			"fields": {
				"keyword": {"type": "keyword"}
			}
		},
		"description": {"type": "text"},
		"type": {"type": "text"}
	}
}`

// Config holds the Elasticsearch connection configuration.
type Config struct {
	Logger    *slog.Logger
	Addresses []string
	Index     string
}

// Store is the search-index adapter.
type Store struct {
	logger *slog.Logger
	client *elasticsearch.Client
	index  string
}

var _ telemetry.SearchIndex = (*Store)(nil)

// New connects to Elasticsearch and ensures the index and its mapping.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("search config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses cannot be empty")
	}

	if cfg.Index == "" {
		cfg.Index = "sensors"
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	s := &Store{logger: cfg.Logger, client: client, index: cfg.Index}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	cfg.Logger.Info("elasticsearch index ready", "index", cfg.Index)

	return s, nil
}

// ensureIndex creates the index and mapping if they are missing.
func (s *Store) ensureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusNotFound {
		created, err := s.client.Indices.Create(
			s.index,
			s.client.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", s.index, err)
		}
		defer created.Body.Close()
		if created.IsError() {
			return fmt.Errorf("failed to create index %s: %s", s.index, created.String())
		}
	}

	mapped, err := s.client.Indices.PutMapping(
		[]string{s.index},
		strings.NewReader(indexMapping),
		s.client.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to put mapping on %s: %w", s.index, err)
	}
	defer mapped.Body.Close()
	if mapped.IsError() {
		return fmt.Errorf("failed to put mapping on %s: %s", s.index, mapped.String())
	}

	return nil
}

// IndexDocument stores one search document. Written once, at creation time.
func (s *Store) IndexDocument(ctx context.Context, doc telemetry.SearchDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode search document: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(payload),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index sensor %d: %w", doc.SensorID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index sensor %d: %s", doc.SensorID, res.String())
	}

	return nil
}

// Search runs the query and returns the matching sensor ids in hit order.
func (s *Store) Search(ctx context.Context, q telemetry.SearchQuery) ([]int64, error) {
	body, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search request failed: %s", res.String())
	}

	return decodeHits(res.Body)
}

// buildQuery translates the validated query into the Elasticsearch DSL.
func buildQuery(q telemetry.SearchQuery) (map[string]any, error) {
	body := map[string]any{"size": q.Size}

	switch q.Mode {
	case telemetry.SearchMatch:
		body["query"] = map[string]any{
			"multi_match": map[string]any{
				"query":  q.Value,
				"fields": []string{"name", "description", "type"},
			},
		}
	case telemetry.SearchPrefix:
		body["query"] = map[string]any{
			"prefix": map[string]any{
				q.Field + ".keyword": q.Value,
			},
		}
	case telemetry.SearchSimilar:
		body["query"] = map[string]any{
			"match": map[string]any{
				q.Field: map[string]any{
					"query":     q.Value,
					"fuzziness": "auto",
					"operator":  "and",
				},
			},
		}
	default:
		return nil, fmt.Errorf("%w: search mode %q", telemetry.ErrInvalidArgument, q.Mode)
	}

	return body, nil
}

// decodeHits extracts id_sensor from each hit's source.
func decodeHits(body io.Reader) ([]int64, error) {
	var response struct {
		Hits struct {
			Hits []struct {
				Source telemetry.SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]int64, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		ids = append(ids, hit.Source.SensorID)
	}
	return ids, nil
}
