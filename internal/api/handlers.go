package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"procodus.dev/polysense/internal/telemetry"
)

// respondJSON writes v as a JSON response with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError maps a service error onto an HTTP status and a JSON body.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, telemetry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, telemetry.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, telemetry.ErrAlreadyExists):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	s.respondJSON(w, status, map[string]string{"detail": err.Error()})
}

// sensorID extracts the {id} path variable. The route pattern guarantees
// digits only.
func sensorID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// handleIndex reports the API name and version.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"name":    APIName,
		"version": APIVersion,
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleList returns sensor identities, paged by offset and limit.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sensors, err := s.service.List(r.Context(), offset, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, sensors)
}

// handleCreate registers a new sensor.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in telemetry.CreateSensor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	record, err := s.service.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// handleGet returns the assembled sensor record without its latest reading.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := sensorID(r)
	if err != nil {
		s.respondError(w, telemetry.ErrInvalidArgument)
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, record)
}

// handleDelete removes a sensor's identity, attributes, and cached reading.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := sensorID(r)
	if err != nil {
		s.respondError(w, telemetry.ErrInvalidArgument)
		return
	}

	if err := s.service.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"detail": "sensor deleted"})
}

// handleRecord ingests one reading for a sensor.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := sensorID(r)
	if err != nil {
		s.respondError(w, telemetry.ErrInvalidArgument)
		return
	}

	var reading telemetry.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}

	if err := s.service.Record(r.Context(), id, reading); err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, reading)
}

// handleGetData answers both shapes of the data route: with bucket, from, and
// to it runs a windowed aggregate query; otherwise it returns the record with
// the latest reading overlaid.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	id, err := sensorID(r)
	if err != nil {
		s.respondError(w, telemetry.ErrInvalidArgument)
		return
	}

	query := r.URL.Query()
	fromRaw, toRaw := query.Get("from"), query.Get("to")

	if fromRaw == "" || toRaw == "" {
		record, err := s.service.GetData(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, record)
		return
	}

	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid from timestamp"})
		return
	}

	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid to timestamp"})
		return
	}

	buckets, err := s.service.QueryWindow(r.Context(), id, from, to, query.Get("bucket"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, buckets)
}

// handleFindNear returns the sensors within radius meters of a point.
func (s *Server) handleFindNear(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	latitude, err := strconv.ParseFloat(query.Get("latitude"), 64)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid latitude"})
		return
	}

	longitude, err := strconv.ParseFloat(query.Get("longitude"), 64)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid longitude"})
		return
	}

	radius, err := strconv.Atoi(query.Get("radius"))
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid radius"})
		return
	}

	records, err := s.service.FindNear(r.Context(), longitude, latitude, radius)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, records)
}

// handleSearch runs a text search. An empty result set is a 404, matching
// the convention that search without hits names a missing resource.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	field := query.Get("field")
	if field == "" {
		field = "name"
	}

	mode := telemetry.SearchMode(query.Get("search_type"))
	if mode == "" {
		mode = telemetry.SearchMatch
	}

	size, _ := strconv.Atoi(query.Get("size"))

	records, err := s.service.Search(r.Context(), field, query.Get("query"), size, mode)
	if err != nil {
		s.respondError(w, err)
		return
	}

	if len(records) == 0 {
		s.respondJSON(w, http.StatusNotFound, map[string]string{
			"detail": "there are no sensors that match the specified query",
		})
		return
	}

	s.respondJSON(w, http.StatusOK, records)
}

// handleTemperatureValues lists every sensor's running temperature stats.
func (s *Server) handleTemperatureValues(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.TemperatureValues(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, summaries)
}

// handleCountByType reports the per-type creation counters.
func (s *Server) handleCountByType(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.CountByType(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, counts)
}

// handleLowBattery lists the sensors at or below the battery threshold.
func (s *Server) handleLowBattery(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.service.LowBattery(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, sensors)
}
