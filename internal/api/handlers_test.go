package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/api"
	"procodus.dev/polysense/internal/telemetry"
	"procodus.dev/polysense/internal/telemetry/telemetrytest"
)

var _ = Describe("Handlers", func() {
	var (
		index *telemetrytest.SearchFake
		ts    *httptest.Server
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		index = telemetrytest.NewSearchFake()

		service, err := telemetry.NewService(&telemetry.ServiceConfig{
			Logger:     logger,
			Relational: telemetrytest.NewRelationalFake(),
			Documents:  telemetrytest.NewDocumentFake(),
			Cache:      telemetrytest.NewCacheFake(),
			Columns:    telemetrytest.NewColumnFake(),
			Timeseries: telemetrytest.NewTimeseriesFake(),
			Search:     index,
		})
		Expect(err).NotTo(HaveOccurred())

		server, err := api.NewServer(&api.ServerConfig{
			Logger:   logger,
			Service:  service,
			HTTPPort: 8080,
		})
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(server.Handler())
	})

	AfterEach(func() {
		ts.Close()
	})

	doJSON := func(method, path string, body any) (*http.Response, map[string]any) {
		var reader *bytes.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequest(method, ts.URL+path, reader)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)

		var decoded map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		return resp, decoded
	}

	createSensor := func(name string) int64 {
		resp, body := doJSON(http.MethodPost, "/sensors", map[string]any{
			"name":      name,
			"type":      "weather",
			"latitude":  41.4,
			"longitude": 2.17,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return int64(body["id"].(float64))
	}

	Describe("GET /", func() {
		It("should report the API name and version", func() {
			resp, body := doJSON(http.MethodGet, "/", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["name"]).To(Equal("polysense"))
			Expect(body["version"]).NotTo(BeEmpty())
		})
	})

	Describe("GET /health", func() {
		It("should report ok", func() {
			resp, body := doJSON(http.MethodGet, "/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("POST /sensors", func() {
		It("should create a sensor and return the record", func() {
			resp, body := doJSON(http.MethodPost, "/sensors", map[string]any{
				"name": "rooftop-1",
				"type": "weather",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["name"]).To(Equal("rooftop-1"))
			Expect(body["id"]).To(BeNumerically(">", 0))
		})

		It("should reject a duplicate name with 400", func() {
			createSensor("rooftop-2")

			resp, _ := doJSON(http.MethodPost, "/sensors", map[string]any{"name": "rooftop-2"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject an empty name with 400", func() {
			resp, _ := doJSON(http.MethodPost, "/sensors", map[string]any{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject a malformed body with 400", func() {
			resp, err := http.Post(ts.URL+"/sensors", "application/json", bytes.NewReader([]byte("{")))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /sensors/{id}", func() {
		It("should return 404 for an unknown sensor", func() {
			resp, _ := doJSON(http.MethodGet, "/sensors/99", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return the assembled record", func() {
			id := createSensor("rooftop-3")

			resp, body := doJSON(http.MethodGet, fmt.Sprintf("/sensors/%d", id), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["name"]).To(Equal("rooftop-3"))
		})

		It("should not match a non-numeric id", func() {
			resp, _ := doJSON(http.MethodGet, "/sensors/abc", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /sensors/{id}/data", func() {
		It("should return 404 for an unknown sensor", func() {
			resp, _ := doJSON(http.MethodPost, "/sensors/99/data", map[string]any{"temperature": 20})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should record the reading", func() {
			id := createSensor("rooftop-4")

			resp, _ := doJSON(http.MethodPost, fmt.Sprintf("/sensors/%d/data", id), map[string]any{
				"temperature":   21.5,
				"battery_level": 0.8,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /sensors/{id}/data", func() {
		It("should return the record with the latest reading", func() {
			id := createSensor("rooftop-5")
			doJSON(http.MethodPost, fmt.Sprintf("/sensors/%d/data", id), map[string]any{"temperature": 23})

			resp, body := doJSON(http.MethodGet, fmt.Sprintf("/sensors/%d/data", id), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["temperature"]).To(Equal(23.0))
		})

		It("should run a window query when from, to, and bucket are given", func() {
			id := createSensor("rooftop-6")

			path := fmt.Sprintf("/sensors/%d/data?from=2024-03-01T00:00:00Z&to=2024-03-02T00:00:00Z&bucket=day", id)
			resp, _ := doJSON(http.MethodGet, path, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject an unknown bucket with 400", func() {
			id := createSensor("rooftop-7")

			path := fmt.Sprintf("/sensors/%d/data?from=2024-03-01T00:00:00Z&to=2024-03-02T00:00:00Z&bucket=decade", id)
			resp, _ := doJSON(http.MethodGet, path, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject an unparsable timestamp with 400", func() {
			id := createSensor("rooftop-8")

			path := fmt.Sprintf("/sensors/%d/data?from=yesterday&to=2024-03-02T00:00:00Z", id)
			resp, _ := doJSON(http.MethodGet, path, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DELETE /sensors/{id}", func() {
		It("should delete and return 404 afterwards", func() {
			id := createSensor("rooftop-9")

			resp, _ := doJSON(http.MethodDelete, fmt.Sprintf("/sensors/%d", id), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			resp, _ = doJSON(http.MethodGet, fmt.Sprintf("/sensors/%d", id), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /sensors/near", func() {
		It("should reject missing coordinates with 400", func() {
			resp, _ := doJSON(http.MethodGet, "/sensors/near?radius=100", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return sensors in range", func() {
			createSensor("rooftop-10")

			resp, err := http.Get(ts.URL + "/sensors/near?latitude=41.4&longitude=2.17&radius=1000")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var records []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&records)).To(Succeed())
			Expect(records).To(HaveLen(1))
		})
	})

	Describe("GET /sensors/search", func() {
		It("should return 404 when nothing matches", func() {
			resp, _ := doJSON(http.MethodGet, "/sensors/search?query=nothing", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should reject an unknown search type with 400", func() {
			resp, _ := doJSON(http.MethodGet, "/sensors/search?query=x&search_type=regex", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return hydrated hits", func() {
			id := createSensor("rooftop-11")
			index.Hits = []int64{id}

			resp, err := http.Get(ts.URL + "/sensors/search?query=rooftop&search_type=prefix")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var records []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&records)).To(Succeed())
			Expect(records).To(HaveLen(1))
			Expect(records[0]["name"]).To(Equal("rooftop-11"))
		})
	})

	Describe("GET /sensors/quantity_by_type", func() {
		It("should report creation counts per type", func() {
			createSensor("rooftop-12")

			resp, body := doJSON(http.MethodGet, "/sensors/quantity_by_type", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["weather"]).To(Equal(1.0))
		})
	})

	Describe("GET /sensors/low_battery", func() {
		It("should list sensors at or below the threshold", func() {
			id := createSensor("rooftop-13")
			doJSON(http.MethodPost, fmt.Sprintf("/sensors/%d/data", id), map[string]any{"battery_level": 0.1})

			resp, err := http.Get(ts.URL + "/sensors/low_battery")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var sensors []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&sensors)).To(Succeed())
			Expect(sensors).To(HaveLen(1))
			Expect(sensors[0]["battery_level"]).To(Equal(0.1))
		})
	})

	Describe("GET /sensors", func() {
		It("should list identities", func() {
			createSensor("rooftop-14")
			createSensor("rooftop-15")

			resp, err := http.Get(ts.URL + "/sensors")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var identities []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&identities)).To(Succeed())
			Expect(identities).To(HaveLen(2))
		})
	})
})
