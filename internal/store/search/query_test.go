package search

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/telemetry"
)

var _ = Describe("buildQuery", func() {
	It("builds a multi_match body over name, description and type", func() {
		body, err := buildQuery(telemetry.SearchQuery{
			Field: "name",
			Value: "weather",
			Size:  20,
			Mode:  telemetry.SearchMatch,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(body).To(HaveKeyWithValue("size", 20))
		Expect(body).To(HaveKeyWithValue("query", map[string]any{
			"multi_match": map[string]any{
				"query":  "weather",
				"fields": []string{"name", "description", "type"},
			},
		}))
	})

	It("builds a prefix body against the keyword subfield", func() {
		body, err := buildQuery(telemetry.SearchQuery{
			Field: "name",
			Value: "temp",
			Size:  10,
			Mode:  telemetry.SearchPrefix,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(body).To(HaveKeyWithValue("query", map[string]any{
			"prefix": map[string]any{
				"name.keyword": "temp",
			},
		}))
	})

	It("builds a fuzzy AND match body on the requested field", func() {
		body, err := buildQuery(telemetry.SearchQuery{
			Field: "description",
			Value: "rooftop staton",
			Size:  5,
			Mode:  telemetry.SearchSimilar,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(body).To(HaveKeyWithValue("query", map[string]any{
			"match": map[string]any{
				"description": map[string]any{
					"query":     "rooftop staton",
					"fuzziness": "auto",
					"operator":  "and",
				},
			},
		}))
	})

	It("rejects unknown modes before any request is made", func() {
		_, err := buildQuery(telemetry.SearchQuery{
			Field: "name",
			Value: "x",
			Size:  1,
			Mode:  telemetry.SearchMode("regex"),
		})
		Expect(err).To(MatchError(telemetry.ErrInvalidArgument))
	})
})
