package search_test

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/store/search"
)

var _ = Describe("Search", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				store, err := search.New(context.Background(), nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(store).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				store, err := search.New(context.Background(), &search.Config{
					Logger:    nil,
					Addresses: []string{"http://localhost:9200"},
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(store).To(BeNil())
			})

			It("should return error when addresses are empty", func() {
				store, err := search.New(context.Background(), &search.Config{
					Logger:    logger,
					Addresses: nil,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("addresses"))
				Expect(store).To(BeNil())
			})
		})

		Context("connection validation", func() {
			It("should fail when the cluster is unreachable", func() {
				store, err := search.New(context.Background(), &search.Config{
					Logger:    logger,
					Addresses: []string{"http://localhost:1"},
				})
				Expect(err).To(HaveOccurred())
				Expect(store).To(BeNil())
			})
		})
	})
})
