package cassandra_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/store/cassandra"
)

var _ = Describe("Cassandra", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				store, err := cassandra.New(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(store).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				store, err := cassandra.New(&cassandra.Config{
					Logger: nil,
					Hosts:  []string{"localhost"},
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(store).To(BeNil())
			})

			It("should return error when hosts are empty", func() {
				store, err := cassandra.New(&cassandra.Config{
					Logger: logger,
					Hosts:  nil,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("hosts"))
				Expect(store).To(BeNil())
			})
		})
	})
})
