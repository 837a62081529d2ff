package rediscache_test

import (
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/store/rediscache"
)

var _ = Describe("RedisCache", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				store, err := rediscache.New(nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(store).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				store, err := rediscache.New(&rediscache.Config{
					Logger: nil,
					Addr:   "localhost:6379",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(store).To(BeNil())
			})

			It("should return error when address is empty", func() {
				store, err := rediscache.New(&rediscache.Config{
					Logger: logger,
					Addr:   "",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("address"))
				Expect(store).To(BeNil())
			})
		})

		Context("connection validation", func() {
			It("should fail when connecting to a closed port", func() {
				store, err := rediscache.New(&rediscache.Config{
					Logger: logger,
					Addr:   "localhost:1",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to connect to redis"))
				Expect(store).To(BeNil())
			})
		})
	})
})
