package mongodoc_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/polysense/internal/store/mongodoc"
)

var _ = Describe("MongoDoc", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("New", func() {
		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				store, err := mongodoc.New(context.Background(), nil)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config cannot be nil"))
				Expect(store).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				store, err := mongodoc.New(context.Background(), &mongodoc.Config{
					Logger: nil,
					URI:    "mongodb://localhost:27017",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
				Expect(store).To(BeNil())
			})

			It("should return error when URI is empty", func() {
				store, err := mongodoc.New(context.Background(), &mongodoc.Config{
					Logger: logger,
					URI:    "",
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("URI"))
				Expect(store).To(BeNil())
			})
		})

		Context("connection validation", func() {
			It("should fail when the server is unreachable", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()

				store, err := mongodoc.New(ctx, &mongodoc.Config{
					Logger: logger,
					URI:    "mongodb://localhost:1/?connectTimeoutMS=500&serverSelectionTimeoutMS=500",
				})
				Expect(err).To(HaveOccurred())
				Expect(store).To(BeNil())
			})
		})
	})
})
