package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/cat-facts/pkg/logger"
)

var _ = Describe("Logger", func() {
	ctx := context.Background()

	Describe("New", func() {
		DescribeTable("should create a logger for every level",
			func(level string) {
				Expect(logger.New(level, false, "dev")).NotTo(BeNil())
			},
			Entry("debug", "debug"),
			Entry("info", "info"),
			Entry("warn", "warn"),
			Entry("error", "error"),
			Entry("invalid defaults to info", "invalid"),
		)

		It("should default to info level", func() {
			log := logger.New("info", false, "dev")

			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeTrue())
			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeFalse())
		})

		It("should respect debug level", func() {
			log := logger.New("debug", false, "dev")

			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeTrue())
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeTrue())
		})

		It("should respect warn level", func() {
			log := logger.New("warn", false, "dev")

			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeTrue())
		})

		It("should respect error level regardless of case", func() {
			log := logger.New("ERROR", false, "dev")

			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelError)).To(BeTrue())
		})
	})

	Describe("NewWithWriter", func() {
		It("should write JSON with the environment attribute in prod", func() {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "info", false, "prod")

			log.Info("served fact", slog.String("lang", "ru"))

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record).To(HaveKeyWithValue("msg", "served fact"))
			Expect(record).To(HaveKeyWithValue("environment", "prod"))
			Expect(record).To(HaveKeyWithValue("lang", "ru"))
		})

		It("should write text outside prod", func() {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "info", false, "dev")

			log.Info("served fact")

			Expect(buf.String()).To(ContainSubstring("msg=\"served fact\""))
			Expect(buf.String()).To(ContainSubstring("environment=dev"))
		})
	})

	Describe("Discard", func() {
		It("should not be enabled for any level", func() {
			log := logger.Discard()

			Expect(log.Enabled(ctx, slog.LevelError)).To(BeFalse())
		})
	})
})
