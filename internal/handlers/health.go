package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/seuros/leadtrack/internal/metrics"
)

// HandleHealth → GET /health. Liveness only.
func HandleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReady → GET /ready. Fails with 503 while ping fails.
func HandleReady(ping func(context.Context) error) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "unavailable",
				"database": "unreachable",
			})
		}
		return c.JSON(fiber.Map{"status": "ready", "database": "ok"})
	}
}

// HandleMetrics → GET /metrics in the Prometheus text format.
func HandleMetrics(m *metrics.Metrics) fiber.Handler {
	return adaptor.HTTPHandler(m.Handler())
}
