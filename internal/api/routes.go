package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker verifies connectivity to the messaging substrate.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RegisterRoutes wires metrics, health, and (when present) the RFQ trigger.
func RegisterRoutes(app *fiber.App, hc HealthChecker, rfqHandler *RFQHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"bus": "ok"}
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := hc.HealthCheck(healthCtx); err != nil {
			checks["bus"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	if rfqHandler != nil {
		v1 := app.Group("/api/v1")
		v1.Post("/rfq", rfqHandler.SendRFQ)
	}
}
