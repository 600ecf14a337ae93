package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expense-whatsapp/internal/api/http/handlers"
	"github.com/spec-kit/expense-whatsapp/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Webhook           *handlers.WebhookHandler
	Worker            *handlers.WorkerHandler
	Scan              *handlers.ScanHandler
	ServiceMiddleware *auth.ServiceAuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/webhook", cfg.Webhook.Verify)
	app.Post("/webhook", cfg.Webhook.Receive)

	app.Post("/scan", cfg.Scan.Scan)

	internal := app.Group("/internal", cfg.ServiceMiddleware.Handle)
	internal.Post("/messages/process", cfg.Worker.Process)
}
