package web

import "github.com/gofiber/fiber/v3"

// Register mounts the API on app. Every route except health and the action
// catalog requires the builder header.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/actions", h.GetActions)
	app.Get("/cache/stats", h.GetCacheStats)

	api := app.Group("", h.RequireBuilder)

	api.Post("/events", h.IngestEvent)
	api.Post("/conditions/parse", h.ParseConditions)

	automations := api.Group("/automations")
	automations.Get("/", h.GetAutomations)
	automations.Post("/", h.CreateAutomation)
	automations.Get("/:id", h.GetAutomation)
	automations.Patch("/:id", h.UpdateAutomation)
	automations.Delete("/:id", h.DeleteAutomation)
	automations.Post("/:id/preview", h.PreviewAutomation)
	automations.Get("/:id/runs", h.GetAutomationRuns)

	hooks := api.Group("/webhooks")
	hooks.Get("/", h.GetWebhooks)
	hooks.Post("/", h.CreateWebhook)
	hooks.Get("/:id", h.GetWebhook)
	hooks.Patch("/:id", h.UpdateWebhook)
	hooks.Delete("/:id", h.DeleteWebhook)
	hooks.Post("/:id/rotate-secret", h.RotateWebhookSecret)
	hooks.Post("/:id/test", h.TestWebhook)
	hooks.Get("/:id/deliveries", h.GetWebhookDeliveries)
}
