// Package web provides the HTTP API for automations, webhooks and event
// ingestion.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/dispatcher"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/registry"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	automationService *services.Automation
	webhookManager    *webhooks.Manager
	dispatcher        *dispatcher.Dispatcher
	cache             cache.StatsProvider
	registry          *registry.Registry
	validator         *validator.Validate
}

// NewAPIHandlers wires the handlers. statsProvider may be nil when the
// evaluation cache is disabled.
func NewAPIHandlers(
	automationService *services.Automation,
	webhookManager *webhooks.Manager,
	dispatcher *dispatcher.Dispatcher,
	statsProvider cache.StatsProvider,
	registry *registry.Registry,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		automationService: automationService,
		webhookManager:    webhookManager,
		dispatcher:        dispatcher,
		cache:             statsProvider,
		registry:          registry,
		validator:         validator,
	}
}

// RequireBuilder rejects requests without a tenant header.
func (h *APIHandlers) RequireBuilder(c fiber.Ctx) error {
	if builderID(c) == "" {
		return unauthorized(c, BuilderHeader+" header is required")
	}

	return c.Next()
}

func builderID(c fiber.Ctx) string {
	return strings.TrimSpace(c.Get(BuilderHeader))
}

func parseLimit(c fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.automationService.HealthCheck(c.Context())

	registryCheck := "Registry has no actions"
	regOk := len(h.registry.Actions()) > 0

	if regOk {
		registryCheck = "Registry is healthy"
	}

	status := "unhealthy"
	message := "Leadflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Leadflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// IngestEvent evaluates the event against the builder's automations and
// queues the matches. Actions run asynchronously.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.LeadEvent{
		ID:         req.ID,
		Type:       req.Type,
		BuilderID:  builderID(c),
		LeadID:     req.LeadID,
		PropertyID: req.PropertyID,
		Data:       req.Data,
	}

	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	}

	result, err := h.dispatcher.Dispatch(c.Context(), event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestEventResponse{
		EventID:       result.EventID,
		Evaluated:     result.Evaluated,
		AutomationIDs: result.AutomationIDs(),
	})
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.automationService.List(c.Context(), builderID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"automations": automations,
		"total_count": len(automations),
	})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.automationService.Get(c.Context(), builderID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	var req services.CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.automationService.Create(c.Context(), builderID(c), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	var req services.UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.automationService.Update(c.Context(), builderID(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAutomation(c fiber.Ctx) error {
	err := h.automationService.Delete(c.Context(), builderID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PreviewAutomation returns a traced evaluation without running actions.
func (h *APIHandlers) PreviewAutomation(c fiber.Ctx) error {
	var req services.PreviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	preview, err := h.automationService.Preview(c.Context(), builderID(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) GetAutomationRuns(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	runs, err := h.automationService.Runs(c.Context(), builderID(c), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) ParseConditions(c fiber.Ctx) error {
	var req ParseConditionsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	group, err := services.ParseConditions(req.Expressions, req.Logic)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ParseConditionsResponse{
		Conditions: condition.Tree{Root: group},
		Fields:     condition.Fields(group),
	})
}

func (h *APIHandlers) GetWebhooks(c fiber.Ctx) error {
	list, err := h.webhookManager.List(c.Context(), builderID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"webhooks":    list,
		"total_count": len(list),
	})
}

func (h *APIHandlers) GetWebhook(c fiber.Ctx) error {
	webhook, err := h.webhookManager.Get(c.Context(), builderID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) CreateWebhook(c fiber.Ctx) error {
	var req webhooks.RegisterInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	webhook, secret, err := h.webhookManager.Register(c.Context(), builderID(c), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(WebhookCreatedResponse{Webhook: webhook, Secret: secret})
}

func (h *APIHandlers) UpdateWebhook(c fiber.Ctx) error {
	var req webhooks.UpdateInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	webhook, err := h.webhookManager.Update(c.Context(), builderID(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(webhook)
}

func (h *APIHandlers) DeleteWebhook(c fiber.Ctx) error {
	err := h.webhookManager.Delete(c.Context(), builderID(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RotateWebhookSecret(c fiber.Ctx) error {
	id := c.Params("id")

	secret, err := h.webhookManager.RotateSecret(c.Context(), builderID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(SecretResponse{WebhookID: id, Secret: secret})
}

// TestWebhook sends a webhook.test delivery. A failed delivery is reported
// in the returned record, not as an API error.
func (h *APIHandlers) TestWebhook(c fiber.Ctx) error {
	delivery, err := h.webhookManager.Test(c.Context(), builderID(c), c.Params("id"))
	if delivery == nil {
		return handleServiceError(c, err)
	}

	return c.JSON(delivery)
}

func (h *APIHandlers) GetWebhookDeliveries(c fiber.Ctx) error {
	limit, err := parseLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	deliveries, err := h.webhookManager.Deliveries(c.Context(), builderID(c), c.Params("id"), limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"deliveries": deliveries})
}

func (h *APIHandlers) GetCacheStats(c fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(fiber.Map{"enabled": false})
	}

	return c.JSON(fiber.Map{
		"enabled": true,
		"stats":   h.cache.Stats(),
	})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	factories := h.registry.Actions()
	actions := make([]fiber.Map, 0, len(factories))

	for _, factory := range factories {
		actions = append(actions, fiber.Map{
			"id":          factory.ID(),
			"name":        factory.Name(),
			"description": factory.Description(),
			"schema":      factory.Schema(),
		})
	}

	return c.JSON(fiber.Map{"actions": actions})
}
