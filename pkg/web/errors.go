package web

import (
	"errors"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func statusProblem(c fiber.Ctx, status int, kind, detail string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(problem)
}

// handleServiceError maps service and persistence errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors

	switch {
	case condition.IsConfigurationError(err):
		return statusProblem(c, fiber.StatusBadRequest, "configuration_error", err.Error())

	case services.IsValidationError(err), errors.As(err, &validationErrs):
		return statusProblem(c, fiber.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, webhooks.ErrNoEvents),
		errors.Is(err, webhooks.ErrInvalidURL),
		errors.Is(err, events.ErrBuilderIDRequired),
		errors.Is(err, events.ErrEventTypeRequired),
		errors.Is(err, services.ErrEmptyBuilderID):
		return statusProblem(c, fiber.StatusBadRequest, "validation_error", err.Error())

	case services.IsForbidden(err):
		return statusProblem(c, fiber.StatusForbidden, "forbidden", "resource belongs to another builder")

	case persistence.IsAutomationNotFound(err):
		return statusProblem(c, fiber.StatusNotFound, "automation_not_found", "automation not found")

	case persistence.IsWebhookNotFound(err):
		return statusProblem(c, fiber.StatusNotFound, "webhook_not_found", "webhook not found")

	case persistence.IsNotFound(err):
		return statusProblem(c, fiber.StatusNotFound, "not_found", err.Error())

	default:
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
