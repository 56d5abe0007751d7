// Package persistence provides the record store used by the evaluation and
// dispatch pipeline.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/leadflow/pkg/models"
)

// DefaultHistoryLimit bounds delivery and run history queries when no limit is given.
const DefaultHistoryLimit = 50

type Persistence interface {
	AutomationRepository() AutomationRepository
	WebhookRepository() WebhookRepository
	LeadRepository() LeadRepository
	PropertyRepository() PropertyRepository
	DeliveryRepository() DeliveryRepository
	RunRepository() RunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// AutomationRepository stores automations. Lists are ordered by creation time.
type AutomationRepository interface {
	ByID(ctx context.Context, id string) (*models.Automation, error)
	ByBuilder(ctx context.Context, builderID string) ([]*models.Automation, error)
	ActiveByBuilder(ctx context.Context, builderID string) ([]*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
	Delete(ctx context.Context, id string) error
	RecordExecution(ctx context.Context, id string, success bool, at time.Time) error
}

// WebhookRepository stores webhooks including their secrets.
type WebhookRepository interface {
	ByID(ctx context.Context, id string) (*models.Webhook, error)
	ByBuilder(ctx context.Context, builderID string) ([]*models.Webhook, error)
	Save(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, id string, outcome models.DeliveryOutcome) error
}

type LeadRepository interface {
	ByID(ctx context.Context, id string) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
}

type PropertyRepository interface {
	ByID(ctx context.Context, id string) (*models.Property, error)
	Save(ctx context.Context, property *models.Property) error
}

// DeliveryRepository keeps webhook delivery history, newest first.
type DeliveryRepository interface {
	Save(ctx context.Context, delivery *models.Delivery) error
	ByID(ctx context.Context, id string) (*models.Delivery, error)
	ByWebhook(ctx context.Context, webhookID string, limit int) ([]*models.Delivery, error)
}

// RunRepository keeps automation run history, newest first.
type RunRepository interface {
	Save(ctx context.Context, run *models.AutomationRun) error
	ByAutomation(ctx context.Context, automationID string, limit int) ([]*models.AutomationRun, error)
}
