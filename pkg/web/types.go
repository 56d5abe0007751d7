package web

import (
	"time"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/models"
)

// BuilderHeader carries the tenant of every API request.
const BuilderHeader = "X-Builder-ID"

// IngestEventRequest is a business event posted by the CRM.
type IngestEventRequest struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"                  validate:"required"`
	LeadID     string         `json:"lead_id,omitempty"`
	PropertyID string         `json:"property_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
}

// IngestEventResponse lists the automations queued for the event.
type IngestEventResponse struct {
	EventID       string   `json:"event_id"`
	Evaluated     int      `json:"evaluated"`
	AutomationIDs []string `json:"automation_ids"`
}

// ParseConditionsRequest is the body of the expression parser endpoint.
type ParseConditionsRequest struct {
	Expressions []string        `json:"expressions" validate:"required,min=1,dive,required"`
	Logic       condition.Logic `json:"logic,omitempty" validate:"omitempty,oneof=and or"`
}

// ParseConditionsResponse carries the parsed tree.
type ParseConditionsResponse struct {
	Conditions condition.Tree `json:"conditions"`
	Fields     []string       `json:"fields"`
}

// WebhookCreatedResponse is returned once on registration. The secret is
// never shown again.
type WebhookCreatedResponse struct {
	Webhook *models.Webhook `json:"webhook"`
	Secret  string          `json:"secret"`
}

// SecretResponse carries a rotated secret.
type SecretResponse struct {
	WebhookID string `json:"webhook_id"`
	Secret    string `json:"secret"`
}
