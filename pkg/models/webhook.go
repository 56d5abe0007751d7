package models

import (
	"slices"
	"time"
)

const (
	DefaultWebhookRetryCount     = 3
	DefaultWebhookTimeoutSeconds = 30
)

// Webhook is an external endpoint registered by a builder.
//
// Secret is never serialized; it is only handed back once by registration or
// rotation.
type Webhook struct {
	ID                   string         `json:"id"`
	BuilderID            string         `json:"builder_id"`
	Name                 string         `json:"name"`
	URL                  string         `json:"url"`
	Secret               string         `json:"-"`
	Events               []string       `json:"events"`
	Filters              map[string]any `json:"filters,omitempty"`
	RetryCount           int            `json:"retry_count"`
	TimeoutSeconds       int            `json:"timeout_seconds"`
	IsActive             bool           `json:"is_active"`
	TotalDeliveries      int            `json:"total_deliveries"`
	SuccessfulDeliveries int            `json:"successful_deliveries"`
	FailedDeliveries     int            `json:"failed_deliveries"`
	LastDeliveryAt       *time.Time     `json:"last_delivery_at,omitempty"`
	LastDeliveryStatus   DeliveryState  `json:"last_delivery_status,omitempty"`
	LastError            string         `json:"last_error,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Subscribes reports whether the webhook listens to eventType.
func (w *Webhook) Subscribes(eventType string) bool {
	return slices.Contains(w.Events, eventType)
}

// DeliveryOutcome is the final result of one delivery, folded into the
// webhook's statistics.
type DeliveryOutcome struct {
	State     DeliveryState
	Error     string
	Delivered time.Time
}
