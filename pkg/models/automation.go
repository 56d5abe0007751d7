package models

import (
	"slices"
	"time"

	"github.com/dukex/leadflow/pkg/condition"
)

// ActionType identifies an action handler.
type ActionType string

const (
	ActionSendEmail   ActionType = "send_email"
	ActionSendSMS     ActionType = "send_sms"
	ActionCRMSync     ActionType = "crm_sync"
	ActionTag         ActionType = "tag"
	ActionCallWebhook ActionType = "call_webhook"
)

// Action is one step of an automation.
type Action struct {
	Type   ActionType     `json:"type"   validate:"required"`
	Config map[string]any `json:"config"`
}

// Automation pairs a condition with the actions run when it matches.
type Automation struct {
	ID                   string         `json:"id"`
	BuilderID            string         `json:"builder_id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	Events               []string       `json:"events,omitempty"`
	Conditions           condition.Tree `json:"conditions"`
	Actions              []Action       `json:"actions"`
	Priority             int            `json:"priority"`
	IsActive             bool           `json:"is_active"`
	TotalExecutions      int            `json:"total_executions"`
	SuccessfulExecutions int            `json:"successful_executions"`
	FailedExecutions     int            `json:"failed_executions"`
	LastExecutedAt       *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// ListensTo reports whether the automation reacts to eventType. An empty
// event list means every event.
func (a *Automation) ListensTo(eventType string) bool {
	return len(a.Events) == 0 || slices.Contains(a.Events, eventType)
}

// CompareExecutionOrder orders automations by priority descending, then
// creation time ascending, then id.
func CompareExecutionOrder(a, b *Automation) int {
	switch {
	case a.Priority != b.Priority:
		if a.Priority > b.Priority {
			return -1
		}

		return 1
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}

		return 0
	}
}
