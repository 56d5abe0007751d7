package webhook

import (
	"context"
	"net/http"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

// ActionFactory creates call_webhook actions.
type ActionFactory struct {
	notifier Notifier
	client   *http.Client
}

func NewActionFactory(notifier Notifier, client *http.Client) *ActionFactory {
	if client == nil {
		client = &http.Client{}
	}

	return &ActionFactory{notifier: notifier, client: client}
}

func (*ActionFactory) ID() string {
	return string(models.ActionCallWebhook)
}

func (*ActionFactory) Name() string {
	return "Call webhook"
}

func (*ActionFactory) Description() string {
	return "Notifies the builder's registered webhooks, or calls one URL directly when url is set."
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(f.notifier, f.client, config)
}

// Schema returns the JSON schema for configuring this action.
func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event": map[string]any{
				"type":        "string",
				"description": "Event name sent to registered webhooks. Defaults to the triggering event.",
				"examples":    []string{"lead.hot"},
			},
			"url": map[string]any{
				"title":       "URL",
				"type":        "string",
				"description": "Ad hoc endpoint. When set, registered webhooks are not notified.",
				"examples":    []string{"https://hooks.example.com/leads/{{lead_id}}"},
			},
			"method": map[string]any{
				"type":    "string",
				"default": "POST",
				"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"payload": map[string]any{
				"description": "Request body. Defaults to the lead payload.",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": 120,
			},
			"stop_on_failure": map[string]any{"type": "boolean"},
		},
		"additionalProperties": false,
	}
}
