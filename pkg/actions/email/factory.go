package email

import (
	"context"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

// ActionFactory creates send_email actions.
type ActionFactory struct {
	mailer Mailer
}

func NewActionFactory(mailer Mailer) *ActionFactory {
	return &ActionFactory{mailer: mailer}
}

func (*ActionFactory) ID() string {
	return string(models.ActionSendEmail)
}

func (*ActionFactory) Name() string {
	return "Send email"
}

func (*ActionFactory) Description() string {
	return "Sends an email to the lead or to a fixed address. Subject and body support {{field}} placeholders."
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(f.mailer, config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient address. Defaults to the lead's email.",
				"examples":    []string{"sales@builder.example", "{{lead.email}}"},
			},
			"subject": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"New hot lead: {{lead.name}}"},
			},
			"body": map[string]any{
				"type":     "string",
				"examples": []string{"{{lead.name}} scored {{score}} for {{property.title}}."},
			},
			"stop_on_failure": map[string]any{"type": "boolean"},
		},
		"required": []string{"subject"},
	}
}
