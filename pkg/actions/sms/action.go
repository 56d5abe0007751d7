// Package sms provides the send_sms action.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

var (
	ErrRecipientRequired = errors.New("sms recipient is required")
	ErrMessageRequired   = errors.New("sms message is required")
)

// Message is a text message addressed to a lead.
type Message struct {
	BuilderID string
	LeadID    string
	To        string
	Text      string
}

// Sender delivers text messages.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, message Message) error {
	s.Logger.InfoContext(ctx, "sms",
		"builder_id", message.BuilderID,
		"lead_id", message.LeadID,
		"to", message.To,
		"length", len(message.Text),
	)

	return nil
}

type Action struct {
	sender  Sender
	to      string
	message string
}

func NewAction(sender Sender, config map[string]any) (*Action, error) {
	message, _ := config["message"].(string)
	if strings.TrimSpace(message) == "" {
		return nil, ErrMessageRequired
	}

	to, _ := config["to"].(string)

	return &Action{sender: sender, to: to, message: message}, nil
}

func (a *Action) Execute(ctx context.Context, run *protocol.Run, _ *slog.Logger) (any, error) {
	to := a.to
	if to == "" {
		to, _ = run.Data["phone"].(string)
	}

	if to == "" {
		return nil, ErrRecipientRequired
	}

	err := a.sender.Send(ctx, Message{BuilderID: run.BuilderID, LeadID: run.LeadID, To: to, Text: a.message})
	if err != nil {
		return nil, fmt.Errorf("failed to send sms: %w", err)
	}

	return map[string]any{"sent": true, "to": to}, nil
}

type ActionFactory struct {
	sender Sender
}

func NewActionFactory(sender Sender) *ActionFactory {
	return &ActionFactory{sender: sender}
}

func (*ActionFactory) ID() string {
	return string(models.ActionSendSMS)
}

func (*ActionFactory) Name() string {
	return "Send SMS"
}

func (*ActionFactory) Description() string {
	return "Sends a text message to the lead's phone or to a fixed number."
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(f.sender, config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Phone number. Defaults to the lead's phone.",
			},
			"message": map[string]any{
				"type":      "string",
				"minLength": 1,
				"maxLength": 1600,
				"examples":  []string{"Hi {{lead.name}}, a site visit slot opened at {{property.title}}."},
			},
			"stop_on_failure": map[string]any{"type": "boolean"},
		},
		"required": []string{"message"},
	}
}
