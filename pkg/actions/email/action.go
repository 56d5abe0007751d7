// Package email provides the send_email action.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/protocol"
)

var (
	ErrRecipientRequired = errors.New("email recipient is required")
	ErrSubjectRequired   = errors.New("email subject is required")
)

// Message is an email addressed to a lead.
type Message struct {
	BuilderID string
	LeadID    string
	To        string
	Subject   string
	Body      string
}

// Mailer sends email on behalf of a builder.
type Mailer interface {
	Send(ctx context.Context, message Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, message Message) error {
	m.Logger.InfoContext(ctx, "email",
		"builder_id", message.BuilderID,
		"lead_id", message.LeadID,
		"to", message.To,
		"subject", message.Subject,
	)

	return nil
}

// Action sends one email. Without an explicit recipient the lead's email is used.
type Action struct {
	mailer  Mailer
	to      string
	subject string
	body    string
}

func NewAction(mailer Mailer, config map[string]any) (*Action, error) {
	subject, _ := config["subject"].(string)
	if strings.TrimSpace(subject) == "" {
		return nil, ErrSubjectRequired
	}

	to, _ := config["to"].(string)
	body, _ := config["body"].(string)

	return &Action{mailer: mailer, to: to, subject: subject, body: body}, nil
}

func (a *Action) Execute(ctx context.Context, run *protocol.Run, logger *slog.Logger) (any, error) {
	logger = logger.With("module", "send_email_action")

	to := a.to
	if to == "" {
		to, _ = run.Data["email"].(string)
	}

	if to == "" {
		return nil, ErrRecipientRequired
	}

	err := a.mailer.Send(ctx, Message{
		BuilderID: run.BuilderID,
		LeadID:    run.LeadID,
		To:        to,
		Subject:   a.subject,
		Body:      a.body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.DebugContext(ctx, "email sent", "to", to)

	return map[string]any{"sent": true, "to": to}, nil
}
