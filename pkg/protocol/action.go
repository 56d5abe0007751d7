// Package protocol defines the contracts between the action executor and the
// action handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/leadflow/pkg/trigger"
)

// Run is one execution of an automation's actions for one event.
type Run struct {
	ID           string
	AutomationID string
	BuilderID    string
	EventID      string
	EventType    string
	LeadID       string

	// Data is the evaluation context snapshot. Actions may update it so that
	// later actions of the same run see the change.
	Data trigger.Context
}

// Action is a configured handler instance.
type Action interface {
	Execute(ctx context.Context, run *Run, logger *slog.Logger) (any, error)
}

// ActionFactory creates actions of one type and describes their configuration.
type ActionFactory interface {
	// Create builds an action from an already interpolated configuration.
	Create(ctx context.Context, config map[string]any) (Action, error)

	// ID returns the action type handled by this factory.
	ID() string

	Name() string

	Description() string

	// Schema returns the JSON schema of the configuration.
	Schema() map[string]any
}
