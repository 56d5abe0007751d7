// Package crm provides the crm_sync action.
package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

var ErrProviderRequired = errors.New("crm provider is required")

// Record is the lead data pushed to an external CRM.
type Record struct {
	Provider  string
	BuilderID string
	LeadID    string
	Fields    map[string]any
}

// Syncer pushes lead records to an external CRM.
type Syncer interface {
	Sync(ctx context.Context, record Record) error
}

// LogSyncer writes records to the log instead of calling a CRM.
type LogSyncer struct {
	Logger *slog.Logger
}

func (s LogSyncer) Sync(ctx context.Context, record Record) error {
	s.Logger.InfoContext(ctx, "crm sync",
		"provider", record.Provider,
		"builder_id", record.BuilderID,
		"lead_id", record.LeadID,
		"fields", len(record.Fields),
	)

	return nil
}

// Action syncs the lead to a CRM. With a field list only those fields of the
// run payload are sent; otherwise the whole payload is.
type Action struct {
	syncer   Syncer
	provider string
	fields   []string
}

func NewAction(syncer Syncer, config map[string]any) (*Action, error) {
	provider, _ := config["provider"].(string)
	if strings.TrimSpace(provider) == "" {
		return nil, ErrProviderRequired
	}

	var fields []string

	if list, ok := config["fields"].([]any); ok {
		for _, item := range list {
			if name, ok := item.(string); ok && name != "" {
				fields = append(fields, name)
			}
		}
	}

	return &Action{syncer: syncer, provider: provider, fields: fields}, nil
}

func (a *Action) Execute(ctx context.Context, run *protocol.Run, _ *slog.Logger) (any, error) {
	payload := run.Data.Payload()

	if len(a.fields) > 0 {
		selected := make(map[string]any, len(a.fields))

		for _, name := range a.fields {
			if value, ok := run.Data.Lookup(name); ok {
				selected[name] = value
			}
		}

		payload = selected
	}

	err := a.syncer.Sync(ctx, Record{
		Provider:  a.provider,
		BuilderID: run.BuilderID,
		LeadID:    run.LeadID,
		Fields:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync lead to %s: %w", a.provider, err)
	}

	return map[string]any{"synced": true, "provider": a.provider, "fields": len(payload)}, nil
}

type ActionFactory struct {
	syncer Syncer
}

func NewActionFactory(syncer Syncer) *ActionFactory {
	return &ActionFactory{syncer: syncer}
}

func (*ActionFactory) ID() string {
	return string(models.ActionCRMSync)
}

func (*ActionFactory) Name() string {
	return "CRM sync"
}

func (*ActionFactory) Description() string {
	return "Pushes the lead to an external CRM."
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(f.syncer, config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"provider": map[string]any{
				"type":     "string",
				"examples": []string{"zoho", "salesforce", "hubspot"},
			},
			"fields": map[string]any{
				"type":        "array",
				"description": "Context fields to send. Defaults to the lead payload.",
				"items":       map[string]any{"type": "string"},
			},
			"stop_on_failure": map[string]any{"type": "boolean"},
		},
		"required": []string{"provider"},
	}
}
