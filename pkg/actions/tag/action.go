// Package tag provides the tag action, which edits the tags of the run's lead.
package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/protocol"
)

type Mode string

const (
	ModeAdd     Mode = "add"
	ModeRemove  Mode = "remove"
	ModeReplace Mode = "replace"
)

var (
	ErrLeadRequired = errors.New("tag action requires a lead")
	ErrTagsRequired = errors.New("tags are required")
	ErrInvalidMode  = errors.New("invalid tag mode")
)

type Action struct {
	leads persistence.LeadRepository
	mode  Mode
	tags  []string
}

func NewAction(leads persistence.LeadRepository, config map[string]any) (*Action, error) {
	mode := ModeAdd

	if raw, ok := config["mode"].(string); ok && raw != "" {
		mode = Mode(strings.ToLower(raw))
	}

	if mode != ModeAdd && mode != ModeRemove && mode != ModeReplace {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	tags := parseTags(config["tags"])
	if len(tags) == 0 && mode != ModeReplace {
		return nil, ErrTagsRequired
	}

	return &Action{leads: leads, mode: mode, tags: tags}, nil
}

// parseTags accepts a list or a comma separated string.
func parseTags(raw any) []string {
	tags := []string{}

	add := func(value string) {
		value = strings.TrimSpace(value)
		if value != "" && !slices.Contains(tags, value) {
			tags = append(tags, value)
		}
	}

	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case []string:
		for _, s := range v {
			add(s)
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}

	return tags
}

func (a *Action) Execute(ctx context.Context, run *protocol.Run, logger *slog.Logger) (any, error) {
	if run.LeadID == "" {
		return nil, ErrLeadRequired
	}

	lead, err := a.leads.ByID(ctx, run.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	err = persistence.CheckOwner("Tag", "lead", lead.ID, lead.BuilderID, run.BuilderID)
	if err != nil {
		return nil, err
	}

	before := slices.Clone(lead.Tags)
	lead.Tags = a.apply(lead.Tags)

	if !slices.Equal(before, lead.Tags) {
		err = a.leads.Save(ctx, lead)
		if err != nil {
			return nil, fmt.Errorf("failed to save lead tags: %w", err)
		}

		logger.DebugContext(ctx, "lead tags updated", "lead_id", lead.ID, "tags", lead.Tags)
	}

	if run.Data != nil {
		run.Data.RefreshLead(lead)
	}

	return map[string]any{"tags": lead.Tags}, nil
}

func (a *Action) apply(current []string) []string {
	switch a.mode {
	case ModeReplace:
		return slices.Clone(a.tags)
	case ModeRemove:
		return slices.DeleteFunc(slices.Clone(current), func(tag string) bool {
			return slices.Contains(a.tags, tag)
		})
	default:
		result := slices.Clone(current)

		for _, tag := range a.tags {
			if !slices.Contains(result, tag) {
				result = append(result, tag)
			}
		}

		return result
	}
}

type ActionFactory struct {
	leads persistence.LeadRepository
}

func NewActionFactory(leads persistence.LeadRepository) *ActionFactory {
	return &ActionFactory{leads: leads}
}

func (*ActionFactory) ID() string {
	return string(models.ActionTag)
}

func (*ActionFactory) Name() string {
	return "Tag lead"
}

func (*ActionFactory) Description() string {
	return "Adds, removes or replaces tags on the lead. Later actions of the run see the new tags."
}

func (f *ActionFactory) Create(_ context.Context, config map[string]any) (protocol.Action, error) {
	return NewAction(f.leads, config)
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type":    "string",
				"enum":    []string{string(ModeAdd), string(ModeRemove), string(ModeReplace)},
				"default": string(ModeAdd),
			},
			"tags": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"examples": [][]string{{"hot", "follow-up"}},
			},
			"stop_on_failure": map[string]any{"type": "boolean"},
		},
		"required": []string{"tags"},
	}
}
