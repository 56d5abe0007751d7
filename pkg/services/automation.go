package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/trigger"
)

// ActionValidator checks action types and configurations before they are saved.
type ActionValidator interface {
	HasAction(actionType string) bool
	ValidateConfig(actionType string, config map[string]any) error
}

type Automation struct {
	persistence persistence.Persistence
	actions     ActionValidator
	contexts    *trigger.ContextBuilder
	evaluator   *trigger.Evaluator
}

// NewAutomation creates a new automation service.
func NewAutomation(
	store persistence.Persistence,
	actions ActionValidator,
	contexts *trigger.ContextBuilder,
	evaluator *trigger.Evaluator,
) *Automation {
	return &Automation{
		persistence: store,
		actions:     actions,
		contexts:    contexts,
		evaluator:   evaluator,
	}
}

// HealthCheck checks the health of the persistence layer.
func (a *Automation) HealthCheck(ctx context.Context) (string, bool) {
	if a.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := a.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ConditionInput is either a condition tree or a list of expressions joined
// with Logic (default and).
type ConditionInput struct {
	Conditions  *condition.Tree `json:"conditions,omitempty"`
	Expressions []string        `json:"expressions,omitempty"`
	Logic       condition.Logic `json:"logic,omitempty"`
}

// CreateAutomationRequest contains the fields of a new automation.
type CreateAutomationRequest struct {
	ConditionInput

	Name        string          `json:"name"`
	Description string          `json:"description"`
	Events      []string        `json:"events"`
	Actions     []models.Action `json:"actions"`
	Priority    int             `json:"priority"`
	IsActive    *bool           `json:"is_active"`
}

// UpdateAutomationRequest changes only the fields that are set.
type UpdateAutomationRequest struct {
	ConditionInput

	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Events      *[]string        `json:"events"`
	Actions     *[]models.Action `json:"actions"`
	Priority    *int             `json:"priority"`
	IsActive    *bool            `json:"is_active"`
}

func (a *Automation) List(ctx context.Context, builderID string) ([]*models.Automation, error) {
	if builderID == "" {
		return nil, ErrEmptyBuilderID
	}

	automations, err := a.persistence.AutomationRepository().ByBuilder(ctx, builderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list automations: %w", err)
	}

	return automations, nil
}

// Get returns the automation when it belongs to builderID.
func (a *Automation) Get(ctx context.Context, builderID, id string) (*models.Automation, error) {
	automation, err := a.persistence.AutomationRepository().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = persistence.CheckOwner("Get", "automation", id, automation.BuilderID, builderID)
	if err != nil {
		return nil, err
	}

	return automation, nil
}

func (a *Automation) Create(ctx context.Context, builderID string, req CreateAutomationRequest) (*models.Automation, error) {
	if builderID == "" {
		return nil, ErrEmptyBuilderID
	}

	tree, err := resolveConditions(req.ConditionInput)
	if err != nil {
		return nil, err
	}

	automation := &models.Automation{
		BuilderID:   builderID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Events:      req.Events,
		Actions:     req.Actions,
		Priority:    req.Priority,
		IsActive:    true,
	}

	if tree != nil {
		automation.Conditions = *tree
	}

	if req.IsActive != nil {
		automation.IsActive = *req.IsActive
	}

	err = a.validate("CreateAutomation", automation)
	if err != nil {
		return nil, err
	}

	err = a.persistence.AutomationRepository().Save(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	return automation, nil
}

func (a *Automation) Update(ctx context.Context, builderID, id string, req UpdateAutomationRequest) (*models.Automation, error) {
	automation, err := a.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	tree, err := resolveConditions(req.ConditionInput)
	if err != nil {
		return nil, err
	}

	if tree != nil {
		automation.Conditions = *tree
	}

	if req.Name != nil {
		automation.Name = strings.TrimSpace(*req.Name)
	}

	if req.Description != nil {
		automation.Description = *req.Description
	}

	if req.Events != nil {
		automation.Events = *req.Events
	}

	if req.Actions != nil {
		automation.Actions = *req.Actions
	}

	if req.Priority != nil {
		automation.Priority = *req.Priority
	}

	if req.IsActive != nil {
		automation.IsActive = *req.IsActive
	}

	err = a.validate("UpdateAutomation", automation)
	if err != nil {
		return nil, err
	}

	err = a.persistence.AutomationRepository().Save(ctx, automation)
	if err != nil {
		return nil, fmt.Errorf("failed to save automation: %w", err)
	}

	return automation, nil
}

func (a *Automation) Delete(ctx context.Context, builderID, id string) error {
	_, err := a.Get(ctx, builderID, id)
	if err != nil {
		return err
	}

	return a.persistence.AutomationRepository().Delete(ctx, id)
}

// Runs returns the automation's run history, newest first.
func (a *Automation) Runs(ctx context.Context, builderID, id string, limit int) ([]*models.AutomationRun, error) {
	_, err := a.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = persistence.DefaultHistoryLimit
	}

	return a.persistence.RunRepository().ByAutomation(ctx, id, limit)
}

// PreviewRequest describes the event to evaluate. When Context is set it is
// used as is instead of loading the event's records.
type PreviewRequest struct {
	Type       string         `json:"type"`
	LeadID     string         `json:"lead_id"`
	PropertyID string         `json:"property_id"`
	Data       map[string]any `json:"data"`
	Context    map[string]any `json:"context"`
}

// PreviewResponse is a traced evaluation of one automation.
type PreviewResponse struct {
	trigger.Result

	Listens bool            `json:"listens"`
	Context trigger.Context `json:"context"`
}

// Preview evaluates the automation's conditions with a full trace. It never
// executes actions.
func (a *Automation) Preview(ctx context.Context, builderID, id string, req PreviewRequest) (*PreviewResponse, error) {
	automation, err := a.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	data := trigger.Context(req.Context)

	if data == nil {
		data, err = a.contexts.Build(ctx, events.LeadEvent{
			Type:       req.Type,
			BuilderID:  builderID,
			LeadID:     req.LeadID,
			PropertyID: req.PropertyID,
			Data:       req.Data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build context: %w", err)
		}
	}

	response := &PreviewResponse{
		Listens: req.Type == "" || automation.ListensTo(req.Type),
		Context: data,
	}

	if automation.Conditions.IsZero() {
		response.Matched = true

		return response, nil
	}

	response.Result = a.evaluator.EvaluateWithTrace(ctx, automation.Conditions.Root, data)

	return response, nil
}

// ParseConditions turns expressions into a group. Every unparseable
// expression is reported.
func ParseConditions(expressions []string, logic condition.Logic) (condition.Group, error) {
	if logic == "" {
		logic = condition.And
	}

	if !logic.Valid() {
		return condition.Group{}, &condition.ConfigurationError{Op: "ParseConditions", Err: fmt.Errorf("%w: %q", condition.ErrUnknownLogic, logic)}
	}

	group, errs := condition.ParseAll(expressions, logic)
	if len(errs) > 0 {
		return condition.Group{}, errors.Join(errs...)
	}

	return group, nil
}

// resolveConditions returns nil when the input leaves the conditions unchanged.
func resolveConditions(input ConditionInput) (*condition.Tree, error) {
	switch {
	case input.Conditions != nil && len(input.Expressions) > 0:
		return nil, NewValidationError("resolveConditions", "ambiguous_conditions",
			"set either conditions or expressions, not both", ErrInvalidRequest)
	case input.Conditions != nil:
		if input.Conditions.IsZero() {
			return input.Conditions, nil
		}

		err := condition.Validate(input.Conditions.Root)
		if err != nil {
			return nil, err
		}

		return input.Conditions, nil
	case input.Expressions != nil:
		if len(input.Expressions) == 0 {
			return &condition.Tree{}, nil
		}

		group, err := ParseConditions(input.Expressions, input.Logic)
		if err != nil {
			return nil, err
		}

		return &condition.Tree{Root: group}, nil
	default:
		return nil, nil
	}
}

func (a *Automation) validate(op string, automation *models.Automation) error {
	if automation.Name == "" {
		return NewValidationError(op, "name_required", "automation name is required", ErrNameRequired)
	}

	if len(automation.Actions) == 0 {
		return NewValidationError(op, "actions_required", "automation must have at least one action", ErrActionsRequired)
	}

	for i, action := range automation.Actions {
		if !a.actions.HasAction(string(action.Type)) {
			return NewValidationError(op, "unknown_action_type",
				fmt.Sprintf("action %d: unknown type %q", i, action.Type), ErrUnknownActionType)
		}

		err := a.actions.ValidateConfig(string(action.Type), action.Config)
		if err != nil {
			return NewValidationError(op, "invalid_action_config",
				fmt.Sprintf("action %d: %v", i, err), fmt.Errorf("%w: %w", ErrInvalidActionConfig, err))
		}
	}

	return nil
}
