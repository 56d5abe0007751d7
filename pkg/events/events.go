// Package events defines the business event catalog and the messages
// exchanged between the dispatcher and the workers.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every queue message.
const Topic = "leadflow.automations"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// Business events accepted by the dispatcher.
const (
	LeadCreated      = "lead.created"
	LeadUpdated      = "lead.updated"
	LeadStageChanged = "lead.stage_changed"
	LeadScoreUpdated = "lead.score_updated"
	PropertyCreated  = "property.created"
	PropertyUpdated  = "property.updated"
	WebhookTest      = "webhook.test"
)

// Catalog lists the business events known to the platform.
var Catalog = []string{
	LeadCreated,
	LeadUpdated,
	LeadStageChanged,
	LeadScoreUpdated,
	PropertyCreated,
	PropertyUpdated,
}

// Queue messages.
const (
	AutomationsMatchedEvent     EventType = "automations.matched"
	AutomationRunCompletedEvent EventType = "automation_run.completed"
)

var (
	ErrBuilderIDRequired = errors.New("builder_id is required")
	ErrEventTypeRequired = errors.New("event type is required")
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	BuilderID string         `json:"builder_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, builderID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		BuilderID: builderID,
		Metadata:  make(map[string]any),
	}
}

// LeadEvent is an incoming business event such as a lead changing stage.
type LeadEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	BuilderID  string         `json:"builder_id"`
	LeadID     string         `json:"lead_id,omitempty"`
	PropertyID string         `json:"property_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Validate checks the fields the dispatcher relies on.
func (e LeadEvent) Validate() error {
	if e.BuilderID == "" {
		return ErrBuilderIDRequired
	}

	if e.Type == "" {
		return ErrEventTypeRequired
	}

	return nil
}

// AsMap returns the event in the shape exposed to conditions under `event`.
func (e LeadEvent) AsMap() map[string]any {
	event := map[string]any{
		"id":          e.ID,
		"type":        e.Type,
		"builder_id":  e.BuilderID,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}

	if e.LeadID != "" {
		event["lead_id"] = e.LeadID
	}

	if e.PropertyID != "" {
		event["property_id"] = e.PropertyID
	}

	if e.Data != nil {
		event["data"] = e.Data
	}

	return event
}

// MatchedRun is one automation scheduled for execution.
type MatchedRun struct {
	RunID        string `json:"run_id"`
	AutomationID string `json:"automation_id"`
	Priority     int    `json:"priority"`
}

// AutomationsMatched hands every automation matched by one event to a worker,
// in execution order.
type AutomationsMatched struct {
	BaseEvent

	Event   LeadEvent      `json:"event"`
	Context map[string]any `json:"context"`
	Runs    []MatchedRun   `json:"runs"`
}

func (e AutomationsMatched) GetType() EventType {
	return AutomationsMatchedEvent
}

// AutomationRunCompleted is published by a worker after a run finishes.
type AutomationRunCompleted struct {
	BaseEvent

	RunID        string `json:"run_id"`
	AutomationID string `json:"automation_id"`
	Status       string `json:"status"`
	Failed       int    `json:"failed"`
}

func (e AutomationRunCompleted) GetType() EventType {
	return AutomationRunCompletedEvent
}
