package models

import "time"

// RunStatus summarizes an automation run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// ActionResult is the outcome of one action within a run.
type ActionResult struct {
	ActionType ActionType `json:"action_type"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	Data       any        `json:"data,omitempty"`
}

// AutomationRun records one execution of an automation's actions.
type AutomationRun struct {
	ID           string         `json:"id"`
	AutomationID string         `json:"automation_id"`
	BuilderID    string         `json:"builder_id"`
	EventID      string         `json:"event_id"`
	EventType    string         `json:"event_type"`
	LeadID       string         `json:"lead_id,omitempty"`
	Status       RunStatus      `json:"status"`
	Results      []ActionResult `json:"results"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Finish sets the completion time and derives the status from the results.
func (r *AutomationRun) Finish(at time.Time) {
	r.CompletedAt = &at

	failed := 0

	for _, result := range r.Results {
		if !result.Success {
			failed++
		}
	}

	switch {
	case failed == 0:
		r.Status = RunSuccess
	case failed == len(r.Results):
		r.Status = RunFailed
	default:
		r.Status = RunPartial
	}
}
