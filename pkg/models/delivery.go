package models

import (
	"encoding/json"
	"time"
)

// DeliveryState is the lifecycle state of a webhook delivery.
type DeliveryState string

const (
	DeliveryPending  DeliveryState = "pending"
	DeliverySending  DeliveryState = "sending"
	DeliverySuccess  DeliveryState = "success"
	DeliveryRetrying DeliveryState = "retrying"
	DeliveryFailed   DeliveryState = "failed"
)

// MaxResponseBodyLength bounds the response body kept on a delivery record.
const MaxResponseBodyLength = 5000

var deliveryTransitions = map[DeliveryState][]DeliveryState{
	DeliveryPending:  {DeliverySending},
	DeliverySending:  {DeliverySuccess, DeliveryRetrying, DeliveryFailed},
	DeliveryRetrying: {DeliverySending, DeliveryFailed},
}

// Terminal reports whether no transition leaves s.
func (s DeliveryState) Terminal() bool {
	return s == DeliverySuccess || s == DeliveryFailed
}

// CanTransition reports whether s may move to next.
func (s DeliveryState) CanTransition(next DeliveryState) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// Delivery records one webhook delivery across its attempts.
type Delivery struct {
	ID              string          `json:"id"`
	WebhookID       string          `json:"webhook_id"`
	BuilderID       string          `json:"builder_id"`
	AutomationRunID string          `json:"automation_run_id,omitempty"`
	Event           string          `json:"event"`
	Payload         json.RawMessage `json:"payload"`
	State           DeliveryState   `json:"state"`
	AttemptNumber   int             `json:"attempt_number"`
	StatusCode      int             `json:"status_code,omitempty"`
	ResponseBody    string          `json:"response_body,omitempty"`
	ResponseTimeMs  int64           `json:"response_time_ms,omitempty"`
	Error           string          `json:"error,omitempty"`
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
