// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrWebhookNotFound indicates a webhook was not found by the given identifier.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrPropertyNotFound indicates a property was not found by the given identifier.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrDeliveryNotFound indicates a webhook delivery was not found.
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// RecordError wraps a repository failure with the operation and record involved.
type RecordError struct {
	Op       string // Operation being performed (e.g., "ByID", "Save", "Delete")
	Resource string // Record kind, such as "webhook"
	ID       string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Resource, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for record errors.
func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, resource, id string, err error) *RecordError {
	return &RecordError{Op: op, Resource: resource, ID: id, Err: err}
}

// IsAutomationNotFound checks if an error indicates an automation was not found.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsWebhookNotFound checks if an error indicates a webhook was not found.
func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsPropertyNotFound checks if an error indicates a property was not found.
func IsPropertyNotFound(err error) bool {
	return errors.Is(err, ErrPropertyNotFound)
}

// IsNotFound checks if an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsAutomationNotFound(err) ||
		IsWebhookNotFound(err) ||
		IsLeadNotFound(err) ||
		IsPropertyNotFound(err) ||
		errors.Is(err, ErrDeliveryNotFound)
}

// ErrForbidden indicates a record owned by another builder.
var ErrForbidden = errors.New("record belongs to another builder")

// AuthorizationError reports an attempt to reach a record of another tenant.
// It is distinct from not-found so callers can answer 403 instead of 404.
type AuthorizationError struct {
	Op        string
	Resource  string
	ID        string
	BuilderID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: builder %s may not access %s %s", e.Op, e.BuilderID, e.Resource, e.ID)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrForbidden
}

// CheckOwner returns an AuthorizationError when ownerID differs from builderID.
func CheckOwner(op, resource, id, ownerID, builderID string) error {
	if ownerID != builderID {
		return &AuthorizationError{Op: op, Resource: resource, ID: id, BuilderID: builderID}
	}

	return nil
}

// IsForbidden checks if an error is a cross-tenant access.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
