package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordError(t *testing.T) {
	t.Parallel()

	err := persistence.NewRecordError("ByID", "webhook", "w1", persistence.ErrWebhookNotFound)

	assert.Equal(t, "ByID operation failed for webhook w1: webhook not found", err.Error())
	assert.ErrorIs(t, err, persistence.ErrWebhookNotFound)
	assert.True(t, persistence.IsWebhookNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, persistence.IsAutomationNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "automation", err: persistence.ErrAutomationNotFound, expected: true},
		{name: "webhook", err: persistence.ErrWebhookNotFound, expected: true},
		{name: "lead", err: persistence.ErrLeadNotFound, expected: true},
		{name: "property", err: persistence.ErrPropertyNotFound, expected: true},
		{name: "delivery", err: persistence.ErrDeliveryNotFound, expected: true},
		{name: "other", err: errors.New("boom"), expected: false},
		{name: "nil", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, persistence.IsNotFound(tt.err))
		})
	}
}

func TestCheckOwner(t *testing.T) {
	t.Parallel()

	assert.NoError(t, persistence.CheckOwner("Get", "webhook", "w1", "b1", "b1"))

	err := persistence.CheckOwner("Get", "webhook", "w1", "b1", "b2")
	require.Error(t, err)
	assert.True(t, persistence.IsForbidden(err))
	assert.False(t, persistence.IsNotFound(err))

	var authErr *persistence.AuthorizationError

	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &authErr)
	assert.Equal(t, "b2", authErr.BuilderID)
	assert.Equal(t, "Get: builder b2 may not access webhook w1", err.Error())
}
