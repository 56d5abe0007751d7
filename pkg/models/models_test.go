package models_test

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryState_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    models.DeliveryState
		to      models.DeliveryState
		allowed bool
	}{
		{models.DeliveryPending, models.DeliverySending, true},
		{models.DeliveryPending, models.DeliverySuccess, false},
		{models.DeliverySending, models.DeliverySuccess, true},
		{models.DeliverySending, models.DeliveryRetrying, true},
		{models.DeliverySending, models.DeliveryFailed, true},
		{models.DeliveryRetrying, models.DeliverySending, true},
		{models.DeliveryRetrying, models.DeliveryFailed, true},
		{models.DeliverySuccess, models.DeliverySending, false},
		{models.DeliveryFailed, models.DeliveryRetrying, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, models.DeliverySuccess.Terminal())
	assert.True(t, models.DeliveryFailed.Terminal())
	assert.False(t, models.DeliveryRetrying.Terminal())
}

func TestWebhook_SecretNeverSerialized(t *testing.T) {
	t.Parallel()

	webhook := models.Webhook{ID: "w1", BuilderID: "b1", Secret: "top-secret", Events: []string{"lead.created"}}

	data, err := json.Marshal(webhook)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "top-secret")
	assert.True(t, webhook.Subscribes("lead.created"))
	assert.False(t, webhook.Subscribes("lead.updated"))
}

func TestCompareExecutionOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	automations := []*models.Automation{
		{ID: "low", Priority: 1, CreatedAt: base},
		{ID: "high-late", Priority: 10, CreatedAt: base.Add(time.Hour)},
		{ID: "high-early", Priority: 10, CreatedAt: base},
		{ID: "mid-b", Priority: 5, CreatedAt: base},
		{ID: "mid-a", Priority: 5, CreatedAt: base},
	}

	slices.SortFunc(automations, models.CompareExecutionOrder)

	ids := make([]string, 0, len(automations))
	for _, a := range automations {
		ids = append(ids, a.ID)
	}

	assert.Equal(t, []string{"high-early", "high-late", "mid-a", "mid-b", "low"}, ids)
}

func TestAutomation_ListensTo(t *testing.T) {
	t.Parallel()

	unscoped := models.Automation{}
	assert.True(t, unscoped.ListensTo("lead.created"))

	scoped := models.Automation{Events: []string{"lead.score_updated"}}
	assert.True(t, scoped.ListensTo("lead.score_updated"))
	assert.False(t, scoped.ListensTo("lead.created"))
}

func TestAutomationRun_Finish(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name    string
		results []models.ActionResult
		status  models.RunStatus
	}{
		{name: "no actions", results: nil, status: models.RunSuccess},
		{name: "all succeed", results: []models.ActionResult{{Success: true}, {Success: true}}, status: models.RunSuccess},
		{name: "some fail", results: []models.ActionResult{{Success: true}, {Success: false}}, status: models.RunPartial},
		{name: "all fail", results: []models.ActionResult{{Success: false}}, status: models.RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run := models.AutomationRun{Results: tt.results, Status: models.RunRunning}
			run.Finish(now)

			assert.Equal(t, tt.status, run.Status)
			require.NotNil(t, run.CompletedAt)
			assert.Equal(t, now, *run.CompletedAt)
		})
	}
}
