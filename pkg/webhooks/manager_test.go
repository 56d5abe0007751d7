package webhooks_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/file"
	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, opts ...webhooks.Option) (*webhooks.Manager, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	opts = append([]webhooks.Option{
		webhooks.WithBackoff(webhooks.BackoffConfig{
			InitialInterval: time.Millisecond,
			Multiplier:      2,
			MaxInterval:     5 * time.Millisecond,
		}),
	}, opts...)

	manager := webhooks.NewManager(
		slog.New(slog.DiscardHandler),
		store.WebhookRepository(),
		store.DeliveryRepository(),
		opts...,
	)

	return manager, store
}

func intPtr(v int) *int {
	return &v
}

func TestManager_Register(t *testing.T) {
	t.Parallel()

	manager, store := newManager(t)
	ctx := context.Background()

	webhook, secret, err := manager.Register(ctx, "b1", webhooks.RegisterInput{
		Name:    "  CRM  ",
		URL:     "https://crm.example.com/hooks",
		Events:  []string{"lead.created"},
		Filters: map[string]any{"score_min": float64(8)},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, webhook.ID)
	assert.Equal(t, "CRM", webhook.Name)
	assert.Len(t, secret, 64)
	assert.True(t, webhook.IsActive)
	assert.Equal(t, models.DefaultWebhookRetryCount, webhook.RetryCount)
	assert.Equal(t, models.DefaultWebhookTimeoutSeconds, webhook.TimeoutSeconds)

	stored, err := store.WebhookRepository().ByID(ctx, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, secret, stored.Secret)

	listed, err := manager.List(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	encoded, err := json.Marshal(listed)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), secret)
	assert.NotContains(t, string(encoded), `"secret"`)
}

func TestManager_RegisterValidation(t *testing.T) {
	t.Parallel()

	manager, _ := newManager(t)

	valid := func() webhooks.RegisterInput {
		return webhooks.RegisterInput{Name: "CRM", URL: "https://crm.example.com", Events: []string{"lead.created"}}
	}

	tests := []struct {
		name   string
		mutate func(*webhooks.RegisterInput)
	}{
		{name: "missing name", mutate: func(in *webhooks.RegisterInput) { in.Name = "" }},
		{name: "ftp url", mutate: func(in *webhooks.RegisterInput) { in.URL = "ftp://crm.example.com" }},
		{name: "not a url", mutate: func(in *webhooks.RegisterInput) { in.URL = "crm" }},
		{name: "no events", mutate: func(in *webhooks.RegisterInput) { in.Events = nil }},
		{name: "blank event", mutate: func(in *webhooks.RegisterInput) { in.Events = []string{""} }},
		{name: "too many retries", mutate: func(in *webhooks.RegisterInput) { in.RetryCount = intPtr(11) }},
		{name: "timeout too long", mutate: func(in *webhooks.RegisterInput) { in.TimeoutSeconds = intPtr(121) }},
		{name: "zero timeout", mutate: func(in *webhooks.RegisterInput) { in.TimeoutSeconds = intPtr(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input := valid()
			tt.mutate(&input)

			_, _, err := manager.Register(context.Background(), "b1", input)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors

			assert.ErrorAs(t, err, &validationErrors)
		})
	}

	_, _, err := manager.Register(context.Background(), "", valid())
	assert.Error(t, err)

	webhook, _, err := manager.Register(context.Background(), "b1", webhooks.RegisterInput{
		Name: "No retries", URL: "http://localhost:9000", Events: []string{"lead.created"},
		RetryCount: intPtr(0), TimeoutSeconds: intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, webhook.RetryCount)
	assert.Equal(t, 5, webhook.TimeoutSeconds)
}

func TestManager_TenantScoping(t *testing.T) {
	t.Parallel()

	manager, _ := newManager(t)
	ctx := context.Background()

	webhook, _, err := manager.Register(ctx, "b1", webhooks.RegisterInput{
		Name: "CRM", URL: "https://crm.example.com", Events: []string{"lead.created"},
	})
	require.NoError(t, err)

	_, err = manager.Get(ctx, "b2", webhook.ID)
	assert.True(t, persistence.IsForbidden(err))

	_, err = manager.Update(ctx, "b2", webhook.ID, webhooks.UpdateInput{IsActive: new(bool)})
	assert.True(t, persistence.IsForbidden(err))

	_, err = manager.RotateSecret(ctx, "b2", webhook.ID)
	assert.True(t, persistence.IsForbidden(err))

	_, err = manager.Deliveries(ctx, "b2", webhook.ID, 10)
	assert.True(t, persistence.IsForbidden(err))

	assert.True(t, persistence.IsForbidden(manager.Delete(ctx, "b2", webhook.ID)))

	_, err = manager.Get(ctx, "b1", "missing")
	assert.True(t, persistence.IsWebhookNotFound(err))

	others, err := manager.List(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestManager_UpdateRotateDelete(t *testing.T) {
	t.Parallel()

	manager, store := newManager(t)
	ctx := context.Background()

	webhook, secret, err := manager.Register(ctx, "b1", webhooks.RegisterInput{
		Name: "CRM", URL: "https://crm.example.com", Events: []string{"lead.created"},
	})
	require.NoError(t, err)

	name := "CRM v2"
	inactive := false
	filters := map[string]any{"stage": []any{"hot"}}

	updated, err := manager.Update(ctx, "b1", webhook.ID, webhooks.UpdateInput{
		Name:       &name,
		Events:     []string{"lead.created", "lead.stage_changed"},
		Filters:    &filters,
		IsActive:   &inactive,
		RetryCount: intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "CRM v2", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 5, updated.RetryCount)
	assert.Equal(t, filters, updated.Filters)

	badURL := "mailto:someone@example.com"

	_, err = manager.Update(ctx, "b1", webhook.ID, webhooks.UpdateInput{URL: &badURL})
	assert.Error(t, err)

	_, err = manager.Update(ctx, "b1", webhook.ID, webhooks.UpdateInput{Events: []string{}})
	assert.ErrorIs(t, err, webhooks.ErrNoEvents)

	rotated, err := manager.RotateSecret(ctx, "b1", webhook.ID)
	require.NoError(t, err)
	assert.NotEqual(t, secret, rotated)

	stored, err := store.WebhookRepository().ByID(ctx, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated, stored.Secret)
	assert.Equal(t, "CRM v2", stored.Name)

	require.NoError(t, manager.Delete(ctx, "b1", webhook.ID))

	_, err = manager.Get(ctx, "b1", webhook.ID)
	assert.True(t, persistence.IsWebhookNotFound(err))
}
