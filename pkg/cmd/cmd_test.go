package cmd_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/config"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence/file"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence_FileScheme(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	for _, url := range []string{"file://" + t.TempDir(), t.TempDir()} {
		store, err := cmd.NewPersistence(ctx, logger, url)
		require.NoError(t, err)

		_, ok := store.(*file.Persistence)
		assert.True(t, ok, url)
		require.NoError(t, store.HealthCheck(ctx))
	}
}

func TestNewEventBus(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)

	bus, err := cmd.NewEventBus(cmd.EventBusGoChannel, nil, "", logger)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = cmd.NewEventBus("rabbitmq", nil, "", logger)
	require.ErrorContains(t, err, "unsupported event bus provider")

	_, err = cmd.NewEventBus(cmd.EventBusKafka, nil, "workers", logger)
	require.Error(t, err)
}

func TestNewCache_MemoryWithSweeper(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	evaluationCache, err := cmd.NewCache(ctx, "", config.CacheConfig{Capacity: 10, TTL: time.Minute}, logger)
	require.NoError(t, err)

	_, ok := evaluationCache.(*cache.Memory)
	require.True(t, ok)
	assert.Equal(t, 10, evaluationCache.Stats().Capacity)

	stop, err := cmd.StartSweeper(evaluationCache, "@every 1h", logger)
	require.NoError(t, err)
	stop(ctx)

	_, err = cmd.StartSweeper(evaluationCache, "not a schedule", logger)
	require.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	engine, err := cmd.NewEngine(ctx, logger, cmd.EngineOptions{DatabaseURL: "file://" + t.TempDir()})
	require.NoError(t, err)
	defer engine.Close(ctx)

	assert.True(t, engine.Registry.HasAction(string(models.ActionCallWebhook)))

	w := engine.Worker("worker-test")
	assert.Equal(t, "worker-test", w.ID())

	automation, err := engine.AutomationService().Create(ctx, "b1", services.CreateAutomationRequest{
		Name:    "Everything",
		Actions: []models.Action{{Type: models.ActionSendEmail, Config: map[string]any{"subject": "Hi"}}},
	})
	require.NoError(t, err)

	matched, evaluated, err := engine.Dispatcher().Match(ctx,
		events.LeadEvent{Type: events.LeadCreated, BuilderID: "b1"},
		trigger.Context{"builder_id": "b1"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, evaluated)
	require.Len(t, matched, 1)
	assert.Equal(t, automation.ID, matched[0].ID)
}
