package crm_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/leadflow/pkg/actions/crm"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, record crm.Record) error {
	return m.Called(ctx, record).Error(0)
}

func sampleRun() *protocol.Run {
	return &protocol.Run{
		BuilderID: "b1",
		LeadID:    "l1",
		Data: trigger.Context{
			"builder_id": "b1",
			"score":      float64(9),
			"email":      "asha@example.com",
			"lead":       map[string]any{"id": "l1", "name": "Asha"},
		},
	}
}

func TestAction_SelectedFields(t *testing.T) {
	t.Parallel()

	syncer := &mockSyncer{}
	syncer.On("Sync", mock.Anything, crm.Record{
		Provider:  "zoho",
		BuilderID: "b1",
		LeadID:    "l1",
		Fields:    map[string]any{"lead.name": "Asha", "score": float64(9)},
	}).Return(nil).Once()

	action, err := crm.NewActionFactory(syncer).Create(context.Background(), map[string]any{
		"provider": "zoho",
		"fields":   []any{"lead.name", "score", "missing"},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"synced": true, "provider": "zoho", "fields": 2}, result)
	syncer.AssertExpectations(t)
}

func TestAction_FullPayloadByDefault(t *testing.T) {
	t.Parallel()

	syncer := &mockSyncer{}
	syncer.On("Sync", mock.Anything, mock.MatchedBy(func(record crm.Record) bool {
		return record.Fields["lead_id"] == "l1" && record.Fields["email"] == "asha@example.com"
	})).Return(nil).Once()

	action, err := crm.NewAction(syncer, map[string]any{"provider": "hubspot"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	syncer.AssertExpectations(t)
}

func TestAction_Errors(t *testing.T) {
	t.Parallel()

	_, err := crm.NewAction(&mockSyncer{}, map[string]any{"provider": ""})
	require.ErrorIs(t, err, crm.ErrProviderRequired)

	syncer := &mockSyncer{}
	syncer.On("Sync", mock.Anything, mock.Anything).Return(errors.New("rate limited"))

	action, err := crm.NewAction(syncer, map[string]any{"provider": "zoho"})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.ErrorContains(t, err, "failed to sync lead to zoho: rate limited")
}
