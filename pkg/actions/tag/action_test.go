package tag_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/leadflow/pkg/actions/tag"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/file"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLead(t *testing.T, tags ...string) persistence.LeadRepository {
	t.Helper()

	leads := file.NewPersistence(t.TempDir()).LeadRepository()
	require.NoError(t, leads.Save(context.Background(), &models.Lead{ID: "l1", BuilderID: "b1", Tags: tags}))

	return leads
}

func TestAction_Modes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config map[string]any
		want   []string
	}{
		{name: "add skips duplicates", config: map[string]any{"tags": []any{"hot", "new"}}, want: []string{"new", "site-visit", "hot"}},
		{name: "add from comma string", config: map[string]any{"tags": "vip, hot"}, want: []string{"new", "site-visit", "vip", "hot"}},
		{name: "remove", config: map[string]any{"mode": "remove", "tags": []any{"new"}}, want: []string{"site-visit"}},
		{name: "replace", config: map[string]any{"mode": "replace", "tags": []any{"closed"}}, want: []string{"closed"}},
		{name: "replace with nothing clears", config: map[string]any{"mode": "replace", "tags": []any{}}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			leads := seedLead(t, "new", "site-visit")

			action, err := tag.NewActionFactory(leads).Create(context.Background(), tt.config)
			require.NoError(t, err)

			run := &protocol.Run{BuilderID: "b1", LeadID: "l1", Data: trigger.Context{}}

			result, err := action.Execute(context.Background(), run, slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"tags": tt.want}, result)

			lead, err := leads.ByID(context.Background(), "l1")
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, lead.Tags)

			tags, ok := run.Data.Lookup("lead.tags")
			require.True(t, ok)
			assert.Len(t, tags, len(tt.want))
		})
	}
}

func TestNewAction_Errors(t *testing.T) {
	t.Parallel()

	_, err := tag.NewAction(nil, map[string]any{"mode": "toggle", "tags": []any{"x"}})
	require.ErrorIs(t, err, tag.ErrInvalidMode)

	_, err = tag.NewAction(nil, map[string]any{"tags": []any{" "}})
	require.ErrorIs(t, err, tag.ErrTagsRequired)
}

func TestAction_Execute_Errors(t *testing.T) {
	t.Parallel()

	leads := seedLead(t)

	action, err := tag.NewAction(leads, map[string]any{"tags": []any{"hot"}})
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)

	_, err = action.Execute(context.Background(), &protocol.Run{BuilderID: "b1"}, logger)
	require.ErrorIs(t, err, tag.ErrLeadRequired)

	_, err = action.Execute(context.Background(), &protocol.Run{BuilderID: "b2", LeadID: "l1"}, logger)
	require.ErrorIs(t, err, persistence.ErrForbidden)

	_, err = action.Execute(context.Background(), &protocol.Run{BuilderID: "b1", LeadID: "nope"}, logger)
	assert.True(t, persistence.IsLeadNotFound(err))
}
