package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadEvent_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   events.LeadEvent
		wantErr error
	}{
		{name: "valid", event: events.LeadEvent{Type: events.LeadCreated, BuilderID: "b1"}},
		{name: "missing builder", event: events.LeadEvent{Type: events.LeadCreated}, wantErr: events.ErrBuilderIDRequired},
		{name: "missing type", event: events.LeadEvent{BuilderID: "b1"}, wantErr: events.ErrEventTypeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.event.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLeadEvent_AsMap(t *testing.T) {
	t.Parallel()

	occurred := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	event := events.LeadEvent{
		ID:         "e1",
		Type:       events.LeadStageChanged,
		BuilderID:  "b1",
		LeadID:     "l1",
		Data:       map[string]any{"from": "warm", "to": "hot"},
		OccurredAt: occurred,
	}

	assert.Equal(t, map[string]any{
		"id":          "e1",
		"type":        events.LeadStageChanged,
		"builder_id":  "b1",
		"lead_id":     "l1",
		"occurred_at": "2026-03-01T10:00:00Z",
		"data":        map[string]any{"from": "warm", "to": "hot"},
	}, event.AsMap())
}

func TestAutomationsMatched_JSON(t *testing.T) {
	t.Parallel()

	message := events.AutomationsMatched{
		BaseEvent: events.NewBaseEvent(events.AutomationsMatchedEvent, "b1"),
		Event:     events.LeadEvent{ID: "e1", Type: events.LeadCreated, BuilderID: "b1", LeadID: "l1"},
		Context:   map[string]any{"score": float64(9)},
		Runs:      []events.MatchedRun{{RunID: "r1", AutomationID: "a1", Priority: 5}},
	}

	assert.Equal(t, events.AutomationsMatchedEvent, message.GetType())
	assert.NotEmpty(t, message.ID)

	data, err := json.Marshal(message)
	require.NoError(t, err)

	var decoded events.AutomationsMatched

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, message.Runs, decoded.Runs)
	assert.Equal(t, message.Event.LeadID, decoded.Event.LeadID)
	assert.InDelta(t, 9, decoded.Context["score"], 0)
}
