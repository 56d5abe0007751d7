package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/leadflow/pkg/actions/webhook"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	event      string
	data       map[string]any
	runID      string
	deliveries []*models.Delivery
}

func (n *stubNotifier) Trigger(_ context.Context, _ string, event string, data map[string]any, runID string) ([]*models.Delivery, error) {
	n.event = event
	n.data = data
	n.runID = runID

	return n.deliveries, nil
}

func sampleRun() *protocol.Run {
	return &protocol.Run{
		ID:        "run-1",
		BuilderID: "b1",
		EventType: "lead.score_updated",
		LeadID:    "l1",
		Data: trigger.Context{
			"builder_id": "b1",
			"score":      float64(9),
			"lead":       map[string]any{"id": "l1"},
		},
	}
}

func TestFanOut_DefaultsToTriggeringEvent(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{deliveries: []*models.Delivery{
		{ID: "d1", WebhookID: "w1", State: models.DeliverySuccess, AttemptNumber: 1},
	}}

	action, err := webhook.NewActionFactory(notifier, nil).Create(context.Background(), map[string]any{})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, "lead.score_updated", notifier.event)
	assert.Equal(t, "run-1", notifier.runID)
	assert.Equal(t, float64(9), notifier.data["score"])
	assert.Equal(t, "l1", notifier.data["lead_id"])

	summary := result.(map[string]any)
	assert.Len(t, summary["deliveries"], 1)
}

func TestFanOut_FailsWhenAnyDeliveryFailed(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{deliveries: []*models.Delivery{
		{ID: "d1", WebhookID: "w1", State: models.DeliverySuccess},
		{ID: "d2", WebhookID: "w2", State: models.DeliveryFailed},
	}}

	action, err := webhook.NewAction(notifier, nil, map[string]any{"event": "lead.hot"})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, webhook.ErrDeliveriesFailed)
	assert.ErrorContains(t, err, "1 of 2")
	assert.Equal(t, "lead.hot", notifier.event)
	assert.Len(t, result.(map[string]any)["deliveries"], 2)
}

func TestRequest_SendsConfiguredRequest(t *testing.T) {
	t.Parallel()

	var (
		gotMethod string
		gotHeader string
		gotBody   map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Api-Key")

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	action, err := webhook.NewAction(nil, server.Client(), map[string]any{
		"url":     server.URL,
		"method":  "put",
		"headers": map[string]any{"X-Api-Key": "k1"},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "k1", gotHeader)
	assert.Equal(t, float64(9), gotBody["score"])
	assert.Equal(t, map[string]any{"status_code": 200, "body": map[string]any{"ok": true}}, result)
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer server.Close()

	action, err := webhook.NewAction(nil, server.Client(), map[string]any{"url": server.URL, "payload": map[string]any{"x": 1}})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), sampleRun(), slog.New(slog.DiscardHandler))
	require.ErrorIs(t, err, webhook.ErrHTTPStatus)
	assert.Equal(t, "down", result.(map[string]any)["body"])
}

func TestNewAction_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	_, err := webhook.NewAction(nil, nil, map[string]any{"url": "ftp://example.com"})
	require.ErrorIs(t, err, webhook.ErrInvalidURL)

	_, err = webhook.NewAction(nil, nil, map[string]any{"url": "https://example.com", "method": "TRACE"})
	require.ErrorIs(t, err, webhook.ErrInvalidMethod)
}
