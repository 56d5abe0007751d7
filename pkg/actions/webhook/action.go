// Package webhook provides the call_webhook action: a fan-out to the builder's
// registered webhooks or a single request to an ad hoc URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

const (
	defaultTimeoutSeconds = 30
	maxResponseBody       = 64 << 10
)

var (
	ErrDeliveriesFailed = errors.New("webhook deliveries failed")
	ErrInvalidURL       = errors.New("webhook URL must use HTTP or HTTPS")
	ErrInvalidMethod    = errors.New("invalid HTTP method")
	ErrHTTPStatus       = errors.New("webhook returned a non-2xx status")
)

// Notifier fans an event out to registered webhooks.
type Notifier interface {
	Trigger(ctx context.Context, builderID, event string, data map[string]any, runID string) ([]*models.Delivery, error)
}

// NewAction returns a fan-out action, or a direct request when config has a url.
func NewAction(notifier Notifier, client *http.Client, config map[string]any) (protocol.Action, error) {
	if url, ok := config["url"].(string); ok && url != "" {
		if client == nil {
			client = &http.Client{}
		}

		return newRequestAction(client, url, config)
	}

	event, _ := config["event"].(string)

	return &FanOutAction{notifier: notifier, event: event}, nil
}

// FanOutAction triggers every subscribed webhook of the builder. Deliveries
// are independent; the action fails when any of them failed.
type FanOutAction struct {
	notifier Notifier
	event    string
}

func (a *FanOutAction) Execute(ctx context.Context, run *protocol.Run, logger *slog.Logger) (any, error) {
	event := a.event
	if event == "" {
		event = run.EventType
	}

	deliveries, err := a.notifier.Trigger(ctx, run.BuilderID, event, run.Data.Payload(), run.ID)
	if err != nil {
		return nil, err
	}

	summary := make([]map[string]any, 0, len(deliveries))
	failed := 0

	for _, delivery := range deliveries {
		if delivery == nil {
			failed++

			continue
		}

		if delivery.State != models.DeliverySuccess {
			failed++
		}

		summary = append(summary, map[string]any{
			"delivery_id": delivery.ID,
			"webhook_id":  delivery.WebhookID,
			"state":       string(delivery.State),
			"attempts":    delivery.AttemptNumber,
		})
	}

	result := map[string]any{"event": event, "deliveries": summary}

	if failed > 0 {
		logger.WarnContext(ctx, "some webhook deliveries failed", "event", event, "failed", failed, "total", len(deliveries))

		return result, fmt.Errorf("%w: %d of %d", ErrDeliveriesFailed, failed, len(deliveries))
	}

	return result, nil
}

// RequestAction sends one HTTP request to a URL configured on the automation.
type RequestAction struct {
	client  *http.Client
	url     string
	method  string
	headers map[string]string
	payload any
	timeout time.Duration
}

func newRequestAction(client *http.Client, url string, config map[string]any) (*RequestAction, error) {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, ErrInvalidURL
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	method = strings.ToUpper(method)

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for key, value := range headersConfig {
			if s, ok := value.(string); ok {
				headers[key] = s
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second

	if seconds, ok := config["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	return &RequestAction{
		client:  client,
		url:     url,
		method:  method,
		headers: headers,
		payload: config["payload"],
		timeout: timeout,
	}, nil
}

func (a *RequestAction) Execute(ctx context.Context, run *protocol.Run, logger *slog.Logger) (any, error) {
	payload := a.payload
	if payload == nil {
		payload = run.Data.Payload()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, a.method, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var responseBody any

	err = json.Unmarshal(bodyBytes, &responseBody)
	if err != nil {
		responseBody = string(bodyBytes)
	}

	logger.DebugContext(ctx, "webhook request completed", "url", a.url, "status", resp.StatusCode)

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        responseBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	return result, nil
}
