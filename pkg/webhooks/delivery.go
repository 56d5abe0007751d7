package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/leadflow/pkg/canonical"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ErrUnexpectedStatus marks a response outside the 2xx range.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Payload is the body POSTed to a webhook.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	WebhookID  string
	Attempt    int
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook %s attempt %d: HTTP %d: %v", e.WebhookID, e.Attempt, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("webhook %s attempt %d: %v", e.WebhookID, e.Attempt, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Trigger delivers event to every active webhook of builderID that subscribes
// to it and whose filters accept data. Deliveries run in parallel and a
// failed one never affects the others; the returned records are in webhook
// order and only listing the webhooks can fail.
func (m *Manager) Trigger(
	ctx context.Context,
	builderID, event string,
	data map[string]any,
	runID string,
) ([]*models.Delivery, error) {
	hooks, err := m.webhooks.ByBuilder(ctx, builderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	targets := make([]*models.Webhook, 0, len(hooks))

	for _, hook := range hooks {
		if !hook.IsActive || !hook.Subscribes(event) {
			continue
		}

		if !MatchesFilters(data, hook.Filters) {
			m.logger.DebugContext(ctx, "webhook filtered out", "webhook_id", hook.ID, "event", event)

			continue
		}

		targets = append(targets, hook)
	}

	payload := Payload{
		Event:     event,
		Timestamp: m.now().Format(time.RFC3339),
		Data:      data,
	}

	deliveries := make([]*models.Delivery, len(targets))

	var group errgroup.Group

	group.SetLimit(m.concurrency)

	for i, hook := range targets {
		group.Go(func() error {
			delivery, err := m.Deliver(ctx, hook, payload, runID)
			if err != nil {
				m.logger.WarnContext(ctx, "webhook delivery failed",
					"builder_id", builderID,
					"webhook_id", hook.ID,
					"event", event,
					"error", err,
				)
			}

			deliveries[i] = delivery

			return nil
		})
	}

	_ = group.Wait()

	return deliveries, nil
}

// Deliver POSTs payload to webhook, retrying failed attempts with exponential
// backoff. The delivery record is saved on every state change and the final
// outcome is folded into the webhook statistics. The returned error is the
// last *DeliveryError when every attempt failed.
func (m *Manager) Deliver(
	ctx context.Context,
	webhook *models.Webhook,
	payload Payload,
	runID string,
) (*models.Delivery, error) {
	body, err := canonical.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	delivery := &models.Delivery{
		ID:              uuid.NewString(),
		WebhookID:       webhook.ID,
		BuilderID:       webhook.BuilderID,
		AutomationRunID: runID,
		Event:           payload.Event,
		Payload:         body,
		State:           models.DeliveryPending,
	}
	m.save(ctx, delivery)

	signature := SignBytes(body, webhook.Secret)

	var lastErr *DeliveryError

	operation := func() error {
		delivery.AttemptNumber++
		delivery.NextRetryAt = nil
		m.transition(ctx, delivery, models.DeliverySending)

		attemptErr := m.attempt(ctx, webhook, delivery, body, signature)
		if attemptErr == nil {
			return nil
		}

		lastErr = attemptErr

		if ctx.Err() != nil {
			return backoff.Permanent(attemptErr)
		}

		return attemptErr
	}

	notify := func(err error, wait time.Duration) {
		next := m.now().Add(wait)
		delivery.NextRetryAt = &next
		m.transition(ctx, delivery, models.DeliveryRetrying)

		m.logger.InfoContext(ctx, "retrying webhook delivery",
			"webhook_id", webhook.ID,
			"delivery_id", delivery.ID,
			"attempt", delivery.AttemptNumber,
			"wait", wait,
			"error", err,
		)
	}

	err = backoff.RetryNotify(operation, m.policy(ctx, webhook.RetryCount), notify)

	// The final state is persisted even when ctx was cancelled mid-retry.
	finalCtx := context.WithoutCancel(ctx)
	outcome := models.DeliveryOutcome{Delivered: m.now()}

	if err != nil {
		if lastErr == nil {
			lastErr = &DeliveryError{WebhookID: webhook.ID, Attempt: delivery.AttemptNumber, Err: err}
		}

		delivery.Error = lastErr.Error()
		delivery.NextRetryAt = nil
		m.transition(finalCtx, delivery, models.DeliveryFailed)

		outcome.State = models.DeliveryFailed
		outcome.Error = delivery.Error
	} else {
		m.transition(finalCtx, delivery, models.DeliverySuccess)

		outcome.State = models.DeliverySuccess
	}

	recordErr := m.webhooks.RecordDelivery(finalCtx, webhook.ID, outcome)
	if recordErr != nil {
		m.logger.ErrorContext(ctx, "failed to record webhook delivery", "webhook_id", webhook.ID, "error", recordErr)
	}

	if err != nil {
		return delivery, lastErr
	}

	return delivery, nil
}

func (m *Manager) attempt(
	ctx context.Context,
	webhook *models.Webhook,
	delivery *models.Delivery,
	body []byte,
	signature string,
) *DeliveryError {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "webhooks.deliver",
		attribute.String(otelhelper.BuilderIDKey, webhook.BuilderID),
		attribute.String(otelhelper.WebhookIDKey, webhook.ID),
		attribute.String(otelhelper.DeliveryIDKey, delivery.ID),
		attribute.String(otelhelper.EventTypeKey, delivery.Event),
		attribute.Int(otelhelper.AttemptKey, delivery.AttemptNumber),
	)
	defer span.End()

	timeout := time.Duration(webhook.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = models.DefaultWebhookTimeoutSeconds * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(status int, err error) *DeliveryError {
		deliveryErr := &DeliveryError{
			WebhookID:  webhook.ID,
			Attempt:    delivery.AttemptNumber,
			StatusCode: status,
			Err:        err,
		}
		delivery.Error = deliveryErr.Error()
		otelhelper.SetError(span, deliveryErr)

		return deliveryErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return fail(0, fmt.Errorf("failed to build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	started := time.Now()

	resp, err := m.client.Do(req)

	delivery.ResponseTimeMs = time.Since(started).Milliseconds()

	if err != nil {
		delivery.StatusCode = 0
		delivery.ResponseBody = ""

		return fail(0, err)
	}

	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			m.logger.ErrorContext(ctx, "failed to close response body", "error", closeErr)
		}
	}()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, models.MaxResponseBodyLength))
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read webhook response", "webhook_id", webhook.ID, "error", err)
	}

	delivery.StatusCode = resp.StatusCode
	delivery.ResponseBody = string(responseBody)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, ErrUnexpectedStatus)
	}

	delivery.Error = ""

	return nil
}

// policy allows retries additional attempts after the first one.
func (m *Manager) policy(ctx context.Context, retries int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.backoff.InitialInterval
	exp.Multiplier = m.backoff.Multiplier
	exp.MaxInterval = m.backoff.MaxInterval
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	defaults := DefaultBackoff()

	if exp.InitialInterval <= 0 {
		exp.InitialInterval = defaults.InitialInterval
	}

	if exp.Multiplier < 1 {
		exp.Multiplier = defaults.Multiplier
	}

	if exp.MaxInterval <= 0 {
		exp.MaxInterval = defaults.MaxInterval
	}

	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(max(retries, 0))), ctx)
}

func (m *Manager) transition(ctx context.Context, delivery *models.Delivery, next models.DeliveryState) {
	if !delivery.State.CanTransition(next) {
		m.logger.ErrorContext(ctx, "invalid delivery transition",
			"delivery_id", delivery.ID,
			"from", delivery.State,
			"to", next,
		)

		return
	}

	delivery.State = next
	m.save(ctx, delivery)
}

func (m *Manager) save(ctx context.Context, delivery *models.Delivery) {
	err := m.deliveries.Save(ctx, delivery)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to save delivery",
			"webhook_id", delivery.WebhookID,
			"delivery_id", delivery.ID,
			"error", err,
		)
	}
}
