// Package webhooks registers builder webhooks and delivers signed event
// notifications to them.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultConcurrency bounds parallel deliveries of one Trigger call.
	DefaultConcurrency = 8

	userAgent = "leadflow-webhooks/1.0"
)

var (
	ErrNoEvents   = errors.New("webhook must listen to at least one event")
	ErrInvalidURL = errors.New("webhook URL must use HTTP or HTTPS")
)

// RegisterInput describes a new webhook.
type RegisterInput struct {
	Name           string         `json:"name"            validate:"required,max=255"`
	URL            string         `json:"url"             validate:"required,http_url"`
	Events         []string       `json:"events"          validate:"required,min=1,dive,required"`
	Filters        map[string]any `json:"filters,omitempty"`
	RetryCount     *int           `json:"retry_count,omitempty"     validate:"omitempty,min=0,max=10"`
	TimeoutSeconds *int           `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=120"`
}

// UpdateInput changes the fields that are set.
type UpdateInput struct {
	Name           *string         `json:"name,omitempty"            validate:"omitempty,min=1,max=255"`
	URL            *string         `json:"url,omitempty"             validate:"omitempty,http_url"`
	Events         []string        `json:"events,omitempty"          validate:"omitempty,dive,required"`
	Filters        *map[string]any `json:"filters,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
	RetryCount     *int            `json:"retry_count,omitempty"     validate:"omitempty,min=0,max=10"`
	TimeoutSeconds *int            `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=120"`
}

// BackoffConfig shapes the wait between delivery attempts.
type BackoffConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
	}
}

// Manager owns webhook registrations and their deliveries.
type Manager struct {
	webhooks    persistence.WebhookRepository
	deliveries  persistence.DeliveryRepository
	client      *http.Client
	validate    *validator.Validate
	backoff     BackoffConfig
	concurrency int
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Manager)

// WithHTTPClient replaces the client used for deliveries. Per-attempt
// timeouts are applied through the request context, not the client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.client = client
	}
}

func WithBackoff(cfg BackoffConfig) Option {
	return func(m *Manager) {
		m.backoff = cfg
	}
}

func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(
	logger *slog.Logger,
	webhooks persistence.WebhookRepository,
	deliveries persistence.DeliveryRepository,
	opts ...Option,
) *Manager {
	m := &Manager{
		webhooks:    webhooks,
		deliveries:  deliveries,
		client:      &http.Client{},
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		backoff:     DefaultBackoff(),
		concurrency: DefaultConcurrency,
		tracer:      otel.Tracer("leadflow-webhooks"),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("module", "webhooks"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Register stores a new active webhook and returns it with its secret. The
// secret is not retrievable afterwards except by rotation.
func (m *Manager) Register(ctx context.Context, builderID string, input RegisterInput) (*models.Webhook, string, error) {
	if builderID == "" {
		return nil, "", events.ErrBuilderIDRequired
	}

	err := m.validate.StructCtx(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("invalid webhook: %w", err)
	}

	err = checkURL(input.URL)
	if err != nil {
		return nil, "", err
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}

	webhook := &models.Webhook{
		BuilderID:      builderID,
		Name:           strings.TrimSpace(input.Name),
		URL:            strings.TrimSpace(input.URL),
		Secret:         secret,
		Events:         input.Events,
		Filters:        input.Filters,
		RetryCount:     models.DefaultWebhookRetryCount,
		TimeoutSeconds: models.DefaultWebhookTimeoutSeconds,
		IsActive:       true,
	}

	if input.RetryCount != nil {
		webhook.RetryCount = *input.RetryCount
	}

	if input.TimeoutSeconds != nil {
		webhook.TimeoutSeconds = *input.TimeoutSeconds
	}

	err = m.webhooks.Save(ctx, webhook)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save webhook: %w", err)
	}

	m.logger.InfoContext(ctx, "webhook registered", "builder_id", builderID, "webhook_id", webhook.ID)

	return webhook, secret, nil
}

func (m *Manager) List(ctx context.Context, builderID string) ([]*models.Webhook, error) {
	return m.webhooks.ByBuilder(ctx, builderID)
}

// Get returns the webhook when it belongs to builderID.
func (m *Manager) Get(ctx context.Context, builderID, id string) (*models.Webhook, error) {
	webhook, err := m.webhooks.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = persistence.CheckOwner("Get", "webhook", id, webhook.BuilderID, builderID)
	if err != nil {
		return nil, err
	}

	return webhook, nil
}

func (m *Manager) Update(ctx context.Context, builderID, id string, input UpdateInput) (*models.Webhook, error) {
	err := m.validate.StructCtx(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook update: %w", err)
	}

	webhook, err := m.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		webhook.Name = strings.TrimSpace(*input.Name)
	}

	if input.URL != nil {
		err = checkURL(*input.URL)
		if err != nil {
			return nil, err
		}

		webhook.URL = strings.TrimSpace(*input.URL)
	}

	if input.Events != nil {
		if len(input.Events) == 0 {
			return nil, ErrNoEvents
		}

		webhook.Events = input.Events
	}

	if input.Filters != nil {
		webhook.Filters = *input.Filters
	}

	if input.IsActive != nil {
		webhook.IsActive = *input.IsActive
	}

	if input.RetryCount != nil {
		webhook.RetryCount = *input.RetryCount
	}

	if input.TimeoutSeconds != nil {
		webhook.TimeoutSeconds = *input.TimeoutSeconds
	}

	err = m.webhooks.Save(ctx, webhook)
	if err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	return webhook, nil
}

func (m *Manager) Delete(ctx context.Context, builderID, id string) error {
	_, err := m.Get(ctx, builderID, id)
	if err != nil {
		return err
	}

	return m.webhooks.Delete(ctx, id)
}

// RotateSecret replaces the signing secret and returns the new one.
func (m *Manager) RotateSecret(ctx context.Context, builderID, id string) (string, error) {
	webhook, err := m.Get(ctx, builderID, id)
	if err != nil {
		return "", err
	}

	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}

	webhook.Secret = secret

	err = m.webhooks.Save(ctx, webhook)
	if err != nil {
		return "", fmt.Errorf("failed to rotate webhook secret: %w", err)
	}

	m.logger.InfoContext(ctx, "webhook secret rotated", "builder_id", builderID, "webhook_id", id)

	return secret, nil
}

// Test sends a webhook.test event regardless of the webhook's subscriptions
// and filters.
func (m *Manager) Test(ctx context.Context, builderID, id string) (*models.Delivery, error) {
	webhook, err := m.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	now := m.now()

	payload := Payload{
		Event:     events.WebhookTest,
		Timestamp: now.Format(time.RFC3339),
		Data: map[string]any{
			"test":      true,
			"timestamp": now.Format(time.RFC3339),
		},
	}

	return m.Deliver(ctx, webhook, payload, "")
}

// Deliveries lists the newest deliveries of a webhook.
func (m *Manager) Deliveries(ctx context.Context, builderID, id string, limit int) ([]*models.Delivery, error) {
	_, err := m.Get(ctx, builderID, id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = persistence.DefaultHistoryLimit
	}

	return m.deliveries.ByWebhook(ctx, id, limit)
}

func checkURL(raw string) error {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ErrInvalidURL
	}

	return nil
}
