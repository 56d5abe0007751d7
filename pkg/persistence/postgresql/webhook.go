package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/lib/pq"
)

const webhookColumns = `
			id
		  , builder_id
		  , name
		  , url
		  , secret
		  , events
		  , filters
		  , retry_count
		  , timeout_seconds
		  , is_active
		  , total_deliveries
		  , successful_deliveries
		  , failed_deliveries
		  , last_delivery_at
		  , last_delivery_status
		  , last_error
		  , created_at
		  , updated_at
`

// WebhookRepository handles webhook-related database operations.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WebhookRepository) ByID(ctx context.Context, id string) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+webhookColumns+"FROM webhooks WHERE id = $1", id)

	webhook, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("ByID", "webhook", id, persistence.ErrWebhookNotFound)
		}

		return nil, fmt.Errorf("failed to scan webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) ByBuilder(ctx context.Context, builderID string) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT"+webhookColumns+"FROM webhooks WHERE builder_id = $1 ORDER BY created_at, id",
		builderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhooks: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	webhooks := make([]*models.Webhook, 0)

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, webhook)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return webhooks, nil
}

// Save inserts or updates a webhook. Delivery statistics are owned by
// RecordDelivery and are left untouched on update.
func (r *WebhookRepository) Save(ctx context.Context, webhook *models.Webhook) error {
	err := stamp(&webhook.ID, &webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		return err
	}

	filters, err := marshalJSON(webhook.Filters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (` + webhookColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			secret = EXCLUDED.secret,
			events = EXCLUDED.events,
			filters = EXCLUDED.filters,
			retry_count = EXCLUDED.retry_count,
			timeout_seconds = EXCLUDED.timeout_seconds,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		webhook.ID,
		webhook.BuilderID,
		webhook.Name,
		webhook.URL,
		webhook.Secret,
		pq.Array(webhook.Events),
		filters,
		webhook.RetryCount,
		webhook.TimeoutSeconds,
		webhook.IsActive,
		webhook.TotalDeliveries,
		webhook.SuccessfulDeliveries,
		webhook.FailedDeliveries,
		nullTime(webhook.LastDeliveryAt),
		string(webhook.LastDeliveryStatus),
		webhook.LastError,
		webhook.CreatedAt,
		webhook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save webhook: %w", err)
	}

	return nil
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	return expectAffected(result, persistence.NewRecordError("Delete", "webhook", id, persistence.ErrWebhookNotFound))
}

func (r *WebhookRepository) RecordDelivery(ctx context.Context, id string, outcome models.DeliveryOutcome) error {
	query := `
		UPDATE webhooks SET
			total_deliveries = total_deliveries + 1,
			successful_deliveries = successful_deliveries + CASE WHEN $2 THEN 1 ELSE 0 END,
			failed_deliveries = failed_deliveries + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_delivery_at = $3,
			last_delivery_status = $4,
			last_error = CASE WHEN $2 THEN '' ELSE $5 END
		WHERE id = $1
	`

	success := outcome.State == models.DeliverySuccess

	result, err := r.db.ExecContext(ctx, query,
		id,
		success,
		outcome.Delivered.UTC(),
		string(outcome.State),
		outcome.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook delivery: %w", err)
	}

	return expectAffected(result, persistence.NewRecordError("RecordDelivery", "webhook", id, persistence.ErrWebhookNotFound))
}

func scanWebhook(row scanner) (*models.Webhook, error) {
	var (
		webhook        models.Webhook
		filters        []byte
		lastDeliveryAt sql.NullTime
		lastStatus     string
	)

	err := row.Scan(
		&webhook.ID,
		&webhook.BuilderID,
		&webhook.Name,
		&webhook.URL,
		&webhook.Secret,
		pq.Array(&webhook.Events),
		&filters,
		&webhook.RetryCount,
		&webhook.TimeoutSeconds,
		&webhook.IsActive,
		&webhook.TotalDeliveries,
		&webhook.SuccessfulDeliveries,
		&webhook.FailedDeliveries,
		&lastDeliveryAt,
		&lastStatus,
		&webhook.LastError,
		&webhook.CreatedAt,
		&webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filters) > 0 {
		err = json.Unmarshal(filters, &webhook.Filters)
		if err != nil {
			return nil, fmt.Errorf("failed to decode filters of webhook %s: %w", webhook.ID, err)
		}
	}

	webhook.LastDeliveryAt = timePtr(lastDeliveryAt)
	webhook.LastDeliveryStatus = models.DeliveryState(lastStatus)
	webhook.CreatedAt = webhook.CreatedAt.UTC()
	webhook.UpdatedAt = webhook.UpdatedAt.UTC()

	return &webhook, nil
}
