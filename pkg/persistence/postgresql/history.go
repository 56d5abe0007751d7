package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

const deliveryColumns = `
			id
		  , webhook_id
		  , builder_id
		  , automation_run_id
		  , event
		  , payload
		  , state
		  , attempt_number
		  , status_code
		  , response_body
		  , response_time_ms
		  , error
		  , next_retry_at
		  , created_at
		  , updated_at
`

// DeliveryRepository handles webhook delivery history.
type DeliveryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *DeliveryRepository) Save(ctx context.Context, delivery *models.Delivery) error {
	err := stamp(&delivery.ID, &delivery.CreatedAt, &delivery.UpdatedAt)
	if err != nil {
		return err
	}

	payload := []byte(delivery.Payload)
	if len(payload) == 0 {
		payload = []byte("null")
	}

	query := `
		INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			attempt_number = EXCLUDED.attempt_number,
			status_code = EXCLUDED.status_code,
			response_body = EXCLUDED.response_body,
			response_time_ms = EXCLUDED.response_time_ms,
			error = EXCLUDED.error,
			next_retry_at = EXCLUDED.next_retry_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		delivery.ID,
		delivery.WebhookID,
		delivery.BuilderID,
		delivery.AutomationRunID,
		delivery.Event,
		payload,
		string(delivery.State),
		delivery.AttemptNumber,
		delivery.StatusCode,
		delivery.ResponseBody,
		delivery.ResponseTimeMs,
		delivery.Error,
		nullTime(delivery.NextRetryAt),
		delivery.CreatedAt,
		delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save delivery: %w", err)
	}

	return nil
}

func (r *DeliveryRepository) ByID(ctx context.Context, id string) (*models.Delivery, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+deliveryColumns+"FROM webhook_deliveries WHERE id = $1", id)

	delivery, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("ByID", "delivery", id, persistence.ErrDeliveryNotFound)
		}

		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}

	return delivery, nil
}

func (r *DeliveryRepository) ByWebhook(ctx context.Context, webhookID string, limit int) ([]*models.Delivery, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT"+deliveryColumns+"FROM webhook_deliveries WHERE webhook_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		webhookID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	deliveries := make([]*models.Delivery, 0)

	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}

		deliveries = append(deliveries, delivery)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return deliveries, nil
}

func scanDelivery(row scanner) (*models.Delivery, error) {
	var (
		delivery    models.Delivery
		payload     []byte
		state       string
		nextRetryAt sql.NullTime
	)

	err := row.Scan(
		&delivery.ID,
		&delivery.WebhookID,
		&delivery.BuilderID,
		&delivery.AutomationRunID,
		&delivery.Event,
		&payload,
		&state,
		&delivery.AttemptNumber,
		&delivery.StatusCode,
		&delivery.ResponseBody,
		&delivery.ResponseTimeMs,
		&delivery.Error,
		&nextRetryAt,
		&delivery.CreatedAt,
		&delivery.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	delivery.Payload = json.RawMessage(payload)
	delivery.State = models.DeliveryState(state)
	delivery.NextRetryAt = timePtr(nextRetryAt)
	delivery.CreatedAt = delivery.CreatedAt.UTC()
	delivery.UpdatedAt = delivery.UpdatedAt.UTC()

	return &delivery, nil
}

// RunRepository handles automation run history.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RunRepository) Save(ctx context.Context, run *models.AutomationRun) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate ID: %w", err)
		}

		run.ID = id.String()
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	results, err := marshalJSON(run.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_runs (
			id, automation_id, builder_id, event_id, event_type, lead_id, status, results, started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			results = EXCLUDED.results,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.AutomationID,
		run.BuilderID,
		run.EventID,
		run.EventType,
		run.LeadID,
		string(run.Status),
		results,
		run.StartedAt,
		nullTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save automation run: %w", err)
	}

	return nil
}

func (r *RunRepository) ByAutomation(ctx context.Context, automationID string, limit int) ([]*models.AutomationRun, error) {
	query := `
		SELECT
			id
		  , automation_id
		  , builder_id
		  , event_id
		  , event_type
		  , lead_id
		  , status
		  , results
		  , started_at
		  , completed_at
		FROM automation_runs
		WHERE automation_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, automationID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query automation runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.AutomationRun, 0)

	for rows.Next() {
		var (
			run         models.AutomationRun
			status      string
			results     []byte
			completedAt sql.NullTime
		)

		err := rows.Scan(
			&run.ID,
			&run.AutomationID,
			&run.BuilderID,
			&run.EventID,
			&run.EventType,
			&run.LeadID,
			&status,
			&results,
			&run.StartedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation run: %w", err)
		}

		if len(results) > 0 {
			err = json.Unmarshal(results, &run.Results)
			if err != nil {
				return nil, fmt.Errorf("failed to decode results of run %s: %w", run.ID, err)
			}
		}

		run.Status = models.RunStatus(status)
		run.StartedAt = run.StartedAt.UTC()
		run.CompletedAt = timePtr(completedAt)

		runs = append(runs, &run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automation runs: %w", err)
	}

	return runs, nil
}
