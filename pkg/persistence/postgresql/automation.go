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
	"github.com/lib/pq"
)

const automationColumns = `
			id
		  , builder_id
		  , name
		  , description
		  , events
		  , conditions
		  , actions
		  , priority
		  , is_active
		  , total_executions
		  , successful_executions
		  , failed_executions
		  , last_executed_at
		  , created_at
		  , updated_at
`

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *AutomationRepository) ByID(ctx context.Context, id string) (*models.Automation, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+automationColumns+"FROM automations WHERE id = $1", id)

	automation, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("ByID", "automation", id, persistence.ErrAutomationNotFound)
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

func (r *AutomationRepository) ByBuilder(ctx context.Context, builderID string) ([]*models.Automation, error) {
	return r.query(ctx,
		"SELECT"+automationColumns+"FROM automations WHERE builder_id = $1 ORDER BY created_at, id",
		builderID)
}

func (r *AutomationRepository) ActiveByBuilder(ctx context.Context, builderID string) ([]*models.Automation, error) {
	return r.query(ctx,
		"SELECT"+automationColumns+"FROM automations WHERE builder_id = $1 AND is_active ORDER BY created_at, id",
		builderID)
}

func (r *AutomationRepository) query(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

// Save inserts or updates an automation. Execution counters are owned by
// RecordExecution and are left untouched on update.
func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	err := stamp(&automation.ID, &automation.CreatedAt, &automation.UpdatedAt)
	if err != nil {
		return err
	}

	conditions, err := marshalJSON(automation.Conditions)
	if err != nil {
		return err
	}

	actions, err := marshalJSON(automation.Actions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automations (` + automationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			events = EXCLUDED.events,
			conditions = EXCLUDED.conditions,
			actions = EXCLUDED.actions,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID,
		automation.BuilderID,
		automation.Name,
		automation.Description,
		pq.Array(automation.Events),
		conditions,
		actions,
		automation.Priority,
		automation.IsActive,
		automation.TotalExecutions,
		automation.SuccessfulExecutions,
		automation.FailedExecutions,
		nullTime(automation.LastExecutedAt),
		automation.CreatedAt,
		automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}

	return nil
}

func (r *AutomationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete automation: %w", err)
	}

	return expectAffected(result, persistence.NewRecordError("Delete", "automation", id, persistence.ErrAutomationNotFound))
}

func (r *AutomationRepository) RecordExecution(ctx context.Context, id string, success bool, at time.Time) error {
	query := `
		UPDATE automations SET
			total_executions = total_executions + 1,
			successful_executions = successful_executions + CASE WHEN $2 THEN 1 ELSE 0 END,
			failed_executions = failed_executions + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_executed_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, success, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record automation execution: %w", err)
	}

	return expectAffected(result, persistence.NewRecordError("RecordExecution", "automation", id, persistence.ErrAutomationNotFound))
}

func scanAutomation(row scanner) (*models.Automation, error) {
	var (
		automation     models.Automation
		conditions     []byte
		actions        []byte
		lastExecutedAt sql.NullTime
	)

	err := row.Scan(
		&automation.ID,
		&automation.BuilderID,
		&automation.Name,
		&automation.Description,
		pq.Array(&automation.Events),
		&conditions,
		&actions,
		&automation.Priority,
		&automation.IsActive,
		&automation.TotalExecutions,
		&automation.SuccessfulExecutions,
		&automation.FailedExecutions,
		&lastExecutedAt,
		&automation.CreatedAt,
		&automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		err = json.Unmarshal(conditions, &automation.Conditions)
		if err != nil {
			return nil, fmt.Errorf("failed to decode conditions of automation %s: %w", automation.ID, err)
		}
	}

	err = json.Unmarshal(actions, &automation.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to decode actions of automation %s: %w", automation.ID, err)
	}

	automation.LastExecutedAt = timePtr(lastExecutedAt)
	automation.CreatedAt = automation.CreatedAt.UTC()
	automation.UpdatedAt = automation.UpdatedAt.UTC()

	return &automation, nil
}

func expectAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}
