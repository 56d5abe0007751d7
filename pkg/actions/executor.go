// Package actions runs the action list of a matched automation.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/template"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StopOnFailureKey is the config flag that aborts the rest of a run when the
// action fails.
const StopOnFailureKey = "stop_on_failure"

// Creator builds configured actions by type.
type Creator interface {
	CreateAction(ctx context.Context, actionType string, config map[string]any) (protocol.Action, error)
}

type Executor struct {
	creator Creator
	tracer  trace.Tracer
	logger  *slog.Logger
}

type ExecutorOption func(*Executor)

func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func NewExecutor(logger *slog.Logger, creator Creator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		creator: creator,
		tracer:  otel.Tracer("leadflow-actions"),
		logger:  logger.With("module", "action_executor"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes actions in order and returns one result per attempted action.
// A failure is recorded and the next action still runs, unless the failed
// action sets stop_on_failure.
func (e *Executor) Run(ctx context.Context, run *protocol.Run, actionList []models.Action) []models.ActionResult {
	logger := e.logger.With(
		"run_id", run.ID,
		"automation_id", run.AutomationID,
		"builder_id", run.BuilderID,
	)

	results := make([]models.ActionResult, 0, len(actionList))

	for index, action := range actionList {
		result := e.execute(ctx, run, action, logger.With("action_type", action.Type, "index", index))
		results = append(results, result)

		if !result.Success && stopOnFailure(action.Config) {
			logger.WarnContext(ctx, "stopping run after failed action", "action_type", action.Type, "skipped", len(actionList)-index-1)

			break
		}
	}

	return results
}

func (e *Executor) execute(ctx context.Context, run *protocol.Run, action models.Action, logger *slog.Logger) (result models.ActionResult) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "action.execute",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.AutomationIDKey, run.AutomationID),
		attribute.String(otelhelper.ActionTypeKey, string(action.Type)),
	)
	defer span.End()

	result.ActionType = action.Type

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("action panicked: %v", recovered)

			logger.ErrorContext(ctx, "action panicked", "error", err)
			otelhelper.SetError(span, err)

			result.Success = false
			result.Error = err.Error()
		}
	}()

	config := template.RenderConfig(action.Config, run.Data.Lookup)

	handler, err := e.creator.CreateAction(ctx, string(action.Type), config)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create action", "error", err)
		otelhelper.SetError(span, err)

		result.Error = err.Error()

		return result
	}

	data, err := handler.Execute(ctx, run, logger)
	result.Data = data

	if err != nil {
		logger.ErrorContext(ctx, "action failed", "error", err)
		otelhelper.SetError(span, err)

		result.Error = err.Error()

		return result
	}

	logger.DebugContext(ctx, "action completed")

	result.Success = true

	return result
}

func stopOnFailure(config map[string]any) bool {
	stop, _ := config[StopOnFailureKey].(bool)

	return stop
}
