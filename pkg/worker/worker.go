// Package worker executes the automation runs queued by the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var ErrUnexpectedEvent = errors.New("unexpected event")

type Worker struct {
	id          string
	bus         eventbus.EventBus
	automations persistence.AutomationRepository
	runs        persistence.RunRepository
	executor    *actions.Executor
	concurrency int
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Worker)

// WithConcurrency bounds how many runs of one message execute at once.
// Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		w.concurrency = n
	}
}

// WithID replaces the generated worker id.
func WithID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Worker) {
		w.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func New(
	logger *slog.Logger,
	bus eventbus.EventBus,
	store persistence.Persistence,
	executor *actions.Executor,
	opts ...Option,
) *Worker {
	w := &Worker{
		id:          "worker-" + uuid.NewString()[:8],
		bus:         bus,
		automations: store.AutomationRepository(),
		runs:        store.RunRepository(),
		executor:    executor,
		tracer:      otel.Tracer("leadflow-worker"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = logger.With("module", "worker", "worker_id", w.id)

	return w
}

func (w *Worker) ID() string {
	return w.id
}

// Start subscribes to matched automations. Consumption stops when ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting worker")

	err := w.bus.Handle(events.AutomationsMatchedEvent, w.handle)
	if err != nil {
		return fmt.Errorf("failed to register handler: %w", err)
	}

	err = w.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	return nil
}

func (w *Worker) handle(ctx context.Context, event any) error {
	matched, ok := event.(*events.AutomationsMatched)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedEvent, event)
	}

	return w.Execute(ctx, matched)
}

// Execute starts every run of matched in priority order and waits for all of
// them. Run failures are recorded on the run. A context cancelled before or
// during the runs is returned so the message is nacked and redelivered.
func (w *Worker) Execute(ctx context.Context, matched *events.AutomationsMatched) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	group := &errgroup.Group{}
	if w.concurrency > 0 {
		group.SetLimit(w.concurrency)
	}

	for _, run := range matched.Runs {
		group.Go(func() error {
			w.executeRun(ctx, matched, run)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

func (w *Worker) executeRun(ctx context.Context, matched *events.AutomationsMatched, matchedRun events.MatchedRun) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.run",
		attribute.String(otelhelper.WorkerIDKey, w.id),
		attribute.String(otelhelper.RunIDKey, matchedRun.RunID),
		attribute.String(otelhelper.AutomationIDKey, matchedRun.AutomationID),
		attribute.String(otelhelper.BuilderIDKey, matched.Event.BuilderID),
		attribute.String(otelhelper.EventIDKey, matched.Event.ID),
	)
	defer span.End()

	logger := w.logger.With(
		"run_id", matchedRun.RunID,
		"automation_id", matchedRun.AutomationID,
		"builder_id", matched.Event.BuilderID,
		"event_id", matched.Event.ID,
	)

	automation, err := w.automations.ByID(ctx, matchedRun.AutomationID)
	if err != nil {
		logger.WarnContext(ctx, "skipping run, automation unavailable", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	if automation.BuilderID != matched.Event.BuilderID || !automation.IsActive {
		logger.WarnContext(ctx, "skipping run, automation is inactive or owned by another builder")

		return
	}

	record := &models.AutomationRun{
		ID:           matchedRun.RunID,
		AutomationID: automation.ID,
		BuilderID:    automation.BuilderID,
		EventID:      matched.Event.ID,
		EventType:    matched.Event.Type,
		LeadID:       matched.Event.LeadID,
		Status:       models.RunRunning,
		StartedAt:    w.now().UTC(),
	}

	w.saveRun(ctx, logger, record)

	run := &protocol.Run{
		ID:           record.ID,
		AutomationID: automation.ID,
		BuilderID:    automation.BuilderID,
		EventID:      matched.Event.ID,
		EventType:    matched.Event.Type,
		LeadID:       matched.Event.LeadID,
		Data:         trigger.Context(matched.Context).Clone(),
	}

	if run.Data == nil {
		run.Data = trigger.Context{}
	}

	record.Results = w.executor.Run(ctx, run, automation.Actions)

	if err := ctx.Err(); err != nil {
		record.Finish(w.now().UTC())
		record.Status = models.RunFailed
		w.saveRun(context.WithoutCancel(ctx), logger, record)
		logger.WarnContext(ctx, "run interrupted, leaving it for redelivery", "error", err)

		return
	}

	record.Finish(w.now().UTC())

	w.saveRun(ctx, logger, record)

	err = w.automations.RecordExecution(ctx, automation.ID, record.Status == models.RunSuccess, *record.CompletedAt)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record execution statistics", "error", err)
	}

	failed := 0

	for _, result := range record.Results {
		if !result.Success {
			failed++
		}
	}

	span.SetAttributes(attribute.String("leadflow.run.status", string(record.Status)))

	completed := events.AutomationRunCompleted{
		BaseEvent:    events.NewBaseEvent(events.AutomationRunCompletedEvent, automation.BuilderID),
		RunID:        record.ID,
		AutomationID: automation.ID,
		Status:       string(record.Status),
		Failed:       failed,
	}
	completed.WorkerID = w.id

	err = w.bus.Publish(ctx, automation.BuilderID, completed)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish run completion", "error", err)
	}

	logger.InfoContext(ctx, "automation run finished", "status", record.Status, "actions", len(record.Results), "failed", failed)
}

func (w *Worker) saveRun(ctx context.Context, logger *slog.Logger, record *models.AutomationRun) {
	err := w.runs.Save(ctx, record)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save automation run", "status", record.Status, "error", err)
	}
}
