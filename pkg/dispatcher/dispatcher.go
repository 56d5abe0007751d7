// Package dispatcher evaluates incoming lead events against the builder's
// automations and queues the matched runs for the workers.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Dispatch summarizes what one event matched.
type Dispatch struct {
	EventID   string              `json:"event_id"`
	Evaluated int                 `json:"evaluated"`
	Runs      []events.MatchedRun `json:"runs"`
}

// AutomationIDs returns the matched automations in execution order.
func (d Dispatch) AutomationIDs() []string {
	ids := make([]string, 0, len(d.Runs))
	for _, run := range d.Runs {
		ids = append(ids, run.AutomationID)
	}

	return ids
}

type Dispatcher struct {
	automations persistence.AutomationRepository
	contexts    *trigger.ContextBuilder
	evaluator   *trigger.Evaluator
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Dispatcher)

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(
	logger *slog.Logger,
	automations persistence.AutomationRepository,
	contexts *trigger.ContextBuilder,
	evaluator *trigger.Evaluator,
	publisher eventbus.EventPublisher,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		automations: automations,
		contexts:    contexts,
		evaluator:   evaluator,
		publisher:   publisher,
		tracer:      otel.Tracer("leadflow-dispatcher"),
		now:         time.Now,
		logger:      logger.With("module", "dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch builds the context for event, evaluates every active automation of
// the builder that listens to the event type and publishes the matches as one
// AutomationsMatched message. Nothing is published when nothing matched.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.LeadEvent) (Dispatch, error) {
	err := event.Validate()
	if err != nil {
		return Dispatch{}, err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now().UTC()
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.dispatch",
		attribute.String(otelhelper.BuilderIDKey, event.BuilderID),
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.EventTypeKey, event.Type),
		attribute.String(otelhelper.LeadIDKey, event.LeadID),
	)
	defer span.End()

	logger := d.logger.With("builder_id", event.BuilderID, "event_id", event.ID, "event_type", event.Type)

	data, err := d.contexts.Build(ctx, event)
	if err != nil {
		otelhelper.SetError(span, err)

		return Dispatch{}, fmt.Errorf("failed to build context: %w", err)
	}

	matched, evaluated, err := d.Match(ctx, event, data)
	if err != nil {
		otelhelper.SetError(span, err)

		return Dispatch{}, err
	}

	result := Dispatch{EventID: event.ID, Evaluated: evaluated, Runs: make([]events.MatchedRun, 0, len(matched))}

	for _, automation := range matched {
		result.Runs = append(result.Runs, events.MatchedRun{
			RunID:        uuid.NewString(),
			AutomationID: automation.ID,
			Priority:     automation.Priority,
		})
	}

	span.SetAttributes(attribute.Int("leadflow.dispatch.matched", len(result.Runs)))

	if len(result.Runs) == 0 {
		logger.DebugContext(ctx, "no automation matched", "evaluated", evaluated)

		return result, nil
	}

	message := events.AutomationsMatched{
		BaseEvent: events.NewBaseEvent(events.AutomationsMatchedEvent, event.BuilderID),
		Event:     event,
		Context:   data,
		Runs:      result.Runs,
	}

	err = d.publisher.Publish(ctx, event.BuilderID, message)
	if err != nil {
		otelhelper.SetError(span, err)

		return Dispatch{}, fmt.Errorf("failed to publish matched automations: %w", err)
	}

	logger.InfoContext(ctx, "automations matched", "evaluated", evaluated, "matched", result.AutomationIDs())

	return result, nil
}

// Match returns the active automations of the event's builder whose
// conditions hold for data, in execution order, and how many were evaluated.
func (d *Dispatcher) Match(ctx context.Context, event events.LeadEvent, data trigger.Context) ([]*models.Automation, int, error) {
	automations, err := d.automations.ActiveByBuilder(ctx, event.BuilderID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load automations: %w", err)
	}

	matched := make([]*models.Automation, 0, len(automations))
	evaluated := 0

	for _, automation := range automations {
		if !automation.ListensTo(event.Type) {
			continue
		}

		evaluated++

		if automation.Conditions.IsZero() || d.evaluator.Evaluate(ctx, automation.Conditions.Root, data) {
			matched = append(matched, automation)
		}
	}

	slices.SortStableFunc(matched, models.CompareExecutionOrder)

	return matched, evaluated, nil
}
