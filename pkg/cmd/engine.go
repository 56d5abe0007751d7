package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/config"
	"github.com/dukex/leadflow/pkg/dispatcher"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/registry"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/dukex/leadflow/pkg/worker"
	"go.opentelemetry.io/otel/trace"
)

// EngineOptions are the process flags shared by every binary.
type EngineOptions struct {
	DatabaseURL   string
	EventBus      string
	KafkaBrokers  []string
	ConsumerGroup string
	RedisURL      string
	PluginsPath   string
	ConfigPath    string
	Tracer        trace.Tracer
}

// Engine holds the components shared by the API and the workers.
type Engine struct {
	Config      config.Config
	Persistence persistence.Persistence
	EventBus    *eventbus.WatermillEventBus
	Cache       EvaluationCache
	Webhooks    *webhooks.Manager
	Registry    *registry.Registry
	Contexts    *trigger.ContextBuilder
	Evaluator   *trigger.Evaluator

	tracer trace.Tracer
	logger *slog.Logger
}

// NewEngine opens the store, the queue and the cache. Close releases them.
func NewEngine(ctx context.Context, logger *slog.Logger, opts EngineOptions) (*Engine, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	store, err := NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	bus, err := NewEventBus(opts.EventBus, opts.KafkaBrokers, opts.ConsumerGroup, logger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, err
	}

	evaluationCache, err := NewCache(ctx, opts.RedisURL, cfg.Cache, logger)
	if err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)

		return nil, err
	}

	webhookOpts := []webhooks.Option{
		webhooks.WithBackoff(cfg.Backoff()),
		webhooks.WithConcurrency(cfg.Delivery.Concurrency),
	}

	if opts.Tracer != nil {
		webhookOpts = append(webhookOpts, webhooks.WithTracer(opts.Tracer))
	}

	manager := webhooks.NewManager(logger, store.WebhookRepository(), store.DeliveryRepository(), webhookOpts...)

	reg, err := NewRegistry(logger, opts.PluginsPath, registry.Dependencies{
		Logger:   logger,
		Leads:    store.LeadRepository(),
		Notifier: manager,
	})
	if err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)

		return nil, err
	}

	return &Engine{
		Config:      cfg,
		Persistence: store,
		EventBus:    bus,
		Cache:       evaluationCache,
		Webhooks:    manager,
		Registry:    reg,
		Contexts:    trigger.NewContextBuilder(store.LeadRepository(), store.PropertyRepository()),
		Evaluator:   trigger.NewEvaluator(logger, trigger.WithCache(evaluationCache), trigger.WithTTL(cfg.Cache.TTL)),
		tracer:      opts.Tracer,
		logger:      logger,
	}, nil
}

func (e *Engine) Dispatcher() *dispatcher.Dispatcher {
	var opts []dispatcher.Option
	if e.tracer != nil {
		opts = append(opts, dispatcher.WithTracer(e.tracer))
	}

	return dispatcher.New(e.logger, e.Persistence.AutomationRepository(), e.Contexts, e.Evaluator, e.EventBus, opts...)
}

func (e *Engine) Worker(id string) *worker.Worker {
	var (
		executorOpts []actions.ExecutorOption
		workerOpts   = []worker.Option{worker.WithID(id), worker.WithConcurrency(e.Config.Worker.Concurrency)}
	)

	if e.tracer != nil {
		executorOpts = append(executorOpts, actions.WithTracer(e.tracer))
		workerOpts = append(workerOpts, worker.WithTracer(e.tracer))
	}

	executor := actions.NewExecutor(e.logger, e.Registry, executorOpts...)

	return worker.New(e.logger, e.EventBus, e.Persistence, executor, workerOpts...)
}

func (e *Engine) AutomationService() *services.Automation {
	return services.NewAutomation(e.Persistence, e.Registry, e.Contexts, e.Evaluator)
}

// Close shuts the queue down before the store so in-flight runs can still
// save their records.
func (e *Engine) Close(ctx context.Context) {
	err := e.EventBus.Close()
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if closer, ok := e.Cache.(interface{ Close() error }); ok {
		err = closer.Close()
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to close cache", "error", err)
		}
	}

	err = e.Persistence.Close(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
