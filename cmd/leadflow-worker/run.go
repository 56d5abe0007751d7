package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "worker-id",
			Aliases: []string{"id"},
			Usage:   "Custom worker ID (auto-generated if not provided)",
			Sources: cli.EnvVars("WORKER_ID"),
		},
	}, cmd.EngineFlags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume matched automations and execute their actions",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup("leadflow-worker", command.String("log-level"))

			logger := log.WithModule("leadflow-worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, "leadflow-worker", command.Bool("otel-enabled"))
			if err != nil {
				return err
			}

			defer func() {
				if err := shutdownTracer(context.Background()); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()

			opts := cmd.EngineOptionsFromCommand(command)
			opts.Tracer = tracer

			if opts.EventBus == cmd.EventBusGoChannel || opts.EventBus == "" {
				logger.WarnContext(ctx, "In-memory event bus only receives events published by this process")
			}

			engine, err := cmd.NewEngine(ctx, logger, opts)
			if err != nil {
				return err
			}
			defer engine.Close(context.Background())

			stopSweeper, err := cmd.StartSweeper(engine.Cache, engine.Config.Cache.SweepSchedule, logger)
			if err != nil {
				return err
			}
			defer stopSweeper(context.Background())

			worker := engine.Worker(command.String("worker-id"))

			err = worker.Start(ctx)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Worker started", "worker_id", worker.ID())

			<-ctx.Done()

			logger.InfoContext(ctx, "Shutting down worker", "worker_id", worker.ID())

			return nil
		},
	}
}
