package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	flags := append([]cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
	}, cmd.EngineFlags()...)

	command := &cli.Command{
		Name:                  "leadflow-api",
		Usage:                 "Manage automations and webhooks and ingest lead events",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup("leadflow-api", command.String("log-level"))
			logger = log.WithModule("api")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.InfoContext(ctx, "Initializing Leadflow API")

			tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, "leadflow-api", command.Bool("otel-enabled"))
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

			engine, err := cmd.NewEngine(ctx, logger, opts)
			if err != nil {
				return err
			}
			defer engine.Close(context.Background())

			// The in-memory bus only reaches subscribers of this process.
			if opts.EventBus == cmd.EventBusGoChannel || opts.EventBus == "" {
				worker := engine.Worker("")

				err = worker.Start(ctx)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Running in-process worker", "worker_id", worker.ID())
			}

			stopSweeper, err := cmd.StartSweeper(engine.Cache, engine.Config.Cache.SweepSchedule, logger)
			if err != nil {
				return err
			}
			defer stopSweeper(context.Background())

			return NewAPI(logger, engine).Start(ctx, command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("leadflow-api failed", "error", err)
		os.Exit(1)
	}
}
