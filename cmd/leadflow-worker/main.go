package main

import (
	"context"
	"log/slog"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "leadflow-worker",
		Usage:                 "Execute the actions of matched automations",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewRunCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("leadflow-worker failed", "error", err)
		os.Exit(1)
	}
}
