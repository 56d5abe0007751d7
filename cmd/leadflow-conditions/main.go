// Command leadflow-conditions parses and evaluates automation conditions
// offline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/leadflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "leadflow-conditions",
		Usage: "Parse and evaluate automation conditions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup("leadflow-conditions", command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewParseCommand(),
			NewEvalCommand(),
		},
	}
}

func main() {
	err := NewCommand().Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("leadflow-conditions failed", "error", err)
		os.Exit(1)
	}
}

// readInput returns value, or the content of the file it names when it
// starts with @.
func readInput(value string) ([]byte, error) {
	path, isFile := strings.CutPrefix(value, "@")
	if !isFile {
		return []byte(value), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return data, nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
