package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/trigger"
	cli "github.com/urfave/cli/v3"
)

type evalOutput struct {
	trigger.Result

	Fingerprint string `json:"fingerprint"`
	Error       string `json:"error,omitempty"`
}

func NewEvalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Evaluate a condition tree against a context and print the trace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "conditions",
				Usage:    "Condition tree as JSON, or @file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Evaluation context as a JSON object, or @file",
				Value: "{}",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			rawConditions, err := readInput(command.String("conditions"))
			if err != nil {
				return err
			}

			rawContext, err := readInput(command.String("context"))
			if err != nil {
				return err
			}

			var tree condition.Tree
			if err := json.Unmarshal(rawConditions, &tree); err != nil {
				return err
			}

			if !tree.IsZero() {
				if err := condition.Validate(tree.Root); err != nil {
					return err
				}
			}

			var data trigger.Context
			if err := json.Unmarshal(rawContext, &data); err != nil {
				return fmt.Errorf("invalid context: %w", err)
			}

			output := evalOutput{Result: trigger.Result{Matched: true}}

			if !tree.IsZero() {
				evaluator := trigger.NewEvaluator(slog.Default())
				output.Result = evaluator.EvaluateWithTrace(ctx, tree.Root, data)

				output.Fingerprint, err = trigger.Fingerprint(tree.Root, data)
				if err != nil {
					return err
				}
			}

			if output.Err != nil {
				output.Error = output.Err.Error()
			}

			return writeJSON(command.Root().Writer, output)
		},
	}
}
