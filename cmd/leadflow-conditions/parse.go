package main

import (
	"context"
	"errors"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

var ErrNoExpressions = errors.New("at least one expression is required")

func NewParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse expressions such as 'score > 80' into a condition tree",
		ArgsUsage: "<expression>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "logic",
				Usage: "How expressions are joined (and, or)",
				Value: string(condition.And),
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			expressions := command.Args().Slice()
			if len(expressions) == 0 {
				return ErrNoExpressions
			}

			group, err := services.ParseConditions(expressions, condition.Logic(command.String("logic")))
			if err != nil {
				return err
			}

			return writeJSON(command.Root().Writer, condition.Tree{Root: group})
		},
	}
}
