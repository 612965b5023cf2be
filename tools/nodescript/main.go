// Package main provides a CLI for checking and evaluating NodeScript units.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "nodescript",
		Usage: "Check and evaluate NodeScript units",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log compile and registry activity to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "check",
				Aliases:   []string{"c"},
				Usage:     "compile units and report errors",
				ArgsUsage: "FILE...",
				Action:    checkUnits,
			},
			{
				Name:      "eval",
				Aliases:   []string{"e"},
				Usage:     "evaluate node attributes",
				ArgsUsage: "FILE",
				Action:    evalUnit,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "node",
						Aliases:  []string{"n"},
						Usage:    "node to evaluate",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "attr",
						Aliases:  []string{"a"},
						Usage:    "attribute to compute, repeatable",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "param",
						Aliases: []string{"p"},
						Usage:   "parameter as NAME=VALUE, repeatable",
					},
				},
			},
			{
				Name:      "repl",
				Aliases:   []string{"r"},
				Usage:     "evaluate attributes of a unit interactively",
				ArgsUsage: "FILE",
				Action:    runREPL,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "nodescript: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}
