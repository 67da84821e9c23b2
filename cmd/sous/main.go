package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

const Version = "v0.1.0"

const defaultConfigFile = "sous.yaml"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sous: %v\n", err)
		os.Exit(1)
	}
}

// configFlag is declared on the root command and inherited by every subcommand.
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   defaultConfigFile,
		Usage:   "Path to configuration file; defaults are used when it does not exist",
		Sources: cli.EnvVars("SOUS_CONFIG"),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "sous",
		Usage:   "List the ingredients of a recipe using a text-generation service",
		Version: Version,
		Flags:   []cli.Flag{configFlag()},
		Action:  serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API until interrupted",
				Action: serveAction,
			},
			{
				Name:   "validate",
				Usage:  "Load and validate the configuration, then exit",
				Action: validateAction,
			},
			{
				Name:      "ask",
				Usage:     "Print the ingredients of one recipe",
				ArgsUsage: "<recipe>",
				Action:    askAction,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "sous %s\n", Version)
					return err
				},
			},
		},
	}
}
