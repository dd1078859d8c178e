package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func newResolveCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a property through the configured sources and print it",
		ArgsUsage: "[key | ${key:default}]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			if err := initLogger(cfg); err != nil {
				return err
			}

			expr := cfg.Property.Key
			if cmd.Args().Len() > 0 {
				expr = cmd.Args().First()
			}

			prop, err := resolveOnce(ctx, cfg, expr)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "%s=%s (source: %s)\n", prop.Key, prop.Value, prop.Source)
			return err
		},
	}
}
