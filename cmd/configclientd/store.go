package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	xerrors "config-client/internal/errors"
)

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Writable source (redis or mysql); defaults to the first enabled one in sources.order",
	}
}

func newSetCmd() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a property in the Redis or MySQL source",
		ArgsUsage: "<key> <value>",
		Flags:     []cli.Flag{sourceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return xerrors.New(xerrors.CodeInvalidArgument, "set 需要两个参数: <key> <value>")
			}
			key, value := cmd.Args().Get(0), cmd.Args().Get(1)

			return withWriter(ctx, cmd, func(w propertyWriter) error {
				if err := w.Put(ctx, key, value); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.Root().Writer, "%s set in %s\n", key, w.Name())
				return err
			})
		},
	}
}

func newUnsetCmd() *cli.Command {
	return &cli.Command{
		Name:      "unset",
		Usage:     "Remove a property from the Redis or MySQL source",
		ArgsUsage: "<key>",
		Flags:     []cli.Flag{sourceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return xerrors.New(xerrors.CodeInvalidArgument, "unset 需要一个参数: <key>")
			}
			key := cmd.Args().First()

			return withWriter(ctx, cmd, func(w propertyWriter) error {
				if err := w.Delete(ctx, key); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.Root().Writer, "%s removed from %s\n", key, w.Name())
				return err
			})
		},
	}
}

// withWriter 加载配置、打开可写来源并在 fn 返回后关闭它。
func withWriter(ctx context.Context, cmd *cli.Command, fn func(propertyWriter) error) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	w, err := openWriter(ctx, cfg, cmd.String("source"))
	if err != nil {
		return err
	}
	defer w.Close()

	return fn(w)
}
