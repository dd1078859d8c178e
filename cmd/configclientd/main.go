package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"config-client/internal/config"
)

// Version 在构建时通过 ldflags 注入。
var Version = "dev"

// main 是 config-client 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "configclientd 运行失败: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "configclientd",
		Version: Version,
		Usage:   "Serve a configured property over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the settings file (.yaml, .json or .toml)",
				Sources: cli.EnvVars(config.EnvConfigPath),
			},
		},
		Commands: []*cli.Command{
			newServeCmd(),
			newResolveCmd(),
			newGetCmd(),
			newSetCmd(),
			newUnsetCmd(),
			newVersionCmd(),
		},
		DefaultCommand: "serve",
	}
}
