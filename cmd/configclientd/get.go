package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"config-client/sdk/go/configclient"
)

func newGetCmd() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Query a running service and print the configured value",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL of the service",
				Value: "http://127.0.0.1:8080",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print the response body unchanged",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: configclient.DefaultHTTPTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := configclient.NewClient(cmd.String("url"), &http.Client{Timeout: cmd.Duration("timeout")})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout")+time.Second)
			defer cancel()

			var out string
			if cmd.Bool("raw") {
				out, err = c.Raw(ctx)
			} else {
				out, err = c.GetConfig(ctx)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, out)
			return err
		},
	}
}
