package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"config-client/internal/api"
	"config-client/internal/client"
	"config-client/internal/config"
	"config-client/internal/observability/metrics"
	"config-client/pkg/logger"
)

func newServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Resolve the configured property once and serve it over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Override server.address",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			if listen := cmd.String("listen"); listen != "" {
				cfg.Server.Address = listen
			}
			if err := initLogger(cfg); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return serve(ctx, cfg)
		},
	}
}

// serve 在启动监听前解析属性，之后所有请求共享同一个不可变的值。
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Named("configclientd")

	prop, err := resolveOnce(ctx, cfg, cfg.Property.Key)
	if err != nil {
		logError(log, "属性解析失败", err, slog.String("key", cfg.Property.Key))
		return err
	}
	if prop.Found() {
		log.Info("属性解析完成", slog.String("key", prop.Key), slog.String("source", prop.Source))
	} else {
		log.Warn("属性未在任何来源中找到", slog.String("key", prop.Key), slog.String("source", prop.Source))
	}
	log.Debug("属性值", slog.String("key", prop.Key), slog.String("value", prop.Value))

	opts := []api.Option{
		api.WithLogger(log.With(slog.String("component", "http"))),
		api.WithAuditLogger(logger.Audit()),
		api.WithTimeouts(
			time.Duration(cfg.Server.ReadHeaderTimeoutSecs)*time.Second,
			time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second,
		),
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		collector.SetProperty(prop.Key, prop.Source)
		path := cfg.Metrics.Path
		if cfg.Metrics.Address != "" {
			path = ""
		}
		opts = append(opts, api.WithMetrics(collector, path))
	}

	server := api.NewServer(cfg.Server.Address, client.NewController(prop), opts...)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Start(groupCtx)
	})
	if collector != nil && cfg.Metrics.Address != "" {
		group.Go(func() error {
			log.Info("指标服务已启动", slog.String("addr", cfg.Metrics.Address), slog.String("path", cfg.Metrics.Path))
			return metrics.StartServer(groupCtx, cfg.Metrics.Address, cfg.Metrics.Path, collector)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logError(log, "服务异常退出", err)
		return err
	}
	log.Info("服务已停止")
	return nil
}
