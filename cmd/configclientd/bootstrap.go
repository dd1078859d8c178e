package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"config-client/internal/config"
	xerrors "config-client/internal/errors"
	"config-client/internal/property"
	"config-client/internal/storage/mysql"
	"config-client/internal/storage/redis"
	"config-client/pkg/logger"
)

// loadConfig 读取配置文件。未显式指定路径且默认文件不存在时使用默认配置。
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(config.DefaultPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

func initLogger(cfg *config.Config) error {
	err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化日志失败")
	}
	return nil
}

// logError 按错误严重程度选择日志级别，并附带错误码、可重试标记与元数据。
func logError(log *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	severity := xerrors.SeverityOf(err)
	level := slog.LevelError
	switch severity {
	case xerrors.SeverityInfo:
		level = slog.LevelInfo
	case xerrors.SeverityWarning:
		level = slog.LevelWarn
	}

	attrs = append(attrs,
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.String("severity", string(severity)),
		slog.Bool("retryable", xerrors.RetryableError(err)),
	)
	if e, ok := xerrors.From(err); ok {
		metadata := e.Metadata()
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, slog.String("meta_"+k, metadata[k]))
		}
	}
	attrs = append(attrs, slog.Any("error", err))
	log.LogAttrs(context.Background(), level, msg, attrs...)
}

func newRedisStore(ctx context.Context, cfg *config.Config) (*redis.PropertyStore, error) {
	return redis.NewPropertyStore(ctx, redis.Config{
		Address:  cfg.Sources.Redis.Address,
		Password: cfg.Sources.Redis.Password,
		DB:       cfg.Sources.Redis.DB,
		Hash:     cfg.Sources.Redis.Hash,
		Timeout:  time.Duration(cfg.Sources.Redis.TimeoutSeconds) * time.Second,
	})
}

func newMySQLStore(ctx context.Context, cfg *config.Config) (*mysql.PropertyStore, error) {
	return mysql.NewPropertyStore(ctx, mysql.Config{
		DSN:             cfg.Sources.MySQL.DSN,
		MaxOpenConns:    cfg.Sources.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Sources.MySQL.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Sources.MySQL.ConnMaxLifetimeSeconds) * time.Second,
		SkipMigrations:  cfg.Sources.MySQL.SkipMigrations,
	})
}

// buildSources 按 sources.order 构造已启用的属性来源。返回的 cleanup 关闭所有外部连接。
func buildSources(ctx context.Context, cfg *config.Config) ([]property.Source, func(), error) {
	var (
		sources []property.Source
		closers []func() error
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.L().Warn("关闭属性来源失败", slog.Any("error", err))
			}
		}
	}

	for _, name := range cfg.Sources.Order {
		if !cfg.SourceEnabled(name) {
			continue
		}
		switch name {
		case config.SourceEnv:
			sources = append(sources, property.NewEnvSource(cfg.Sources.Env.Prefix))
		case config.SourceFile:
			sources = append(sources, property.NewMapSource(config.SourceFile, cfg.Properties))
		case config.SourceRedis:
			store, err := newRedisStore(ctx, cfg)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			sources = append(sources, store)
			closers = append(closers, store.Close)
		case config.SourceMySQL:
			store, err := newMySQLStore(ctx, cfg)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			sources = append(sources, store)
			closers = append(closers, store.Close)
		default:
			cleanup()
			return nil, nil, xerrors.New(xerrors.CodeConfigInvalid, "未知的属性来源", xerrors.WithMetadata("source", name))
		}
	}
	return sources, cleanup, nil
}

func newResolver(cfg *config.Config, sources []property.Source) *property.Resolver {
	opts := []property.Option{
		property.WithMissingPolicy(property.MissingPolicy(cfg.Property.OnMissing)),
		property.WithMaxDepth(cfg.Property.MaxDepth),
		property.WithLogger(logger.Named("resolver")),
	}
	if cfg.Property.Default != nil {
		opts = append(opts, property.WithDefault(*cfg.Property.Default))
	}
	return property.NewResolver(sources, opts...)
}

// resolveOnce 打开属性来源，解析 expr 后立即关闭来源。
// expr 可以是纯键名，也可以是 ${key:default} 形式。
func resolveOnce(ctx context.Context, cfg *config.Config, expr string) (property.ConfiguredProperty, error) {
	sources, cleanup, err := buildSources(ctx, cfg)
	if err != nil {
		return property.ConfiguredProperty{}, err
	}
	defer cleanup()

	return newResolver(cfg, sources).ResolvePlaceholder(ctx, expr)
}

// propertyWriter 是支持写入的外部属性来源。
type propertyWriter interface {
	property.Source
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// openWriter 在测试中可替换。
var openWriter = openPropertyWriter

// openPropertyWriter 打开名为 name 的可写来源；name 为空时取 sources.order 中
// 第一个已启用的 redis 或 mysql。
func openPropertyWriter(ctx context.Context, cfg *config.Config, name string) (propertyWriter, error) {
	if name == "" {
		for _, candidate := range cfg.Sources.Order {
			if (candidate == config.SourceRedis || candidate == config.SourceMySQL) && cfg.SourceEnabled(candidate) {
				name = candidate
				break
			}
		}
		if name == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "没有启用可写的属性来源 (redis 或 mysql)")
		}
	}

	switch name {
	case config.SourceRedis, config.SourceMySQL:
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "只能写入 redis 或 mysql 来源", xerrors.WithMetadata("source", name))
	}
	if !cfg.SourceEnabled(name) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "属性来源未启用", xerrors.WithMetadata("source", name))
	}

	if name == config.SourceRedis {
		store, err := newRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := newMySQLStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
