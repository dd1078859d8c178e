package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	xerrors "config-client/internal/errors"
)

// 属性来源名称。
const (
	SourceEnv   = "env"
	SourceRedis = "redis"
	SourceMySQL = "mysql"
	SourceFile  = "file"
)

// 缺失属性的处理策略。
const (
	MissingFail  = "fail"
	MissingEmpty = "empty"
)

// DefaultPropertyKey 是客户端端点默认读取的属性名。
const DefaultPropertyKey = "example.property"

// 可覆盖配置的环境变量。
const (
	EnvConfigPath    = "CONFIG_CLIENT_CONFIG"
	EnvServerAddress = "CONFIG_CLIENT_SERVER_ADDRESS"
	EnvLogLevel      = "CONFIG_CLIENT_LOG_LEVEL"
)

// DefaultPath 是未指定配置文件时使用的路径。
var DefaultPath = filepath.Join("configs", "config-client.yaml")

// Config 描述了 config-client 在启动阶段需要加载的全部配置。
type Config struct {
	Server     ServerConfig      `json:"server" yaml:"server" toml:"server"`
	Logging    LoggingConfig     `json:"logging" yaml:"logging" toml:"logging"`
	Property   PropertyConfig    `json:"property" yaml:"property" toml:"property"`
	Sources    SourcesConfig     `json:"sources" yaml:"sources" toml:"sources"`
	Metrics    MetricsConfig     `json:"metrics" yaml:"metrics" toml:"metrics"`

	// PropertyTree 是 properties 段的原始内容，允许嵌套；Parse 将其展平到 Properties。
	PropertyTree map[string]any `json:"properties" yaml:"properties" toml:"properties"`
	// Properties 以点号连接的完整键名保存文件中的属性，例如 example.property。
	Properties map[string]string `json:"-" yaml:"-" toml:"-"`
}

// ServerConfig 控制 HTTP 服务的监听地址等参数。
type ServerConfig struct {
	Address                string `json:"address" yaml:"address" toml:"address"`
	ReadHeaderTimeoutSecs  int    `json:"read_header_timeout_seconds" yaml:"read_header_timeout_seconds" toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// LoggingConfig 对应 pkg/logger 的初始化参数。
type LoggingConfig struct {
	Level       string      `json:"level" yaml:"level" toml:"level"`
	Format      string      `json:"format" yaml:"format" toml:"format"`
	OutputPaths []string    `json:"output_paths" yaml:"output_paths" toml:"output_paths"`
	Audit       AuditConfig `json:"audit" yaml:"audit" toml:"audit"`
}

// AuditConfig 控制访问审计日志。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Path       string `json:"path" yaml:"path" toml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
}

// PropertyConfig 描述端点返回的属性以及缺失时的策略。
type PropertyConfig struct {
	Key       string  `json:"key" yaml:"key" toml:"key"`
	Default   *string `json:"default" yaml:"default" toml:"default"`
	OnMissing string  `json:"on_missing" yaml:"on_missing" toml:"on_missing"`
	// MaxDepth 限制占位符嵌套展开的层数，0 表示使用解析器默认值。
	MaxDepth int `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
}

// SourcesConfig 描述属性来源以及查找顺序。
type SourcesConfig struct {
	Order []string          `json:"order" yaml:"order" toml:"order"`
	Env   EnvSourceConfig   `json:"env" yaml:"env" toml:"env"`
	Redis RedisSourceConfig `json:"redis" yaml:"redis" toml:"redis"`
	MySQL MySQLSourceConfig `json:"mysql" yaml:"mysql" toml:"mysql"`
}

// EnvSourceConfig 控制环境变量来源。Disabled 为 true 时跳过。
type EnvSourceConfig struct {
	Disabled bool   `json:"disabled" yaml:"disabled" toml:"disabled"`
	Prefix   string `json:"prefix" yaml:"prefix" toml:"prefix"`
}

// RedisSourceConfig 描述 Redis 哈希来源的连接信息。
type RedisSourceConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address        string `json:"address" yaml:"address" toml:"address"`
	Password       string `json:"password" yaml:"password" toml:"password"`
	DB             int    `json:"db" yaml:"db" toml:"db"`
	Hash           string `json:"hash" yaml:"hash" toml:"hash"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// MySQLSourceConfig 描述 MySQL 属性表的连接信息。
type MySQLSourceConfig struct {
	Enabled                bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	DSN                    string `json:"dsn" yaml:"dsn" toml:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds" toml:"conn_max_lifetime_seconds"`
	SkipMigrations         bool   `json:"skip_migrations" yaml:"skip_migrations" toml:"skip_migrations"`
}

// MetricsConfig 控制 Prometheus 指标暴露。Address 为空时挂载在主服务上。
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address string `json:"address" yaml:"address" toml:"address"`
	Path    string `json:"path" yaml:"path" toml:"path"`
}

// Load 负责解析指定路径的配置文件，格式由扩展名决定。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "读取配置文件失败")
	}

	cfg, err := Parse(content, formatOf(path))
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnvOverrides(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回未读取任何文件时的配置：默认值加上环境变量覆盖。
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults(".")
	cfg.applyEnvOverrides(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 按照给定格式解码配置内容，不做默认值处理。
func Parse(content []byte, format string) (*Config, error) {
	var cfg Config
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(content, &cfg)
	case "yaml":
		err = yaml.Unmarshal(content, &cfg)
	case "toml":
		err = gotoml.Unmarshal(content, &cfg)
	default:
		return nil, xerrors.New(xerrors.CodeConfigInvalid, fmt.Sprintf("不支持的配置格式: %s", format))
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "解析配置失败")
	}

	props, err := flattenProperties(cfg.PropertyTree)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeConfigInvalid, err, "解析 properties 失败")
	}
	cfg.Properties = props
	cfg.PropertyTree = nil
	return &cfg, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadHeaderTimeoutSecs <= 0 {
		c.Server.ReadHeaderTimeoutSecs = 5
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
	} else if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}

	if strings.TrimSpace(c.Property.Key) == "" {
		c.Property.Key = DefaultPropertyKey
	}
	if c.Property.OnMissing == "" {
		c.Property.OnMissing = MissingFail
	}

	if len(c.Sources.Order) == 0 {
		c.Sources.Order = []string{SourceEnv, SourceRedis, SourceMySQL, SourceFile}
	}
	if c.Sources.Redis.Hash == "" {
		c.Sources.Redis.Hash = "config-client:properties"
	}
	if c.Sources.Redis.TimeoutSeconds <= 0 {
		c.Sources.Redis.TimeoutSeconds = 5
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Properties == nil {
		c.Properties = map[string]string{}
	}
}

// applyEnvOverrides 允许通过环境变量覆盖少量运行参数。
func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServerAddress); ok && strings.TrimSpace(v) != "" {
		c.Server.Address = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
}

// Validate 检查配置之间的一致性。
func (c *Config) Validate() error {
	var errs []error

	switch c.Property.OnMissing {
	case MissingFail, MissingEmpty:
	default:
		errs = append(errs, fmt.Errorf("property.on_missing 取值无效: %q", c.Property.OnMissing))
	}

	if c.Property.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("property.max_depth 不能为负数: %d", c.Property.MaxDepth))
	}

	seen := make(map[string]struct{}, len(c.Sources.Order))
	for _, name := range c.Sources.Order {
		switch name {
		case SourceEnv, SourceRedis, SourceMySQL, SourceFile:
		default:
			errs = append(errs, fmt.Errorf("未知的属性来源: %q", name))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("属性来源重复: %q", name))
		}
		seen[name] = struct{}{}
	}

	if c.Sources.Redis.Enabled && strings.TrimSpace(c.Sources.Redis.Address) == "" {
		errs = append(errs, errors.New("启用 Redis 来源时 sources.redis.address 不能为空"))
	}
	if c.Sources.MySQL.Enabled && strings.TrimSpace(c.Sources.MySQL.DSN) == "" {
		errs = append(errs, errors.New("启用 MySQL 来源时 sources.mysql.dsn 不能为空"))
	}
	for _, name := range []string{SourceRedis, SourceMySQL} {
		if _, listed := seen[name]; c.SourceEnabled(name) && !listed {
			errs = append(errs, fmt.Errorf("已启用的来源 %q 未出现在 sources.order 中", name))
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format 取值无效: %q", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path 必须以 / 开头: %q", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return xerrors.Wrap(xerrors.CodeConfigInvalid, errors.Join(errs...), "配置校验失败")
	}
	return nil
}

// SourceEnabled 判断某个来源是否在当前配置中启用。
func (c *Config) SourceEnabled(name string) bool {
	switch name {
	case SourceEnv:
		return !c.Sources.Env.Disabled
	case SourceRedis:
		return c.Sources.Redis.Enabled
	case SourceMySQL:
		return c.Sources.MySQL.Enabled
	case SourceFile:
		return true
	default:
		return false
	}
}
