package property

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	xerrors "config-client/internal/errors"
	"config-client/pkg/logger"
)

// MissingPolicy 决定键在所有来源中都不存在时的行为。
type MissingPolicy string

const (
	// MissingFail 返回 PROPERTY_UNRESOLVED 错误，服务因此无法启动。
	MissingFail MissingPolicy = "fail"
	// MissingEmpty 使用空字符串代替。
	MissingEmpty MissingPolicy = "empty"
)

const defaultMaxDepth = 16

// Resolver 按顺序查询属性来源，并展开值中的 ${...} 占位符。
type Resolver struct {
	sources      []Source
	onMissing    MissingPolicy
	defaultValue *string
	maxDepth     int
	logger       *slog.Logger
}

// Option 用于定制 Resolver。
type Option func(*Resolver)

// WithMissingPolicy 设置缺失策略。
func WithMissingPolicy(policy MissingPolicy) Option {
	return func(r *Resolver) {
		if policy != "" {
			r.onMissing = policy
		}
	}
}

// WithDefault 设置根键缺失时使用的默认值，优先于缺失策略。
func WithDefault(value string) Option {
	return func(r *Resolver) {
		r.defaultValue = &value
	}
}

// WithMaxDepth 限制占位符嵌套解析的深度。
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver 构造解析器，sources 的顺序即优先级。
func NewResolver(sources []Source, opts ...Option) *Resolver {
	r := &Resolver{
		onMissing: MissingFail,
		maxDepth:  defaultMaxDepth,
	}
	for _, src := range sources {
		if src != nil {
			r.sources = append(r.sources, src)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = logger.Named("property")
	}
	return r
}

// Sources 返回来源名称，顺序与查询顺序一致。
func (r *Resolver) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		names = append(names, src.Name())
	}
	return names
}

// Resolve 解析 key 对应的属性。
func (r *Resolver) Resolve(ctx context.Context, key string) (ConfiguredProperty, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ConfiguredProperty{}, xerrors.New(xerrors.CodeInvalidArgument, "属性名不能为空")
	}

	value, source, found, err := r.lookup(ctx, key)
	if err != nil {
		return ConfiguredProperty{}, err
	}

	chain := []string{key}
	switch {
	case found:
	case r.defaultValue != nil:
		value, source = *r.defaultValue, SourceDefault
	case r.onMissing == MissingEmpty:
		r.logger.Warn("属性未配置，使用空字符串", slog.String("key", key))
		return ConfiguredProperty{Key: key, Source: SourceMissing}, nil
	default:
		return ConfiguredProperty{}, unresolved(key)
	}

	expanded, err := r.expand(ctx, value, chain)
	if err != nil {
		return ConfiguredProperty{}, err
	}
	return ConfiguredProperty{Key: key, Value: expanded, Source: source}, nil
}

// ResolvePlaceholder 解析 ${key:default} 形式的表达式。
func (r *Resolver) ResolvePlaceholder(ctx context.Context, expr string) (ConfiguredProperty, error) {
	ph, err := ParsePlaceholder(expr)
	if err != nil {
		return ConfiguredProperty{}, err
	}
	if !ph.HasDefault {
		return r.Resolve(ctx, ph.Key)
	}
	scoped := *r
	scoped.defaultValue = &ph.Default
	return scoped.Resolve(ctx, ph.Key)
}

func (r *Resolver) lookup(ctx context.Context, key string) (string, string, bool, error) {
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return "", "", false, xerrors.Wrap(xerrors.CodeTimeout, err, "属性解析被取消")
		}
		value, found, err := src.Lookup(ctx, key)
		if err != nil {
			return "", "", false, xerrors.Wrap(xerrors.CodeSourceFailure, err,
				fmt.Sprintf("属性来源 %s 查询失败", src.Name()),
				xerrors.WithMetadata("source", src.Name()),
				xerrors.WithMetadata("key", key),
			)
		}
		if found {
			r.logger.Debug("属性命中", slog.String("key", key), slog.String("source", src.Name()))
			return value, src.Name(), true, nil
		}
	}
	return "", "", false, nil
}

// expand 递归展开 value 中的占位符，chain 记录正在解析的键以检测循环引用。
func (r *Resolver) expand(ctx context.Context, value string, chain []string) (string, error) {
	if !strings.Contains(value, placeholderPrefix) {
		return value, nil
	}
	if len(chain) > r.maxDepth {
		return "", xerrors.New(xerrors.CodeInvalidPlaceholder,
			fmt.Sprintf("占位符嵌套超过 %d 层", r.maxDepth),
			xerrors.WithMetadata("chain", strings.Join(chain, " -> ")),
		)
	}

	var out strings.Builder
	rest := value
	for {
		start := strings.Index(rest, placeholderPrefix)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := matchingSuffix(rest, start)
		if end < 0 {
			// 未闭合的占位符按字面量保留。
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		ph := splitPlaceholder(rest[start+len(placeholderPrefix) : end])
		key, err := r.expand(ctx, ph.Key, chain)
		if err != nil {
			return "", err
		}
		ph.Key = strings.TrimSpace(key)
		resolved, err := r.resolveNested(ctx, ph, chain)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
		rest = rest[end+len(placeholderSuffix):]
	}
	return out.String(), nil
}

func (r *Resolver) resolveNested(ctx context.Context, ph Placeholder, chain []string) (string, error) {
	for _, seen := range chain {
		if seen == ph.Key {
			return "", xerrors.New(xerrors.CodeInvalidPlaceholder,
				fmt.Sprintf("占位符循环引用: %s -> %s", strings.Join(chain, " -> "), ph.Key),
				xerrors.WithMetadata("key", ph.Key),
			)
		}
	}

	value, _, found, err := r.lookup(ctx, ph.Key)
	if err != nil {
		return "", err
	}
	next := append(append([]string(nil), chain...), ph.Key)
	switch {
	case found:
		return r.expand(ctx, value, next)
	case ph.HasDefault:
		return r.expand(ctx, ph.Default, next)
	case r.onMissing == MissingEmpty:
		return "", nil
	default:
		return "", unresolved(ph.Key)
	}
}

func unresolved(key string) error {
	return xerrors.New(xerrors.CodePropertyUnresolved,
		fmt.Sprintf("无法解析占位符 ${%s}", key),
		xerrors.WithMetadata("key", key),
	)
}
