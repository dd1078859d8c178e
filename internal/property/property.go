package property

import (
	"context"
	"os"
	"strings"
)

// 特殊来源名称，用于标记未从任何来源读取到的值。
const (
	SourceDefault = "default"
	SourceMissing = "missing"
)

// ConfiguredProperty 是一次解析得到的键值对，解析完成后不再改变。
type ConfiguredProperty struct {
	Key    string
	Value  string
	Source string
}

// Found 表示值是否来自真实的属性来源。
func (p ConfiguredProperty) Found() bool {
	return p.Source != SourceDefault && p.Source != SourceMissing && p.Source != ""
}

// Source 抽象了一个属性来源。found 为 false 表示该来源没有这个键，
// err 只用于来源本身不可用的情况。
type Source interface {
	Name() string
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
}

// SourceFunc 将普通函数适配为 Source。
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, key string) (string, bool, error)
}

// Name 返回来源名称。
func (f SourceFunc) Name() string { return f.SourceName }

// Lookup 调用包装的函数。
func (f SourceFunc) Lookup(ctx context.Context, key string) (string, bool, error) {
	return f.Fn(ctx, key)
}

// MapSource 使用内存中的映射表作为来源，对应配置文件里的 properties 段。
type MapSource struct {
	name   string
	values map[string]string
}

// NewMapSource 复制 values 并返回只读来源。
func NewMapSource(name string, values map[string]string) *MapSource {
	clone := make(map[string]string, len(values))
	for k, v := range values {
		clone[k] = v
	}
	return &MapSource{name: name, values: clone}
}

// Name 返回来源名称。
func (s *MapSource) Name() string { return s.name }

// Lookup 返回映射表中的值。
func (s *MapSource) Lookup(_ context.Context, key string) (string, bool, error) {
	value, ok := s.values[key]
	return value, ok, nil
}

// EnvSource 从环境变量读取属性。先查找原始键名，再查找宽松形式：
// example.property 对应 EXAMPLE_PROPERTY。配置了前缀时两种形式都带前缀。
type EnvSource struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvSource 创建基于进程环境变量的来源。
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{prefix: prefix, lookup: os.LookupEnv}
}

// Name 返回来源名称。
func (s *EnvSource) Name() string { return "env" }

// Lookup 依次尝试候选变量名。
func (s *EnvSource) Lookup(_ context.Context, key string) (string, bool, error) {
	for _, name := range s.candidates(key) {
		if value, ok := s.lookup(name); ok {
			return value, true, nil
		}
	}
	return "", false, nil
}

func (s *EnvSource) candidates(key string) []string {
	relaxed := RelaxedEnvName(key)
	if s.prefix == "" {
		if relaxed == key {
			return []string{key}
		}
		return []string{key, relaxed}
	}
	prefix := strings.TrimSuffix(s.prefix, "_")
	return []string{prefix + "_" + key, RelaxedEnvName(prefix) + "_" + relaxed}
}

// RelaxedEnvName 将属性名转换为环境变量风格：点和横线替换为下划线并转为大写。
func RelaxedEnvName(key string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return strings.ToUpper(replacer.Replace(key))
}
