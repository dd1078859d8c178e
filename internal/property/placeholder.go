package property

import (
	"fmt"
	"strings"

	xerrors "config-client/internal/errors"
)

const (
	placeholderPrefix    = "${"
	placeholderSuffix    = "}"
	placeholderSeparator = ":"
)

// Placeholder 是 ${key:default} 表达式的解析结果。
type Placeholder struct {
	Key        string
	Default    string
	HasDefault bool
}

// String 还原为表达式形式。
func (p Placeholder) String() string {
	if p.HasDefault {
		return placeholderPrefix + p.Key + placeholderSeparator + p.Default + placeholderSuffix
	}
	return placeholderPrefix + p.Key + placeholderSuffix
}

// ParsePlaceholder 解析完整的占位符表达式，例如 ${example.property:hello}。
// 不带 ${} 的输入被视为纯键名。
func ParsePlaceholder(expr string) (Placeholder, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, placeholderPrefix) {
		if expr == "" || strings.Contains(expr, placeholderSuffix) {
			return Placeholder{}, invalidPlaceholder(expr)
		}
		return Placeholder{Key: expr}, nil
	}
	end := matchingSuffix(expr, 0)
	if end != len(expr)-len(placeholderSuffix) {
		return Placeholder{}, invalidPlaceholder(expr)
	}
	ph := splitPlaceholder(expr[len(placeholderPrefix):end])
	ph.Key = strings.TrimSpace(ph.Key)
	if ph.Key == "" {
		return Placeholder{}, invalidPlaceholder(expr)
	}
	return ph, nil
}

// matchingSuffix 返回与 start 处 ${ 配对的 } 的位置，支持嵌套。
func matchingSuffix(s string, start int) int {
	depth := 0
	for i := start; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], placeholderPrefix):
			depth++
			i += len(placeholderPrefix)
		case strings.HasPrefix(s[i:], placeholderSuffix):
			depth--
			if depth == 0 {
				return i
			}
			i += len(placeholderSuffix)
		default:
			i++
		}
	}
	return -1
}

// splitPlaceholder 在最外层的第一个 : 处拆分键名与默认值。
func splitPlaceholder(inner string) Placeholder {
	depth := 0
	for i := 0; i < len(inner); {
		switch {
		case strings.HasPrefix(inner[i:], placeholderPrefix):
			depth++
			i += len(placeholderPrefix)
		case strings.HasPrefix(inner[i:], placeholderSuffix):
			depth--
			i += len(placeholderSuffix)
		case depth == 0 && strings.HasPrefix(inner[i:], placeholderSeparator):
			return Placeholder{
				Key:        inner[:i],
				Default:    inner[i+len(placeholderSeparator):],
				HasDefault: true,
			}
		default:
			i++
		}
	}
	return Placeholder{Key: inner}
}

func invalidPlaceholder(expr string) error {
	return xerrors.New(xerrors.CodeInvalidPlaceholder, fmt.Sprintf("无效的占位符表达式: %q", expr))
}
