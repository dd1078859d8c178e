package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// flattenProperties 将嵌套的 properties 段展平为点号分隔的键，
// 列表元素使用 key[i] 形式。同一个键出现两次时返回错误。
func flattenProperties(tree map[string]any) (map[string]string, error) {
	out := make(map[string]string)
	if err := flattenInto(out, "", tree); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]string, prefix string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flattenInto(out, joinKey(prefix, k), v[k]); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		converted := make(map[string]any, len(v))
		for k, item := range v {
			converted[fmt.Sprint(k)] = item
		}
		return flattenInto(out, prefix, converted)
	case []any:
		for i, item := range v {
			if err := flattenInto(out, fmt.Sprintf("%s[%d]", prefix, i), item); err != nil {
				return err
			}
		}
		return nil
	default:
		if prefix == "" {
			return fmt.Errorf("properties 必须是映射表")
		}
		if _, dup := out[prefix]; dup {
			return fmt.Errorf("属性 %q 重复定义", prefix)
		}
		out[prefix] = scalarString(v)
		return nil
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
