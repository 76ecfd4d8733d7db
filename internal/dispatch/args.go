package dispatch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CommandArgs renders a run config as command-line flags, one --key=value per
// key in sorted order. Values wrapped as {"value": v} are unwrapped. Keys with
// a nil value, or a wrapper without "value", are skipped.
func CommandArgs(config map[string]any) []string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		v := config[k]
		if wrapped, ok := v.(map[string]any); ok {
			inner, has := wrapped["value"]
			if !has {
				continue
			}
			v = inner
		}
		if v == nil {
			continue
		}
		args = append(args, fmt.Sprintf("--%s=%s", k, formatValue(v)))
	}
	return args
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case int, int32, int64, uint, uint32, uint64, json.Number:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
