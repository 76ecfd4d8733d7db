// Package redact masks credentials in command lines and option maps before
// they are logged, published or written to disk.
package redact

import "regexp"

// Mask replaces every redacted value.
const Mask = "<redacted>"

const secretWord = `(?:api[_-]?key|token|secret|password|passwd|credential)`

var (
	// key=value and key: value, including env style WANDB_API_KEY=...
	assignedSecret = regexp.MustCompile(`(?i)([\w-]*` + secretWord + `[\w-]*\s*[=:]\s*)("[^"]*"|'[^']*'|\S+)`)
	// --token value
	flagSecret = regexp.MustCompile(`(?i)(--?[\w-]*` + secretWord + `[\w-]*\s+)("[^"]*"|'[^']*'|[^-\s]\S*)`)
	secretFlag = regexp.MustCompile(`(?i)^--?[\w-]*` + secretWord + `[\w-]*$`)
	secretKey  = regexp.MustCompile(`(?i)` + secretWord)
)

// String masks credential values in a command line.
func String(s string) string {
	s = assignedSecret.ReplaceAllString(s, "${1}"+Mask)
	return flagSecret.ReplaceAllString(s, "${1}"+Mask)
}

// Args masks credential values in an argument vector. A secret flag given
// without "=" masks the argument that follows it.
func Args(args []string) []string {
	if args == nil {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		if i > 0 && secretFlag.MatchString(args[i-1]) && !isFlag(a) {
			out[i] = Mask
			continue
		}
		out[i] = String(a)
	}
	return out
}

func isFlag(s string) bool {
	return len(s) > 0 && s[0] == '-'
}

// Map returns a copy of m with values under secret-looking keys masked and
// secrets inside string values redacted.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if secretKey.MatchString(k) {
			out[k] = Mask
			continue
		}
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch x := v.(type) {
	case string:
		return String(x)
	case map[string]any:
		return Map(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = value(e)
		}
		return out
	case []string:
		return Args(x)
	default:
		return v
	}
}
