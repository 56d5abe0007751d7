// Package template interpolates {{name}} placeholders in action configuration.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/leadflow/pkg/canonical"
)

// LookupFunc resolves a dotted path such as "lead.name".
type LookupFunc func(path string) (any, bool)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// Render replaces every placeholder in input. A placeholder whose value is
// missing, nil or renders empty is left untouched. When input is a single
// placeholder the resolved value is returned with its original type.
func Render(input string, lookup LookupFunc) any {
	trimmed := strings.TrimSpace(input)

	if match := placeholder.FindStringSubmatchIndex(trimmed); match != nil && match[0] == 0 && match[1] == len(trimmed) {
		value, ok := lookup(trimmed[match[2]:match[3]])
		if ok && value != nil {
			return value
		}

		return input
	}

	return RenderString(input, lookup)
}

// RenderString replaces every placeholder in input with its string form.
func RenderString(input string, lookup LookupFunc) string {
	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]

		value, ok := lookup(path)
		if !ok || value == nil {
			return match
		}

		rendered := format(value)
		if rendered == "" {
			return match
		}

		return rendered
	})
}

// RenderConfig walks config recursively and renders every string it finds.
// The input is not modified.
func RenderConfig(config map[string]any, lookup LookupFunc) map[string]any {
	if config == nil {
		return nil
	}

	rendered, _ := renderValue(config, lookup).(map[string]any)

	return rendered
}

func renderValue(value any, lookup LookupFunc) any {
	switch v := value.(type) {
	case string:
		return Render(v, lookup)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = renderValue(item, lookup)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = renderValue(item, lookup)
		}

		return out
	default:
		return value
	}
}

func format(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = format(item)
		}

		return strings.Join(parts, ",")
	case map[string]any:
		data, err := canonical.Marshal(v)
		if err != nil {
			return ""
		}

		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
