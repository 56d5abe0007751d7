package webhooks

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

const (
	minSuffix = "_min"
	maxSuffix = "_max"
)

// MatchesFilters reports whether data passes every filter. A key ending in
// _min or _max bounds the numeric value of its base key; a list filter
// requires membership; anything else requires equality. Nil filter values are
// ignored.
func MatchesFilters(data map[string]any, filters map[string]any) bool {
	for key, expected := range filters {
		if expected == nil {
			continue
		}

		if !matchesFilter(data, key, expected) {
			return false
		}
	}

	return true
}

func matchesFilter(data map[string]any, key string, expected any) bool {
	switch {
	case strings.HasSuffix(key, minSuffix):
		actual, ok := numeric(data[strings.TrimSuffix(key, minSuffix)])
		bound, boundOK := coerce(expected)

		return ok && boundOK && actual >= bound
	case strings.HasSuffix(key, maxSuffix):
		actual, ok := numeric(data[strings.TrimSuffix(key, maxSuffix)])
		bound, boundOK := coerce(expected)

		return ok && boundOK && actual <= bound
	}

	actual, found := data[key]
	if !found {
		return false
	}

	if list, ok := expected.([]any); ok {
		for _, item := range list {
			if same(actual, item) {
				return true
			}
		}

		return false
	}

	if list, ok := expected.([]string); ok {
		for _, item := range list {
			if same(actual, item) {
				return true
			}
		}

		return false
	}

	return same(actual, expected)
}

func same(actual, expected any) bool {
	left, leftOK := numeric(actual)
	right, rightOK := numeric(expected)

	if leftOK && rightOK {
		return left == right
	}

	return reflect.DeepEqual(actual, expected)
}

// numeric accepts only number-typed values.
func numeric(value any) (float64, bool) {
	var n float64

	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint64:
		n = float64(v)
	default:
		return 0, false
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}

	return n, true
}

// coerce also accepts numeric strings, for bounds written in YAML or forms.
func coerce(value any) (float64, bool) {
	if n, ok := numeric(value); ok {
		return n, true
	}

	s, ok := value.(string)
	if !ok {
		return 0, false
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}

	return n, true
}
