package trigger

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dukex/leadflow/pkg/canonical"
	"github.com/dukex/leadflow/pkg/condition"
)

// compare applies op to the resolved field value. A missing field satisfies
// is_empty only. Numeric operators fail closed when either side is not a number.
func compare(op condition.Operator, actual any, found bool, expected any) (bool, error) {
	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", condition.ErrUnknownOperator, op)
	}

	var list []any

	if op == condition.In {
		items, ok := toList(expected)
		if !ok {
			return false, ErrNotAList
		}

		list = items
	}

	switch op {
	case condition.IsEmpty:
		return !found || isEmpty(actual), nil
	case condition.IsNotEmpty:
		return found && !isEmpty(actual), nil
	}

	if !found {
		return false, nil
	}

	switch op {
	case condition.Equals:
		return equal(actual, expected), nil
	case condition.NotEquals:
		return !equal(actual, expected), nil
	case condition.GreaterThan, condition.LessThan, condition.GreaterThanOrEqual, condition.LessThanOrEqual:
		return compareNumbers(op, actual, expected), nil
	case condition.Contains:
		return contains(actual, expected), nil
	case condition.In:
		return within(actual, list), nil
	default:
		return false, fmt.Errorf("%w: %q", condition.ErrUnknownOperator, op)
	}
}

func compareNumbers(op condition.Operator, actual, expected any) bool {
	a, ok := toNumber(actual)
	if !ok {
		return false
	}

	b, ok := toNumber(expected)
	if !ok {
		return false
	}

	switch op {
	case condition.GreaterThan:
		return a > b
	case condition.LessThan:
		return a < b
	case condition.GreaterThanOrEqual:
		return a >= b
	case condition.LessThanOrEqual:
		return a <= b
	default:
		return false
	}
}

// contains is a case-insensitive substring test on strings and an element
// test on lists.
func contains(actual, expected any) bool {
	if expected == nil {
		return false
	}

	if text, ok := actual.(string); ok {
		needle, ok := scalarString(expected)
		if !ok {
			return false
		}

		return strings.Contains(strings.ToLower(text), strings.ToLower(needle))
	}

	items, ok := toList(actual)
	if !ok {
		return false
	}

	for _, item := range items {
		if equal(item, expected) {
			return true
		}
	}

	return false
}

// within reports whether actual is one of the listed values. A list value
// matches when any of its elements is listed.
func within(actual any, list []any) bool {
	if items, ok := toList(actual); ok {
		for _, item := range items {
			if within(item, list) {
				return true
			}
		}

		return false
	}

	for _, candidate := range list {
		if equal(actual, candidate) {
			return true
		}
	}

	return false
}

// equal compares numbers numerically (a numeric string matches a number),
// lists and objects by canonical form, everything else by value.
func equal(a, b any) bool {
	if isNumber(a) || isNumber(b) {
		x, okA := toNumber(a)
		y, okB := toNumber(b)

		if okA && okB {
			return x == y
		}

		return false
	}

	if isComposite(a) || isComposite(b) {
		return canonical.Equal(a, b)
	}

	return reflect.DeepEqual(a, b)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}

	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func isPrimitive(value any) bool {
	switch value.(type) {
	case string, bool, json.Number:
		return true
	default:
		return isNumber(value)
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}

func isComposite(value any) bool {
	if value == nil {
		return false
	}

	switch reflect.TypeOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return true
	default:
		return false
	}
}

func toNumber(value any) (float64, bool) {
	var number float64

	switch v := value.(type) {
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int8:
		number = float64(v)
	case int16:
		number = float64(v)
	case int32:
		number = float64(v)
	case int64:
		number = float64(v)
	case uint:
		number = float64(v)
	case uint8:
		number = float64(v)
	case uint16:
		number = float64(v)
	case uint32:
		number = float64(v)
	case uint64:
		number = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}

		number = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		number = parsed
	default:
		return 0, false
	}

	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}

	return number, true
}

func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		return stringsToAny(v), true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, true
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	}

	if number, ok := toNumber(value); ok && isNumber(value) {
		return strconv.FormatFloat(number, 'f', -1, 64), true
	}

	return "", false
}
