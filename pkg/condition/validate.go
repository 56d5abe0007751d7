package condition

import (
	"fmt"
	"reflect"
	"strings"
)

// MaxDepth bounds group nesting.
const MaxDepth = 32

// Validate checks that c is a well-formed tree: known operators and logic,
// non-empty fields, list values for `in`, no nil children.
func Validate(c Condition) error {
	return validate(c, 0)
}

func validate(c Condition, depth int) error {
	if depth > MaxDepth {
		return &ConfigurationError{Op: "Validate", Err: ErrTooDeep}
	}

	switch node := c.(type) {
	case Leaf:
		return validateLeaf(node)
	case *Leaf:
		if node == nil {
			return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: nil leaf", ErrInvalidGroup)}
		}

		return validateLeaf(*node)
	case Group:
		return validateGroup(node, depth)
	case *Group:
		if node == nil {
			return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: nil group", ErrInvalidGroup)}
		}

		return validateGroup(*node, depth)
	case nil:
		return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: nil condition", ErrInvalidGroup)}
	default:
		return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: %T", errUnknownShape, c)}
	}
}

func validateLeaf(leaf Leaf) error {
	if strings.TrimSpace(leaf.Field) == "" {
		return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: field is required", ErrInvalidLeaf)}
	}

	if !leaf.Operator.Valid() {
		return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: %q", ErrUnknownOperator, leaf.Operator)}
	}

	if leaf.Operator == In && !isList(leaf.Value) {
		return &ConfigurationError{
			Op:  "Validate",
			Err: fmt.Errorf("%w: %s requires a list value for `in`", ErrInvalidLeaf, leaf.Field),
		}
	}

	return nil
}

func validateGroup(group Group, depth int) error {
	if !group.Logic.Valid() {
		return &ConfigurationError{Op: "Validate", Err: fmt.Errorf("%w: %q", ErrUnknownLogic, group.Logic)}
	}

	for _, child := range group.Conditions {
		err := validate(child, depth+1)
		if err != nil {
			return err
		}
	}

	return nil
}

func isList(value any) bool {
	if value == nil {
		return false
	}

	kind := reflect.TypeOf(value).Kind()

	return kind == reflect.Slice || kind == reflect.Array
}
