package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrUnparseable indicates an expression that matches none of the grammar patterns.
	ErrUnparseable = errors.New("expression does not match any supported pattern")

	// ErrUnknownOperator indicates a leaf operator outside the supported set.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrUnknownLogic indicates a group logic other than and/or.
	ErrUnknownLogic = errors.New("unknown group logic")

	// ErrInvalidLeaf indicates a leaf with a missing field or an ill-typed value.
	ErrInvalidLeaf = errors.New("invalid leaf condition")

	// ErrInvalidGroup indicates a group with nil or malformed children.
	ErrInvalidGroup = errors.New("invalid condition group")

	// ErrTooDeep indicates a tree nested beyond MaxDepth.
	ErrTooDeep = errors.New("condition tree is too deep")
)

// ConfigurationError reports a malformed expression or condition tree. It is
// raised when an automation is saved and must never be defaulted away.
type ConfigurationError struct {
	Op         string
	Expression string
	Err        error
}

func (e *ConfigurationError) Error() string {
	if e.Expression != "" {
		return fmt.Sprintf("%s: invalid condition %q: %v", e.Op, e.Expression, e.Err)
	}

	return fmt.Sprintf("%s: invalid condition: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError

	return errors.As(err, &target)
}
