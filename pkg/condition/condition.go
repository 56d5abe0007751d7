// Package condition defines the condition tree evaluated against lead events
// and the small expression grammar used to write conditions as text.
package condition

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Operator is a leaf comparison.
type Operator string

const (
	Equals             Operator = "equals"
	NotEquals          Operator = "not_equals"
	GreaterThan        Operator = "greater_than"
	LessThan           Operator = "less_than"
	GreaterThanOrEqual Operator = "greater_than_or_equal"
	LessThanOrEqual    Operator = "less_than_or_equal"
	Contains           Operator = "contains"
	In                 Operator = "in"
	IsEmpty            Operator = "is_empty"
	IsNotEmpty         Operator = "is_not_empty"
)

var operators = map[Operator]struct{}{
	Equals:             {},
	NotEquals:          {},
	GreaterThan:        {},
	LessThan:           {},
	GreaterThanOrEqual: {},
	LessThanOrEqual:    {},
	Contains:           {},
	In:                 {},
	IsEmpty:            {},
	IsNotEmpty:         {},
}

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	_, ok := operators[o]

	return ok
}

// Numeric reports whether o compares both sides as numbers.
func (o Operator) Numeric() bool {
	switch o {
	case GreaterThan, LessThan, GreaterThanOrEqual, LessThanOrEqual:
		return true
	default:
		return false
	}
}

// Logic combines the children of a group.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// Valid reports whether l is and/or.
func (l Logic) Valid() bool {
	return l == And || l == Or
}

// Condition is either a Leaf or a Group.
type Condition interface {
	condition()
}

// Leaf compares one context field against a value.
type Leaf struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Group combines child conditions with and/or.
type Group struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

func (Leaf) condition()  {}
func (Group) condition() {}

// NewGroup builds a group from the given children.
func NewGroup(logic Logic, children ...Condition) Group {
	if children == nil {
		children = []Condition{}
	}

	return Group{Logic: logic, Conditions: children}
}

// MarshalJSON encodes the children through Tree so nested groups keep their shape.
func (g Group) MarshalJSON() ([]byte, error) {
	children := make([]Tree, len(g.Conditions))
	for i, child := range g.Conditions {
		children[i] = Tree{Root: child}
	}

	return json.Marshal(struct {
		Logic      Logic  `json:"logic"`
		Conditions []Tree `json:"conditions"`
	}{Logic: g.Logic, Conditions: children})
}

// Tree wraps a root condition so it can be embedded in JSON documents.
//
// Decoding accepts a leaf object, a group object ({"logic","conditions"} or
// {"and": [...]} / {"or": [...]}) or a bare expression string.
type Tree struct {
	Root Condition
}

// IsZero reports whether the tree has no root.
func (t Tree) IsZero() bool {
	return t.Root == nil
}

func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}

	return json.Marshal(t.Root)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	root, err := Decode(data)
	if err != nil {
		return err
	}

	t.Root = root

	return nil
}

var errUnknownShape = errors.New("condition must be a leaf, a group or an expression string")

// Decode reads a condition from its JSON form.
func Decode(data []byte) (Condition, error) {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, &ConfigurationError{Op: "Decode", Err: err}
	}

	if raw == nil {
		return nil, nil
	}

	return fromValue(raw)
}

func fromValue(raw any) (Condition, error) {
	switch value := raw.(type) {
	case string:
		leaf, err := Parse(value)
		if err != nil {
			return nil, err
		}

		return leaf, nil
	case map[string]any:
		return fromObject(value)
	default:
		return nil, &ConfigurationError{Op: "Decode", Err: errUnknownShape}
	}
}

func fromObject(object map[string]any) (Condition, error) {
	if field, ok := object["field"]; ok {
		name, isString := field.(string)
		if !isString {
			return nil, &ConfigurationError{Op: "Decode", Err: fmt.Errorf("%w: field must be a string", ErrInvalidLeaf)}
		}

		operator, _ := object["operator"].(string)

		return Leaf{Field: name, Operator: Operator(operator), Value: object["value"]}, nil
	}

	var (
		logic    Logic
		children any
	)

	switch {
	case object["logic"] != nil:
		value, _ := object["logic"].(string)
		logic = Logic(value)
		children = object["conditions"]
	case object["and"] != nil:
		logic = And
		children = object["and"]
	case object["or"] != nil:
		logic = Or
		children = object["or"]
	default:
		return nil, &ConfigurationError{Op: "Decode", Err: errUnknownShape}
	}

	if !logic.Valid() {
		return nil, &ConfigurationError{Op: "Decode", Err: fmt.Errorf("%w: %q", ErrUnknownLogic, logic)}
	}

	items, ok := children.([]any)
	if children != nil && !ok {
		return nil, &ConfigurationError{Op: "Decode", Err: fmt.Errorf("%w: conditions must be a list", ErrInvalidGroup)}
	}

	group := NewGroup(logic)

	for _, item := range items {
		child, err := fromValue(item)
		if err != nil {
			return nil, err
		}

		group.Conditions = append(group.Conditions, child)
	}

	return group, nil
}

// Fields returns the distinct leaf fields referenced by c, in first-seen order.
func Fields(c Condition) []string {
	seen := make(map[string]struct{})
	fields := make([]string, 0)

	var walk func(Condition, int)

	walk = func(node Condition, depth int) {
		if depth > MaxDepth {
			return
		}

		switch n := node.(type) {
		case Leaf:
			if _, ok := seen[n.Field]; !ok {
				seen[n.Field] = struct{}{}
				fields = append(fields, n.Field)
			}
		case *Leaf:
			if n != nil {
				walk(*n, depth)
			}
		case Group:
			for _, child := range n.Conditions {
				walk(child, depth+1)
			}
		case *Group:
			if n != nil {
				walk(*n, depth)
			}
		}
	}

	walk(c, 0)

	return fields
}
