package condition

import (
	"regexp"
	"strconv"
	"strings"
)

// pattern is one rule of the expression grammar. Rules are tried in order and
// the first match wins, so more specific forms come first.
type pattern struct {
	re    *regexp.Regexp
	build func(match []string) Leaf
}

const fieldPattern = `([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)`

var grammar = []pattern{
	{
		re: regexp.MustCompile(`(?i)^` + fieldPattern + `\s+is\s+(not\s+)?empty$`),
		build: func(match []string) Leaf {
			if strings.TrimSpace(match[2]) != "" {
				return Leaf{Field: match[1], Operator: IsNotEmpty}
			}

			return Leaf{Field: match[1], Operator: IsEmpty}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^` + fieldPattern + `\s+in\s+\[(.*)\]$`),
		build: func(match []string) Leaf {
			return Leaf{Field: match[1], Operator: In, Value: coerceList(match[2])}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^` + fieldPattern + `\s+contains\s+(.+)$`),
		build: func(match []string) Leaf {
			return Leaf{Field: match[1], Operator: Contains, Value: coerce(match[2])}
		},
	},
	{
		re: regexp.MustCompile(`^` + fieldPattern + `\s*(>=|<=|==|!=|>|<|=)\s*(.+)$`),
		build: func(match []string) Leaf {
			return Leaf{Field: match[1], Operator: comparisons[match[2]], Value: coerce(match[3])}
		},
	},
}

var comparisons = map[string]Operator{
	">=": GreaterThanOrEqual,
	"<=": LessThanOrEqual,
	"==": Equals,
	"=":  Equals,
	"!=": NotEquals,
	">":  GreaterThan,
	"<":  LessThan,
}

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Parse converts one expression such as `score > 80` or `city in [A,B]` into a
// leaf. Expressions outside the grammar yield a ConfigurationError.
func Parse(expression string) (Leaf, error) {
	trimmed := strings.TrimSpace(expression)

	for _, p := range grammar {
		match := p.re.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}

		return p.build(match), nil
	}

	return Leaf{}, &ConfigurationError{Op: "Parse", Expression: expression, Err: ErrUnparseable}
}

// ParseAll combines expressions into one group. Expressions that fail to parse
// are left out of the group and reported in the returned errors.
func ParseAll(expressions []string, logic Logic) (Group, []error) {
	group := NewGroup(logic)

	var errs []error

	for _, expression := range expressions {
		leaf, err := Parse(expression)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		group.Conditions = append(group.Conditions, leaf)
	}

	return group, errs
}

func coerce(raw string) any {
	value := strings.TrimSpace(raw)

	if unquoted, ok := unquote(value); ok {
		return unquoted
	}

	switch {
	case numberPattern.MatchString(value):
		number, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return number
		}
	case value == "true":
		return true
	case value == "false":
		return false
	case strings.Contains(value, ","):
		parts := strings.Split(value, ",")
		items := make([]any, 0, len(parts))

		for _, part := range parts {
			items = append(items, strings.TrimSpace(part))
		}

		return items
	}

	return value
}

func coerceList(raw string) []any {
	items := make([]any, 0)

	if strings.TrimSpace(raw) == "" {
		return items
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		items = append(items, coerce(part))
	}

	return items
}

func unquote(value string) (string, bool) {
	if len(value) < 2 {
		return "", false
	}

	first, last := value[0], value[len(value)-1]
	if (first == '\'' || first == '"') && first == last {
		return value[1 : len(value)-1], true
	}

	return "", false
}
