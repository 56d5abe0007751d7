package condition_test

import (
	"testing"

	"github.com/dukex/leadflow/pkg/condition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		expression string
		expected   condition.Leaf
	}{
		{
			name:       "greater than number",
			expression: "score > 80",
			expected:   condition.Leaf{Field: "score", Operator: condition.GreaterThan, Value: float64(80)},
		},
		{
			name:       "greater than or equal without spaces",
			expression: "score>=80",
			expected:   condition.Leaf{Field: "score", Operator: condition.GreaterThanOrEqual, Value: float64(80)},
		},
		{
			name:       "less than or equal",
			expression: "budget <= 5000000",
			expected:   condition.Leaf{Field: "budget", Operator: condition.LessThanOrEqual, Value: float64(5000000)},
		},
		{
			name:       "less than negative decimal",
			expression: "delta < -1.5",
			expected:   condition.Leaf{Field: "delta", Operator: condition.LessThan, Value: -1.5},
		},
		{
			name:       "equals single quoted",
			expression: "status == 'hot'",
			expected:   condition.Leaf{Field: "status", Operator: condition.Equals, Value: "hot"},
		},
		{
			name:       "single equals double quoted",
			expression: `source = "portal"`,
			expected:   condition.Leaf{Field: "source", Operator: condition.Equals, Value: "portal"},
		},
		{
			name:       "not equals boolean",
			expression: "verified != true",
			expected:   condition.Leaf{Field: "verified", Operator: condition.NotEquals, Value: true},
		},
		{
			name:       "quoted digits stay a string",
			expression: "phone == '9876'",
			expected:   condition.Leaf{Field: "phone", Operator: condition.Equals, Value: "9876"},
		},
		{
			name:       "unquoted comma list becomes array",
			expression: "city == Chennai, Pune",
			expected:   condition.Leaf{Field: "city", Operator: condition.Equals, Value: []any{"Chennai", "Pune"}},
		},
		{
			name:       "contains",
			expression: "tag contains 'vip'",
			expected:   condition.Leaf{Field: "tag", Operator: condition.Contains, Value: "vip"},
		},
		{
			name:       "in list",
			expression: "city in [A,B]",
			expected:   condition.Leaf{Field: "city", Operator: condition.In, Value: []any{"A", "B"}},
		},
		{
			name:       "in list with quoted and numeric items",
			expression: "bedrooms in [2, 3, 'studio']",
			expected:   condition.Leaf{Field: "bedrooms", Operator: condition.In, Value: []any{float64(2), float64(3), "studio"}},
		},
		{
			name:       "is empty",
			expression: "notes is empty",
			expected:   condition.Leaf{Field: "notes", Operator: condition.IsEmpty},
		},
		{
			name:       "is not empty with mixed case",
			expression: "email IS NOT EMPTY",
			expected:   condition.Leaf{Field: "email", Operator: condition.IsNotEmpty},
		},
		{
			name:       "dotted field",
			expression: "lead.score >= 7",
			expected:   condition.Leaf{Field: "lead.score", Operator: condition.GreaterThanOrEqual, Value: float64(7)},
		},
		{
			name:       "surrounding whitespace",
			expression: "   score > 1  ",
			expected:   condition.Leaf{Field: "score", Operator: condition.GreaterThan, Value: float64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			leaf, err := condition.Parse(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, leaf)
		})
	}
}

func TestParse_Unparseable(t *testing.T) {
	t.Parallel()

	for _, expression := range []string{"", "score", "score >", "> 80", "score ~ 3", "1score > 3"} {
		_, err := condition.Parse(expression)
		require.Error(t, err, expression)
		assert.ErrorIs(t, err, condition.ErrUnparseable)
		assert.True(t, condition.IsConfigurationError(err))
	}
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	group, errs := condition.ParseAll([]string{"score > 8", "this is nonsense ~", "stage == 'hot'"}, condition.And)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], condition.ErrUnparseable)
	assert.Equal(t, condition.And, group.Logic)
	assert.Equal(t, []condition.Condition{
		condition.Leaf{Field: "score", Operator: condition.GreaterThan, Value: float64(8)},
		condition.Leaf{Field: "stage", Operator: condition.Equals, Value: "hot"},
	}, group.Conditions)
}

func TestParseAll_AllRejected(t *testing.T) {
	t.Parallel()

	group, errs := condition.ParseAll([]string{"???"}, condition.Or)

	assert.Len(t, errs, 1)
	assert.Empty(t, group.Conditions)
	assert.Equal(t, condition.Or, group.Logic)
}
