package webhooks_test

import (
	"testing"

	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/stretchr/testify/assert"
)

func TestMatchesFilters(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"score":  float64(9),
		"stage":  "hot",
		"source": "website",
		"budget": "9000000",
	}

	tests := []struct {
		name     string
		filters  map[string]any
		expected bool
	}{
		{name: "no filters", filters: nil, expected: true},
		{name: "minimum met", filters: map[string]any{"score_min": float64(8)}, expected: true},
		{name: "minimum equal", filters: map[string]any{"score_min": float64(9)}, expected: true},
		{name: "minimum missed", filters: map[string]any{"score_min": float64(10)}, expected: false},
		{name: "maximum met", filters: map[string]any{"score_max": 9}, expected: true},
		{name: "maximum missed", filters: map[string]any{"score_max": float64(5)}, expected: false},
		{name: "range on non numeric value", filters: map[string]any{"budget_min": float64(1)}, expected: false},
		{name: "range on missing value", filters: map[string]any{"age_min": float64(1)}, expected: false},
		{name: "numeric string bound", filters: map[string]any{"score_min": "8"}, expected: true},
		{name: "list membership", filters: map[string]any{"stage": []any{"hot", "warm"}}, expected: true},
		{name: "string list membership", filters: map[string]any{"stage": []string{"cold"}}, expected: false},
		{name: "scalar equality", filters: map[string]any{"source": "website"}, expected: true},
		{name: "scalar mismatch", filters: map[string]any{"source": "referral"}, expected: false},
		{name: "numbers compare numerically", filters: map[string]any{"score": 9}, expected: true},
		{name: "missing key", filters: map[string]any{"city": "Pune"}, expected: false},
		{name: "nil filter ignored", filters: map[string]any{"city": nil}, expected: true},
		{
			name:     "all filters anded",
			filters:  map[string]any{"score_min": float64(8), "stage": []any{"hot"}, "source": "referral"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, webhooks.MatchesFilters(data, tt.filters))
		})
	}
}
