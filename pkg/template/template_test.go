package template_test

import (
	"testing"

	"github.com/dukex/leadflow/pkg/template"
	"github.com/stretchr/testify/assert"
)

func lookupIn(data map[string]any) template.LookupFunc {
	return func(path string) (any, bool) {
		value, ok := data[path]

		return value, ok
	}
}

func TestRenderString(t *testing.T) {
	t.Parallel()

	lookup := lookupIn(map[string]any{
		"name":      "Asha",
		"score":     float64(9),
		"budget":    4500000.5,
		"vip":       true,
		"tags":      []any{"hot", "vip"},
		"empty":     "",
		"lead.city": "Pune",
	})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain text", input: "hello", expected: "hello"},
		{name: "single", input: "Hi {{name}}!", expected: "Hi Asha!"},
		{name: "spaces inside braces", input: "Hi {{ name }}", expected: "Hi Asha"},
		{name: "integer number", input: "score={{score}}", expected: "score=9"},
		{name: "fractional number", input: "{{budget}} INR", expected: "4500000.5 INR"},
		{name: "bool", input: "vip: {{vip}}", expected: "vip: true"},
		{name: "array", input: "tags: {{tags}}", expected: "tags: hot,vip"},
		{name: "dotted path", input: "in {{lead.city}}", expected: "in Pune"},
		{name: "unknown kept", input: "Hi {{nobody}}", expected: "Hi {{nobody}}"},
		{name: "empty kept", input: "x{{empty}}", expected: "x{{empty}}"},
		{name: "several", input: "{{name}} scored {{score}}", expected: "Asha scored 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, template.RenderString(tt.input, lookup))
		})
	}
}

func TestRender_KeepsTypeOfWholePlaceholder(t *testing.T) {
	t.Parallel()

	lookup := lookupIn(map[string]any{"score": float64(9), "tags": []any{"a"}})

	assert.InDelta(t, 9, template.Render("{{score}}", lookup), 0)
	assert.Equal(t, []any{"a"}, template.Render(" {{ tags }} ", lookup))
	assert.Equal(t, "{{missing}}", template.Render("{{missing}}", lookup))
	assert.Equal(t, "score 9", template.Render("score {{score}}", lookup))
}

func TestRenderConfig(t *testing.T) {
	t.Parallel()

	lookup := lookupIn(map[string]any{"name": "Asha", "lead_id": "l1"})

	config := map[string]any{
		"subject": "Welcome {{name}}",
		"retries": float64(2),
		"payload": map[string]any{
			"lead":  "{{lead_id}}",
			"items": []any{"{{name}}", float64(1)},
		},
	}

	rendered := template.RenderConfig(config, lookup)

	assert.Equal(t, map[string]any{
		"subject": "Welcome Asha",
		"retries": float64(2),
		"payload": map[string]any{
			"lead":  "l1",
			"items": []any{"Asha", float64(1)},
		},
	}, rendered)

	assert.Equal(t, "Welcome {{name}}", config["subject"])
	assert.Nil(t, template.RenderConfig(nil, lookup))
}
