package webhooks_test

import (
	"strings"
	"testing"

	"github.com/dukex/leadflow/pkg/canonical"
	"github.com/dukex/leadflow/pkg/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_Deterministic(t *testing.T) {
	t.Parallel()

	first := map[string]any{
		"event":     "lead.created",
		"timestamp": "2026-02-01T09:30:00Z",
		"data":      map[string]any{"score": float64(9), "stage": "hot"},
	}
	second := map[string]any{
		"data":      map[string]any{"stage": "hot", "score": float64(9)},
		"timestamp": "2026-02-01T09:30:00Z",
		"event":     "lead.created",
	}

	a, err := webhooks.Sign(first, "s3cret")
	require.NoError(t, err)

	b, err := webhooks.Sign(second, "s3cret")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, webhooks.SignaturePrefix))
	assert.Len(t, a, len(webhooks.SignaturePrefix)+64)

	typed, err := webhooks.Sign(webhooks.Payload{
		Event:     "lead.created",
		Timestamp: "2026-02-01T09:30:00Z",
		Data:      map[string]any{"score": float64(9), "stage": "hot"},
	}, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, a, typed, "struct and map payloads share one canonical form")
}

func TestSign_Sensitivity(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"event": "lead.created", "data": map[string]any{"score": float64(9)}}
	changed := map[string]any{"event": "lead.created", "data": map[string]any{"score": float64(8)}}

	base, err := webhooks.Sign(payload, "s3cret")
	require.NoError(t, err)

	otherData, err := webhooks.Sign(changed, "s3cret")
	require.NoError(t, err)

	otherSecret, err := webhooks.Sign(payload, "s3cret2")
	require.NoError(t, err)

	assert.NotEqual(t, base, otherData)
	assert.NotEqual(t, base, otherSecret)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	body, err := canonical.Marshal(map[string]any{"event": "lead.created", "data": map[string]any{"score": float64(9)}})
	require.NoError(t, err)

	signature := webhooks.SignBytes(body, "s3cret")

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		expected  bool
	}{
		{name: "valid", body: body, signature: signature, secret: "s3cret", expected: true},
		{name: "wrong secret", body: body, signature: signature, secret: "other", expected: false},
		{name: "tampered body", body: append([]byte(" "), body...), signature: signature, secret: "s3cret", expected: false},
		{name: "missing prefix", body: body, signature: strings.TrimPrefix(signature, "sha256="), secret: "s3cret", expected: false},
		{name: "not hex", body: body, signature: "sha256=" + strings.Repeat("zz", 32), secret: "s3cret", expected: false},
		{name: "truncated", body: body, signature: signature[:len(signature)-2], secret: "s3cret", expected: false},
		{name: "empty signature", body: body, signature: "", secret: "s3cret", expected: false},
		{name: "empty secret", body: body, signature: signature, secret: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, webhooks.Verify(tt.body, tt.signature, tt.secret))
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	t.Parallel()

	first, err := webhooks.GenerateSecret()
	require.NoError(t, err)

	second, err := webhooks.GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]+$", first)
	assert.NotEqual(t, first, second)
}
