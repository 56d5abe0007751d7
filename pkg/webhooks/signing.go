package webhooks

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/canonical"
)

// SignaturePrefix precedes the hex digest in X-Webhook-Signature.
const SignaturePrefix = "sha256="

const secretBytes = 32

// Sign returns the signature of the canonical JSON encoding of payload.
func Sign(payload any, secret string) (string, error) {
	body, err := canonical.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for signing: %w", err)
	}

	return SignBytes(body, secret), nil
}

// SignBytes signs an already serialized body.
func SignBytes(raw []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)

	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches raw under secret. Receivers must
// pass the body exactly as it arrived.
func Verify(raw []byte, signature, secret string) bool {
	if secret == "" || !strings.HasPrefix(signature, SignaturePrefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)

	return hmac.Equal(provided, mac.Sum(nil))
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)

	_, err := rand.Read(buf)
	if err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
