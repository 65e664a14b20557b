package evidence

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the entropy of an evidence token (256 bits)
const tokenBytes = 32

// NewToken returns an unguessable, URL-safe evidence token
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate evidence token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
