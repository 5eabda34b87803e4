// Package security provides secure random generation utilities
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateULID generates a new ULID string.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSessionToken generates an opaque unguessable session token: a ULID
// prefix for rough temporal ordering joined with random URL-safe padding.
func GenerateSessionToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return ulid.Make().String() + "." + base64.RawURLEncoding.EncodeToString(bytes), nil
}

// discountAlphabet deliberately omits ambiguous characters (0/O, 1/I/L).
const discountAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateDiscountCode generates a short opaque discount code of the given
// length, prefixed for recognizability on merchant dashboards.
func GenerateDiscountCode(prefix string, length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate discount code: %w", err)
	}
	for i, b := range bytes {
		bytes[i] = discountAlphabet[int(b)%len(discountAlphabet)]
	}
	if prefix == "" {
		return string(bytes), nil
	}
	return prefix + "-" + string(bytes), nil
}
