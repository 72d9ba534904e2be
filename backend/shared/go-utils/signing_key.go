package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// MinSigningKeyBytes is the shortest HMAC secret we accept for HS256.
const MinSigningKeyBytes = 32

// SigningKey is the symmetric secret shared by the token issuer and
// validator. It is built once at startup and never mutated; the zero
// value is not usable.
type SigningKey struct {
	secret []byte
}

// NewSigningKey copies secret into a new SigningKey.
func NewSigningKey(secret []byte) (SigningKey, error) {
	if len(secret) < MinSigningKeyBytes {
		return SigningKey{}, fmt.Errorf("signing key must be at least %d bytes, got %d", MinSigningKeyBytes, len(secret))
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return SigningKey{secret: cp}, nil
}

// ParseSigningKey decodes a standard base64 secret.
func ParseSigningKey(b64 string) (SigningKey, error) {
	if b64 == "" {
		return SigningKey{}, errors.New("signing key is empty")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode signing key: %w", err)
	}
	return NewSigningKey(raw)
}

// Bytes returns a copy of the secret for the JWT library's key func.
func (k SigningKey) Bytes() []byte {
	cp := make([]byte, len(k.secret))
	copy(cp, k.secret)
	return cp
}

// IsZero reports whether the key was never initialised.
func (k SigningKey) IsZero() bool {
	return len(k.secret) == 0
}
