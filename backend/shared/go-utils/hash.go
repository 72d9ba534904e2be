// go-utils/hash.go

package utils

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken is the one-way digest used as the storage key for any raw
// token. Raw tokens are never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// TokenFingerprint returns a short prefix of the token hash that is safe
// to put in logs.
func TokenFingerprint(raw string) string {
	return HashToken(raw)[:12]
}
