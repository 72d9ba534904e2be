// go-utils/random.go

package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

func RandomString(length int) string {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// SecureToken returns n random bytes encoded as unpadded base64url.
func SecureToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSecurityStamp returns a fresh opaque stamp. Rotating a user's stamp
// invalidates every token minted before the rotation.
func NewSecurityStamp() (string, error) {
	return SecureToken(24)
}
