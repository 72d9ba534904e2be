package utils

import (
	"strings"
	"testing"
)

func TestHashTokenIsStable(t *testing.T) {
	raw := "eyJhbGciOiJIUzI1NiJ9.payload.signature"
	if HashToken(raw) != HashToken(raw) {
		t.Fatalf("same input produced different hashes")
	}
}

func TestHashTokenDistinctInputs(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		raw := RandomString(32)
		h := HashToken(raw)
		if prev, ok := seen[h]; ok && prev != raw {
			t.Fatalf("collision between %q and %q", prev, raw)
		}
		seen[h] = raw
	}
}

func TestHashTokenNeverContainsRaw(t *testing.T) {
	raw := "plain-token-value"
	h := HashToken(raw)
	if strings.Contains(h, raw) {
		t.Fatalf("hash %q leaks the raw token", h)
	}
	// sha256 => 32 bytes => 43 chars unpadded base64url
	if len(h) != 43 {
		t.Fatalf("unexpected hash length %d", len(h))
	}
}

func TestTokenFingerprintIsHashPrefix(t *testing.T) {
	raw := "abc"
	if !strings.HasPrefix(HashToken(raw), TokenFingerprint(raw)) {
		t.Fatalf("fingerprint is not a prefix of the hash")
	}
}
