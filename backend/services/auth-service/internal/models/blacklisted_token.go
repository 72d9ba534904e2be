package models

import "time"

// BlacklistedToken is an explicitly revoked access token, kept until the
// token would have expired anyway.
type BlacklistedToken struct {
	TokenHash     string    `json:"token_hash"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (b *BlacklistedToken) IsExpired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}
