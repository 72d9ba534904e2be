package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenRecord is the server-side proof that an issued token is still live.
// TokenHash is utils.HashToken of the raw token; the raw value is never kept.
type TokenRecord struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *TokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
