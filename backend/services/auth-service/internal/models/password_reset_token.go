package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken is a single-use credential mailed by the forgot-password
// flow. Only the hash is persisted.
type PasswordResetToken struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TokenHash string     `json:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}
