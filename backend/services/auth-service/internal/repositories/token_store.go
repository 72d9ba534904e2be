package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// TokenStore is the allow-list of live access tokens. Implementations key
// exclusively on utils.HashToken(rawToken) and never persist the raw token.
//
// Storing an already-expired token is a no-op. Revoking an unknown token is
// not an error.
type TokenStore interface {
	Store(ctx context.Context, ownerID uuid.UUID, rawToken string, expiresAt time.Time) error
	IsValid(ctx context.Context, ownerID uuid.UUID, rawToken string) (bool, error)
	Revoke(ctx context.Context, ownerID uuid.UUID, rawToken string) error
	RevokeAll(ctx context.Context, ownerID uuid.UUID) error
}

// ExpiredTokenPruner is implemented by stores that keep stale entries
// around until something removes them.
type ExpiredTokenPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// Backend names accepted by TOKEN_STORE_BACKEND.
const (
	TokenStoreIdentity = "identity"
	TokenStoreCache    = "cache"
)

// newTokenRecord is the storage-side form of an issued token. Only its hash
// leaves this function.
func newTokenRecord(ownerID uuid.UUID, rawToken string, expiresAt, now time.Time) *models.TokenRecord {
	return &models.TokenRecord{
		OwnerID:   ownerID,
		TokenHash: utils.HashToken(rawToken),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now.UTC(),
	}
}
