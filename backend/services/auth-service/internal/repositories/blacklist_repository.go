package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
)

// BlacklistRepository persists revoked token hashes in blacklisted_tokens.
type BlacklistRepository interface {
	// Upsert inserts the entry or extends an existing one to the later
	// expiry. It never shortens an entry.
	Upsert(ctx context.Context, tokenHash string, blacklistedAt, expiresAt time.Time) error

	// Get returns the entry, or nil when the hash is not blacklisted.
	Get(ctx context.Context, tokenHash string) (*models.BlacklistedToken, error)

	// DeleteIfExpired removes the row only if it is still expired at now.
	DeleteIfExpired(ctx context.Context, tokenHash string, now time.Time) error

	// DeleteExpired removes every row with expires_at <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type blacklistRepository struct {
	db repositories.DB
}

func NewBlacklistRepository(db repositories.DB) BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) Upsert(ctx context.Context, tokenHash string, blacklistedAt, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO blacklisted_tokens (token_hash, blacklisted_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE
		SET expires_at = GREATEST(blacklisted_tokens.expires_at, EXCLUDED.expires_at)`,
		tokenHash, blacklistedAt, expiresAt,
	)
	return err
}

func (r *blacklistRepository) Get(ctx context.Context, tokenHash string) (*models.BlacklistedToken, error) {
	var b models.BlacklistedToken
	err := r.db.QueryRow(ctx, `
		SELECT token_hash, blacklisted_at, expires_at
		FROM blacklisted_tokens
		WHERE token_hash=$1`,
		tokenHash,
	).Scan(&b.TokenHash, &b.BlacklistedAt, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *blacklistRepository) DeleteIfExpired(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM blacklisted_tokens WHERE token_hash=$1 AND expires_at <= $2`,
		tokenHash, now,
	)
	return err
}

func (r *blacklistRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM blacklisted_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
