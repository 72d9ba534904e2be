package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	auth_models "github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// identityTokenStore keeps live tokens on the owning user row, in the
// users.active_tokens JSONB object (token hash -> RFC 3339 expiry).
type identityTokenStore struct {
	db    repositories.DB
	users repositories.UserRepository
	now   func() time.Time
}

// NewIdentityTokenStore returns the Postgres-backed TokenStore. It also
// implements ExpiredTokenPruner.
func NewIdentityTokenStore(
	db repositories.DB,
	users repositories.UserRepository,
	now func() time.Time,
) TokenStore {
	if now == nil {
		now = time.Now
	}
	return &identityTokenStore{db: db, users: users, now: now}
}

func (s *identityTokenStore) Store(ctx context.Context, ownerID uuid.UUID, rawToken string, expiresAt time.Time) error {
	now := s.now()
	rec := newTokenRecord(ownerID, rawToken, expiresAt, now)
	if rec.IsExpired(now) {
		return nil
	}

	err := s.users.UpdateWithRetry(ctx, ownerID, func(u *models.User) error {
		if u.ActiveTokens == nil {
			u.ActiveTokens = make(map[string]time.Time)
		}
		pruneStale(u.ActiveTokens, now)
		u.ActiveTokens[rec.TokenHash] = rec.ExpiresAt
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", utils.ErrUserNotFound, ownerID)
	}
	return err
}

func (s *identityTokenStore) IsValid(ctx context.Context, ownerID uuid.UUID, rawToken string) (bool, error) {
	hash := utils.HashToken(rawToken)

	var raw *string
	err := s.db.QueryRow(ctx,
		`SELECT active_tokens ->> $2 FROM users WHERE id=$1`,
		ownerID, hash,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		return false, fmt.Errorf("parse active token expiry: %w", err)
	}
	rec := &auth_models.TokenRecord{OwnerID: ownerID, TokenHash: hash, ExpiresAt: expiresAt}
	if !rec.IsExpired(s.now()) {
		return true, nil
	}

	// Stale: drop it only if nobody rewrote the entry in the meantime.
	if _, err := s.db.Exec(ctx, `
		UPDATE users
		SET active_tokens = active_tokens - $2::text,
		    row_version = row_version + 1
		WHERE id=$1 AND active_tokens ->> $2 = $3`,
		ownerID, rec.TokenHash, *raw,
	); err != nil {
		utils.Logger.WithError(err).WithField("user_id", ownerID).Warn("failed to drop stale active token")
	}
	return false, nil
}

func (s *identityTokenStore) Revoke(ctx context.Context, ownerID uuid.UUID, rawToken string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET active_tokens = active_tokens - $2::text,
		    row_version = row_version + 1,
		    updated_at = NOW()
		WHERE id=$1 AND active_tokens ->> $2 IS NOT NULL`,
		ownerID, utils.HashToken(rawToken),
	)
	return err
}

// RevokeAll empties the allow-list and rotates the security stamp in one
// statement, so the cost does not depend on how many tokens are live.
func (s *identityTokenStore) RevokeAll(ctx context.Context, ownerID uuid.UUID) error {
	stamp, err := utils.NewSecurityStamp()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE users
		SET active_tokens = '{}'::jsonb,
		    security_stamp = $2,
		    row_version = row_version + 1,
		    updated_at = NOW()
		WHERE id=$1`,
		ownerID, stamp,
	)
	return err
}

func (s *identityTokenStore) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users u
		SET active_tokens = COALESCE((
		        SELECT jsonb_object_agg(t.key, t.value)
		        FROM jsonb_each_text(u.active_tokens) t
		        WHERE t.value::timestamptz > NOW()
		    ), '{}'::jsonb),
		    row_version = u.row_version + 1
		WHERE EXISTS (
		    SELECT 1 FROM jsonb_each_text(u.active_tokens) t
		    WHERE t.value::timestamptz <= NOW()
		)`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// pruneStale removes entries whose expiry is at or before now.
func pruneStale(tokens map[string]time.Time, now time.Time) int {
	n := 0
	for h, exp := range tokens {
		if !now.Before(exp) {
			delete(tokens, h)
			n++
		}
	}
	return n
}
