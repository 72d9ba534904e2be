package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
)

type PasswordResetRepository interface {
	// Create stores a new reset token and drops any earlier unused ones for
	// the same user.
	Create(ctx context.Context, t *models.PasswordResetToken) error

	// Consume atomically marks the matching token used and returns it. It
	// returns nil when the token is unknown, already used, expired, or
	// belongs to a different user.
	Consume(ctx context.Context, userID uuid.UUID, tokenHash string, now time.Time) (*models.PasswordResetToken, error)

	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type passwordResetRepository struct {
	db repositories.DB
}

func NewPasswordResetRepository(db repositories.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, t *models.PasswordResetToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id=$1 AND used_at IS NULL`,
		t.UserID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *passwordResetRepository) Consume(
	ctx context.Context,
	userID uuid.UUID,
	tokenHash string,
	now time.Time,
) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := r.db.QueryRow(ctx, `
		UPDATE password_reset_tokens
		SET used_at=$3
		WHERE token_hash=$1 AND user_id=$2 AND used_at IS NULL AND expires_at > $3
		RETURNING id, user_id, token_hash, expires_at, created_at, used_at`,
		tokenHash, userID, now,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CleanupExpired removes expired tokens and tokens that were used.
func (r *passwordResetRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at <= $1 OR used_at IS NOT NULL`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
