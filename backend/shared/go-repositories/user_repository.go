package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error

	// Reads return (nil, nil) when no user matches.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// AddToRoles links the user to every named role in one transaction.
	// An unknown role name fails with utils.ErrRoleNotFound and links nothing.
	AddToRoles(ctx context.Context, id uuid.UUID, roles []string) error

	// UpdatePassword stores a new hash and security stamp atomically.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, securityStamp string) error

	// Optimistic-lock helpers
	UpdateIfVersion(ctx context.Context, u *models.User, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.User) error) error

	Delete(ctx context.Context, id uuid.UUID) error
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

const (
	uniqueViolation         = "23505"
	usersEmailConstraint    = "users_email_lower_key"
	usersUsernameConstraint = "users_username_lower_key"
)

type userRepo struct {
	*BaseVersionedRepo[*models.User]

	db DB
}

/* ---------- constructor ---------- */

func NewUserRepository(db DB) UserRepository {
	r := &userRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectUser()+" WHERE u.id=$1", r.scanUser)
	return r
}

/* ---------- Create ---------- */

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, security_stamp,
			active_tokens, email_confirmed, row_version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			'{}'::jsonb, $6, 1, NOW(), NOW()
		)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.SecurityStamp, u.EmailConfirmed,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	u.RowVersion = 1
	return nil
}

/* ---------- Reads ---------- */

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRow(ctx, baseSelectUser()+" WHERE lower(u.email)=lower($1)", strings.TrimSpace(email))
	return r.scanUser(row)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRow(ctx, baseSelectUser()+" WHERE lower(u.username)=lower($1)", strings.TrimSpace(username))
	return r.scanUser(row)
}

/* ---------- Roles ---------- */

func (r *userRepo) AddToRoles(ctx context.Context, id uuid.UUID, roles []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, role := range roles {
		var roleID int64
		err := tx.QueryRow(ctx, `SELECT id FROM roles WHERE name=$1`, role).Scan(&roleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", utils.ErrRoleNotFound, role)
			}
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, id, roleID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET updated_at=NOW(), row_version=row_version+1 WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

/* ---------- Updates ---------- */

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, securityStamp string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash=$2, security_stamp=$3, row_version=row_version+1, updated_at=NOW()
		WHERE id=$1`,
		id, passwordHash, securityStamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}

// Optimistic
func (r *userRepo) UpdateIfVersion(ctx context.Context, u *models.User, expected int64) (pgconn.CommandTag, error) {
	tokens, err := encodeActiveTokens(u.ActiveTokens)
	if err != nil {
		return nil, err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET
			username=$2, email=$3, password_hash=$4, security_stamp=$5,
			active_tokens=$6::jsonb, email_confirmed=$7,
			row_version=row_version+1, updated_at=NOW()
		WHERE id=$1 AND row_version=$8`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.SecurityStamp,
		tokens, u.EmailConfirmed, expected,
	)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return tag, nil
}

func (r *userRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.User) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

/* ---------- Delete ---------- */

// Delete hard-deletes the user; user_roles and role_profiles cascade.
func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

/* ------------------------------------------------------------------
   Helpers
------------------------------------------------------------------ */

func baseSelectUser() string {
	return `
		SELECT
			u.id, u.username, u.email, u.password_hash, u.security_stamp,
			u.active_tokens::text, u.email_confirmed, u.row_version,
			u.created_at, u.updated_at,
			ARRAY(
				SELECT r.name FROM user_roles ur
				JOIN roles r ON r.id = ur.role_id
				WHERE ur.user_id = u.id
				ORDER BY r.name
			)
		FROM users u`
}

func (r *userRepo) scanUser(row pgx.Row) (*models.User, error) {
	var (
		u      models.User
		tokens string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.SecurityStamp,
		&tokens, &u.EmailConfirmed, &u.RowVersion,
		&u.CreatedAt, &u.UpdatedAt,
		&u.Roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if u.ActiveTokens, err = decodeActiveTokens(tokens); err != nil {
		return nil, fmt.Errorf("decode active_tokens for user %s: %w", u.ID, err)
	}
	return &u, nil
}

func encodeActiveTokens(m map[string]time.Time) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeActiveTokens(s string) (map[string]time.Time, error) {
	m := make(map[string]time.Time)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usersEmailConstraint:
			return utils.ErrEmailExists
		case usersUsernameConstraint:
			return utils.ErrUsernameExists
		}
	}
	return err
}
