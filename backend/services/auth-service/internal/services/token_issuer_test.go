package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-models"
)

type failingStore struct {
	storeErr, revokeAllErr error
	inner                  interface {
		IsValid(ctx context.Context, ownerID uuid.UUID, rawToken string) (bool, error)
		Revoke(ctx context.Context, ownerID uuid.UUID, rawToken string) error
	}
	stored int
}

func (f *failingStore) Store(context.Context, uuid.UUID, string, time.Time) error {
	f.stored++
	return f.storeErr
}

func (f *failingStore) IsValid(ctx context.Context, ownerID uuid.UUID, raw string) (bool, error) {
	return f.inner.IsValid(ctx, ownerID, raw)
}

func (f *failingStore) Revoke(ctx context.Context, ownerID uuid.UUID, raw string) error {
	return f.inner.Revoke(ctx, ownerID, raw)
}

func (f *failingStore) RevokeAll(context.Context, uuid.UUID) error { return f.revokeAllErr }

func TestIssueThenValidateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada", models.RoleTeacher, models.RoleParent, models.RoleTeacher)

	issued, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(4*time.Hour), issued.ExpiresAt)
	assert.NotEmpty(t, issued.TokenID)

	p, err := env.validator.Authenticate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, []string{models.RoleParent, models.RoleTeacher}, p.Roles)
	assert.Equal(t, "ada", p.Username)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, issued.TokenID, p.TokenID)
	assert.True(t, p.ExpiresAt.Equal(issued.ExpiresAt))
}

func TestIssueClaims(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "claims")

	issued, err := env.issuer.Issue(context.Background(), user)
	require.NoError(t, err)

	claims := &middleware.Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(issued.Token, claims)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, env.cfg.TokenIssuer, claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{env.cfg.TokenAudience}, claims.Audience)
	assert.Equal(t, user.SecurityStamp, claims.Stamp)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)

	second, err := env.issuer.Issue(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Token, second.Token, "jti makes every issuance unique")
}

func TestIssueFailsClosedWhenStoreFails(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "closed")
	store := &failingStore{storeErr: errors.New("redis down"), inner: env.store}
	issuer := NewTokenIssuer(env.settings, store, env.clock.Now)

	issued, err := issuer.Issue(context.Background(), user)
	require.Error(t, err)
	assert.Nil(t, issued)
	assert.Equal(t, 1, store.stored)
}

func TestIssueRequiresUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.issuer.Issue(context.Background(), nil)
	assert.Error(t, err)
}
