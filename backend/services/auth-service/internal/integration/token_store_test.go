//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

func TestIdentityTokenStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	u := h.createTestUser(t, "store")
	store := auth_repositories.NewIdentityTokenStore(h.DB, h.Users, time.Now)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	for _, tok := range []string{"tok-a", "tok-b", "tok-c"} {
		require.NoError(t, store.Store(ctx, u.ID, tok, exp))
	}
	for _, tok := range []string{"tok-a", "tok-b", "tok-c"} {
		ok, err := store.IsValid(ctx, u.ID, tok)
		require.NoError(t, err)
		assert.True(t, ok, tok)
	}

	require.NoError(t, store.Revoke(ctx, u.ID, "tok-b"))
	ok, err := store.IsValid(ctx, u.ID, "tok-b")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.IsValid(ctx, u.ID, "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.RevokeAll(ctx, u.ID))
	for _, tok := range []string{"tok-a", "tok-c"} {
		ok, err := store.IsValid(ctx, u.ID, tok)
		require.NoError(t, err)
		assert.False(t, ok, tok)
	}

	after, err := h.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, u.SecurityStamp, after.SecurityStamp)

	require.NoError(t, store.Store(ctx, u.ID, "tok-d", exp))
	ok, err = store.IsValid(ctx, u.ID, "tok-d")
	require.NoError(t, err)
	assert.True(t, ok, "tokens stored after revoke-all are valid")
}

func TestIdentityTokenStoreStaleEntries(t *testing.T) {
	ctx := context.Background()
	u := h.createTestUser(t, "stale")
	store := auth_repositories.NewIdentityTokenStore(h.DB, h.Users, time.Now)

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339Nano)
	_, err := h.DB.Exec(ctx,
		`UPDATE users SET active_tokens = jsonb_build_object($2::text, $3::text) WHERE id=$1`,
		u.ID, utils.HashToken("old"), past)
	require.NoError(t, err)

	n, err := store.(auth_repositories.ExpiredTokenPruner).PruneExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	got, err := h.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveTokens)

	_, err = h.DB.Exec(ctx,
		`UPDATE users SET active_tokens = jsonb_build_object($2::text, $3::text) WHERE id=$1`,
		u.ID, utils.HashToken("old"), past)
	require.NoError(t, err)
	ok, err := store.IsValid(ctx, u.ID, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = h.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveTokens, "a stale entry is dropped on read")
}

func TestIdentityTokenStoreIgnoresExpiredStore(t *testing.T) {
	ctx := context.Background()
	u := h.createTestUser(t, "noop")
	store := auth_repositories.NewIdentityTokenStore(h.DB, h.Users, time.Now)

	require.NoError(t, store.Store(ctx, u.ID, "late", time.Now().Add(-time.Second)))
	got, err := h.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveTokens)
	assert.Equal(t, u.RowVersion, got.RowVersion)
}
