package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCacheStore(t *testing.T) (*miniredis.Miniredis, TokenStore, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	return mr, NewCacheTokenStore(rdb, clock.Now), clock
}

func TestCacheTokenStore_StoreAndIsValid(t *testing.T) {
	mr, store, clock := newCacheStore(t)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, store.Store(ctx, owner, "tok-a", clock.Now().Add(4*time.Hour)))

	ok, err := store.IsValid(ctx, owner, "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsValid(ctx, owner, "tok-b")
	require.NoError(t, err)
	assert.False(t, ok, "unknown token")

	ok, err = store.IsValid(ctx, uuid.New(), "tok-a")
	require.NoError(t, err)
	assert.False(t, ok, "other owner")

	key := tokenKeyPrefix(owner) + utils.HashToken("tok-a")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 4*time.Hour, mr.TTL(key))
	assert.False(t, mr.Exists(tokenKeyPrefix(owner)+"tok-a"), "raw token must not be a key")
}

func TestCacheTokenStore_ExpiresByClockAndTTL(t *testing.T) {
	mr, store, clock := newCacheStore(t)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, store.Store(ctx, owner, "tok", clock.Now().Add(4*time.Hour)))

	clock.Advance(4*time.Hour - time.Second)
	ok, err := store.IsValid(ctx, owner, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, err = store.IsValid(ctx, owner, "tok")
	require.NoError(t, err)
	assert.False(t, ok, "expired at the boundary even before eviction")

	mr.FastForward(4 * time.Hour)
	assert.False(t, mr.Exists(tokenKeyPrefix(owner)+utils.HashToken("tok")))
}

func TestCacheTokenStore_StoreExpiredIsNoop(t *testing.T) {
	mr, store, clock := newCacheStore(t)
	owner := uuid.New()

	require.NoError(t, store.Store(context.Background(), owner, "tok", clock.Now()))
	assert.False(t, mr.Exists(tokenSetKey(owner)))
}

func TestCacheTokenStore_RevokeLeavesOthers(t *testing.T) {
	mr, store, clock := newCacheStore(t)
	ctx := context.Background()
	owner := uuid.New()
	exp := clock.Now().Add(time.Hour)

	require.NoError(t, store.Store(ctx, owner, "a", exp))
	require.NoError(t, store.Store(ctx, owner, "b", exp))

	require.NoError(t, store.Revoke(ctx, owner, "a"))
	require.NoError(t, store.Revoke(ctx, owner, "never-stored"))

	ok, _ := store.IsValid(ctx, owner, "a")
	assert.False(t, ok)
	ok, _ = store.IsValid(ctx, owner, "b")
	assert.True(t, ok)

	members, err := mr.Members(tokenSetKey(owner))
	require.NoError(t, err)
	assert.Equal(t, []string{utils.HashToken("b")}, members)
}

func TestCacheTokenStore_RevokeAll(t *testing.T) {
	mr, store, clock := newCacheStore(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	exp := clock.Now().Add(time.Hour)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Store(ctx, owner, fmt.Sprintf("old-%d", i), exp))
	}
	require.NoError(t, store.Store(ctx, other, "other", exp))

	require.NoError(t, store.RevokeAll(ctx, owner))

	for i := 0; i < 5; i++ {
		ok, err := store.IsValid(ctx, owner, fmt.Sprintf("old-%d", i))
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.False(t, mr.Exists(tokenSetKey(owner)))

	ok, _ := store.IsValid(ctx, other, "other")
	assert.True(t, ok, "other owners are untouched")

	require.NoError(t, store.Store(ctx, owner, "new", exp))
	ok, _ = store.IsValid(ctx, owner, "new")
	assert.True(t, ok, "tokens stored after revoke-all are live")
}

func TestCacheTokenStore_RevokeAllOnlyCoversStoredTokens(t *testing.T) {
	_, store, clock := newCacheStore(t)
	ctx := context.Background()
	owner := uuid.New()
	exp := clock.Now().Add(time.Hour)

	require.NoError(t, store.Store(ctx, owner, "before", exp))
	require.NoError(t, store.RevokeAll(ctx, owner))
	require.NoError(t, store.Store(ctx, owner, "signed-earlier-stored-later", exp))

	ok, err := store.IsValid(ctx, owner, "before")
	require.NoError(t, err)
	assert.False(t, ok)

	// The store has no notion of when a token was signed; the stamp claim
	// rejects this one at validation time.
	ok, err = store.IsValid(ctx, owner, "signed-earlier-stored-later")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCacheEntryRoundTrip(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := newTokenRecord(owner, "raw", now.Add(time.Hour), now)
	assert.Equal(t, utils.HashToken("raw"), rec.TokenHash)

	got, err := parseCacheEntry(rec.TokenHash, encodeCacheEntry(rec))
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, rec.TokenHash, got.TokenHash)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	assert.False(t, got.IsExpired(now))
	assert.True(t, got.IsExpired(now.Add(time.Hour)))
}

func TestParseCacheEntry(t *testing.T) {
	owner := uuid.New()
	rec, err := parseCacheEntry("h", owner.String()+"|1700")
	require.NoError(t, err)
	assert.Equal(t, owner, rec.OwnerID)
	assert.Equal(t, "h", rec.TokenHash)
	assert.EqualValues(t, 1700, rec.ExpiresAt.UnixMilli())

	for _, bad := range []string{owner.String(), owner.String() + "|x", "|1700", "u|1700"} {
		_, err := parseCacheEntry("h", bad)
		assert.Error(t, err, bad)
	}
}
