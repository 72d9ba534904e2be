package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
	"github.com/redis/go-redis/v9"
)

// Key layout. The {owner} hash tag keeps every key of one user in the same
// cluster slot so the scripts below stay single-slot.
//
//	auth:{owner}:tok:<hash>  "owner|expiryUnixMs", PX = time to expiry
//	auth:{owner}:set         set of live token hashes
//
// RevokeAll only removes what is stored when it runs. A token signed before
// it and stored after it is not caught here; the security stamp claim,
// rotated together with RevokeAll, is what rejects such a token.
const cacheKeyPrefix = "auth:"

// storeScript writes the entry and tracks it in the owner's set.
// KEYS: tok, set. ARGV: entry, ttlMs, hash.
var storeScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
local ttl = redis.call('PTTL', KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return 1
`)

// revokeAllScript drops every tracked entry and the set itself.
// KEYS: set. ARGV: token key prefix.
var revokeAllScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
for _, h in ipairs(members) do
  redis.call('DEL', ARGV[1] .. h)
end
redis.call('DEL', KEYS[1])
return #members
`)

type cacheTokenStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewCacheTokenStore returns the Redis-backed TokenStore. Entries expire
// on their own through key TTLs.
func NewCacheTokenStore(rdb redis.UniversalClient, now func() time.Time) TokenStore {
	if now == nil {
		now = time.Now
	}
	return &cacheTokenStore{rdb: rdb, now: now}
}

func ownerTag(ownerID uuid.UUID) string {
	return cacheKeyPrefix + "{" + ownerID.String() + "}"
}

func tokenKeyPrefix(ownerID uuid.UUID) string { return ownerTag(ownerID) + ":tok:" }
func tokenSetKey(ownerID uuid.UUID) string    { return ownerTag(ownerID) + ":set" }

func (s *cacheTokenStore) Store(ctx context.Context, ownerID uuid.UUID, rawToken string, expiresAt time.Time) error {
	now := s.now()
	rec := newTokenRecord(ownerID, rawToken, expiresAt, now)
	ttl := rec.ExpiresAt.Sub(now)
	if rec.IsExpired(now) || ttl < time.Millisecond {
		return nil
	}

	err := storeScript.Run(ctx, s.rdb,
		[]string{tokenKeyPrefix(ownerID) + rec.TokenHash, tokenSetKey(ownerID)},
		encodeCacheEntry(rec), ttl.Milliseconds(), rec.TokenHash,
	).Err()
	if err != nil {
		return fmt.Errorf("cache store token: %w", err)
	}
	return nil
}

func (s *cacheTokenStore) IsValid(ctx context.Context, ownerID uuid.UUID, rawToken string) (bool, error) {
	hash := utils.HashToken(rawToken)
	entry, err := s.rdb.Get(ctx, tokenKeyPrefix(ownerID)+hash).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache lookup token: %w", err)
	}

	rec, err := parseCacheEntry(hash, entry)
	if err != nil {
		utils.Logger.WithError(err).WithField("user_id", ownerID).Warn("malformed token cache entry")
		return false, nil
	}
	if rec.OwnerID != ownerID {
		return false, nil
	}
	return !rec.IsExpired(s.now()), nil
}

func (s *cacheTokenStore) Revoke(ctx context.Context, ownerID uuid.UUID, rawToken string) error {
	hash := utils.HashToken(rawToken)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tokenKeyPrefix(ownerID)+hash)
		pipe.SRem(ctx, tokenSetKey(ownerID), hash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache revoke token: %w", err)
	}
	return nil
}

func (s *cacheTokenStore) RevokeAll(ctx context.Context, ownerID uuid.UUID) error {
	err := revokeAllScript.Run(ctx, s.rdb,
		[]string{tokenSetKey(ownerID)},
		tokenKeyPrefix(ownerID),
	).Err()
	if err != nil {
		return fmt.Errorf("cache revoke all tokens: %w", err)
	}
	return nil
}

func encodeCacheEntry(rec *models.TokenRecord) string {
	return rec.OwnerID.String() + "|" + strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)
}

func parseCacheEntry(hash, v string) (*models.TokenRecord, error) {
	owner, rest, ok := strings.Cut(v, "|")
	if !ok {
		return nil, fmt.Errorf("malformed entry %q", v)
	}
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return nil, fmt.Errorf("entry owner: %w", err)
	}
	expiryMs, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("entry expiry: %w", err)
	}
	return &models.TokenRecord{
		OwnerID:   ownerID,
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(expiryMs).UTC(),
	}, nil
}
