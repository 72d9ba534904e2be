package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

type countingRateLimitRepo struct {
	counts   map[string]int
	failWith error

	// cleanup script: one result per call, the last one repeats
	cleanupResults []cleanupResult
	cleanupCalls   int
	cleanupCutoff  time.Time
}

type cleanupResult struct {
	n   int64
	err error
}

func newCountingRateLimitRepo() *countingRateLimitRepo {
	return &countingRateLimitRepo{counts: make(map[string]int)}
}

func (r *countingRateLimitRepo) Increment(_ context.Context, key string, window time.Duration) (auth_repositories.RateLimitHit, error) {
	if r.failWith != nil {
		return auth_repositories.RateLimitHit{}, r.failWith
	}
	r.counts[key]++
	return auth_repositories.RateLimitHit{Count: r.counts[key], ResetsAt: time.Now().Add(window)}, nil
}

func (r *countingRateLimitRepo) CleanupExpired(_ context.Context, now time.Time) (int64, error) {
	r.cleanupCutoff = now
	i := r.cleanupCalls
	r.cleanupCalls++
	if len(r.cleanupResults) == 0 {
		return 0, nil
	}
	if i >= len(r.cleanupResults) {
		i = len(r.cleanupResults) - 1
	}
	return r.cleanupResults[i].n, r.cleanupResults[i].err
}

func rateLimitConfig() *config.Config {
	return &config.Config{
		LoginLimitPerIPPerWindow:  2,
		EmailLimitPerIPPerHour:    3,
		EmailLimitPerEmailPerHour: 1,
		GlobalEmailLimitPerHour:   100,
		RateLimitWindow:           time.Minute,
	}
}

func TestLoginRateLimitPerIP(t *testing.T) {
	repo := newCountingRateLimitRepo()
	svc := NewRateLimiterService(repo, rateLimitConfig())
	ctx := context.Background()

	assert.NoError(t, svc.CheckLoginRateLimit(ctx, "10.0.0.1"))
	assert.NoError(t, svc.CheckLoginRateLimit(ctx, "10.0.0.1"))
	assert.ErrorIs(t, svc.CheckLoginRateLimit(ctx, "10.0.0.1"), utils.ErrRateLimitExceeded)
	assert.NoError(t, svc.CheckLoginRateLimit(ctx, "10.0.0.2"))
}

func TestEmailRateLimitPerAddressIsCaseInsensitive(t *testing.T) {
	repo := newCountingRateLimitRepo()
	svc := NewRateLimiterService(repo, rateLimitConfig())
	ctx := context.Background()

	assert.NoError(t, svc.CheckEmailRateLimits(ctx, "10.0.0.1", "Sam@Example.com"))
	assert.ErrorIs(t, svc.CheckEmailRateLimits(ctx, "10.0.0.2", " sam@example.com "), utils.ErrRateLimitExceeded)
	assert.Equal(t, 2, repo.counts["email:global"])
}

func TestRateLimitRepositoryErrorPropagates(t *testing.T) {
	repo := newCountingRateLimitRepo()
	repo.failWith = errors.New("db down")
	svc := NewRateLimiterService(repo, rateLimitConfig())

	err := svc.CheckLoginRateLimit(context.Background(), "10.0.0.1")
	assert.EqualError(t, err, "db down")
}

func TestRateLimitCleanup(t *testing.T) {
	clock := newFakeClock()
	repo := newCountingRateLimitRepo()
	repo.cleanupResults = []cleanupResult{{n: 7}}

	n, err := NewRateLimitCleanupService(repo, clock.Now).CleanupDaily(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.Equal(t, 1, repo.cleanupCalls)
	assert.True(t, clock.Now().Equal(repo.cleanupCutoff))
}

func TestRateLimitCleanupRetriesTransientError(t *testing.T) {
	repo := newCountingRateLimitRepo()
	repo.cleanupResults = []cleanupResult{{n: 3, err: io.EOF}, {n: 2}}

	n, err := NewRateLimitCleanupService(repo, nil).CleanupDaily(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 5, n, "batches removed before the failure count too")
	assert.Equal(t, 2, repo.cleanupCalls)
}

func TestRateLimitCleanupPermanentError(t *testing.T) {
	repo := newCountingRateLimitRepo()
	repo.cleanupResults = []cleanupResult{{err: errors.New("permission denied")}}

	n, err := NewRateLimitCleanupService(repo, nil).CleanupDaily(context.Background())
	assert.EqualError(t, err, "permission denied")
	assert.Zero(t, n)
	assert.Equal(t, 1, repo.cleanupCalls)
}
