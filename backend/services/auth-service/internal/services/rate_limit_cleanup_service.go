package services

import (
	"context"
	"time"

	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// RateLimitCleanupService drops rate-limit counters whose window has ended.
// A counter that is still in its window is never touched.
type RateLimitCleanupService interface {
	CleanupDaily(ctx context.Context) (int64, error)
}

type rateLimitCleanupService struct {
	repo auth_repositories.RateLimitRepository
	now  func() time.Time
}

func NewRateLimitCleanupService(repo auth_repositories.RateLimitRepository, now func() time.Time) RateLimitCleanupService {
	if now == nil {
		now = time.Now
	}
	return &rateLimitCleanupService{repo: repo, now: now}
}

func (s *rateLimitCleanupService) CleanupDaily(ctx context.Context) (int64, error) {
	cutoff := s.now()
	logger := utils.Logger.WithField("cutoff", cutoff.UTC().Format(time.RFC3339))

	var removed int64
	err := runWithRetry(ctx, "rate limit cleanup", func(ctx context.Context) error {
		n, err := s.repo.CleanupExpired(ctx, cutoff)
		// Batches deleted before a failure stay deleted.
		removed += n
		return err
	})
	if err != nil {
		logger.WithError(err).WithField("removed", removed).Error("Failed to cleanup expired rate_limit_attempts")
		return removed, err
	}

	logger.WithField("removed", removed).Info("removed expired rate limit counters")
	return removed, nil
}
