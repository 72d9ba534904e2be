package services

import (
	"context"
	"time"

	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// BlacklistService is the deny-list of explicitly revoked tokens. An entry
// lives until the token would have expired on its own.
type BlacklistService interface {
	IsBlacklisted(ctx context.Context, rawToken string) (bool, error)
	// Blacklist is idempotent; a second call keeps the later expiry. A
	// token that has already expired is not recorded.
	Blacklist(ctx context.Context, rawToken string, expiresAt time.Time) error
	SweepExpired(ctx context.Context) (int64, error)
}

type blacklistService struct {
	repo auth_repositories.BlacklistRepository
	now  func() time.Time
}

func NewBlacklistService(repo auth_repositories.BlacklistRepository, now func() time.Time) BlacklistService {
	if now == nil {
		now = time.Now
	}
	return &blacklistService{repo: repo, now: now}
}

func (s *blacklistService) IsBlacklisted(ctx context.Context, rawToken string) (bool, error) {
	hash := utils.HashToken(rawToken)
	entry, err := s.repo.Get(ctx, hash)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	now := s.now()
	if !entry.IsExpired(now) {
		return true, nil
	}
	if err := s.repo.DeleteIfExpired(ctx, hash, now); err != nil {
		utils.Logger.WithError(err).Warn("failed to drop expired blacklist entry")
	}
	return false, nil
}

func (s *blacklistService) Blacklist(ctx context.Context, rawToken string, expiresAt time.Time) error {
	now := s.now()
	if !now.Before(expiresAt) {
		return nil
	}
	return s.repo.Upsert(ctx, utils.HashToken(rawToken), now, expiresAt)
}

func (s *blacklistService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	utils.Logger.WithField("removed", n).Info("blacklist sweep completed")
	return n, nil
}
