package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// RateLimiterService provides a high-level interface for checking various rate limits.
type RateLimiterService interface {
	CheckLoginRateLimit(ctx context.Context, ip string) error
	CheckEmailRateLimits(ctx context.Context, ip, emailAddress string) error
}

type rateLimiterService struct {
	repo auth_repositories.RateLimitRepository
	cfg  *config.Config
}

func NewRateLimiterService(repo auth_repositories.RateLimitRepository, cfg *config.Config) RateLimiterService {
	return &rateLimiterService{repo: repo, cfg: cfg}
}

// CheckLoginRateLimit caps login attempts per client IP.
func (s *rateLimiterService) CheckLoginRateLimit(ctx context.Context, ip string) error {
	return s.check(ctx, fmt.Sprintf("login:ip:%s", ip), s.cfg.LoginLimitPerIPPerWindow, "Per-IP login")
}

// CheckEmailRateLimits checks global, per-IP, and per-email limits for email requests.
func (s *rateLimiterService) CheckEmailRateLimits(ctx context.Context, ip, emailAddress string) error {
	// 1. Global limit
	if err := s.check(ctx, "email:global", s.cfg.GlobalEmailLimitPerHour, "Global email"); err != nil {
		return err
	}

	// 2. Per-IP limit
	if err := s.check(ctx, fmt.Sprintf("email:ip:%s", ip), s.cfg.EmailLimitPerIPPerHour, "Per-IP email"); err != nil {
		return err
	}

	// 3. Per-destination limit
	emailKey := fmt.Sprintf("email:address:%s", strings.ToLower(strings.TrimSpace(emailAddress)))
	return s.check(ctx, emailKey, s.cfg.EmailLimitPerEmailPerHour, "Per-email")
}

// check counts one attempt against key and fails once the count in the
// current window is above limit.
func (s *rateLimiterService) check(ctx context.Context, key string, limit int, label string) error {
	hit, err := s.repo.Increment(ctx, key, s.cfg.RateLimitWindow)
	if err != nil {
		return err
	}
	if hit.Count > limit {
		utils.Logger.WithFields(logrus.Fields{
			"key":       key,
			"count":     hit.Count,
			"limit":     limit,
			"resets_at": hit.ResetsAt.UTC().Format(time.RFC3339),
		}).Warnf("%s rate limit exceeded", label)
		return utils.ErrRateLimitExceeded
	}
	return nil
}
