package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgconn"

	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// One retry on transient network errors (EOF, closed connection) with a
// small back-off.
var cleanupRetryDelay = 3 * time.Second

// TokenCleanupService removes expired token state each night: blacklist
// rows, stale allow-list entries and spent password-reset tokens.
type TokenCleanupService interface {
	CleanupDaily(ctx context.Context) error
}

type tokenCleanupService struct {
	blacklist BlacklistService // nil when the deny-list is disabled
	pruner    auth_repositories.ExpiredTokenPruner
	resets    auth_repositories.PasswordResetRepository
	now       func() time.Time
}

// NewTokenCleanupService wires the nightly job. store is checked for
// ExpiredTokenPruner; stores whose entries expire by themselves are skipped.
func NewTokenCleanupService(
	blacklist BlacklistService,
	store auth_repositories.TokenStore,
	resets auth_repositories.PasswordResetRepository,
	now func() time.Time,
) TokenCleanupService {
	if now == nil {
		now = time.Now
	}
	pruner, _ := store.(auth_repositories.ExpiredTokenPruner)
	return &tokenCleanupService{blacklist: blacklist, pruner: pruner, resets: resets, now: now}
}

// runWithRetry executes op(ctx) and, if it returns a transient network
// error (EOF, pgconn safe-to-retry, or the common closed-connection
// message), waits a moment then retries once.
func runWithRetry(ctx context.Context, name string, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	if !isTransientDBError(err) {
		return err
	}
	utils.Logger.WithError(err).Warnf("%s hit transient DB error; retrying once", name)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(cleanupRetryDelay):
	}
	return op(ctx)
}

func isTransientDBError(err error) bool {
	return errors.Is(err, io.EOF) || pgconn.SafeToRetry(err) ||
		strings.Contains(err.Error(), "connection was closed")
}

func (s *tokenCleanupService) CleanupDaily(ctx context.Context) error {
	logger := utils.Logger

	// 1) Blacklist rows past their token expiry
	if s.blacklist != nil {
		if err := runWithRetry(ctx, "blacklist sweep", func(ctx context.Context) error {
			_, err := s.blacklist.SweepExpired(ctx)
			return err
		}); err != nil {
			logger.WithError(err).Error("Failed to sweep expired blacklisted_tokens")
			return err
		}
	}

	// 2) Stale allow-list entries on user rows
	if s.pruner != nil {
		if err := runWithRetry(ctx, "token prune", func(ctx context.Context) error {
			n, err := s.pruner.PruneExpired(ctx)
			if err == nil {
				logger.WithField("users", n).Info("pruned expired active tokens")
			}
			return err
		}); err != nil {
			logger.WithError(err).Error("Failed to prune expired active tokens")
			return err
		}
	}

	// 3) Expired or used password reset tokens
	if err := runWithRetry(ctx, "reset token cleanup", func(ctx context.Context) error {
		_, err := s.resets.CleanupExpired(ctx, s.now())
		return err
	}); err != nil {
		logger.WithError(err).Error("Failed to cleanup password_reset_tokens")
		return err
	}

	logger.Info("Daily token cleanup (expired only) completed successfully.")
	return nil
}
