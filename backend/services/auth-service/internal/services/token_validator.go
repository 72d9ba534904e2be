package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// TokenValidator decides whether a presented bearer token is authentic,
// within its lifetime and still live. It satisfies middleware.Authenticator.
//
// Checks run in a fixed order and stop at the first failure:
//  1. signature and structure (HS256 only)
//  2. issuer, audience, nbf, iat and exp with no leeway
//  3. blacklist, owning account, security stamp, token store
type TokenValidator interface {
	middleware.Authenticator
}

type tokenValidator struct {
	parser    *middleware.TokenParser
	users     repositories.UserRepository
	store     auth_repositories.TokenStore
	blacklist BlacklistService
}

// NewTokenValidator builds a validator. blacklist may be nil when the
// deny-list is disabled.
func NewTokenValidator(
	settings TokenSettings,
	users repositories.UserRepository,
	store auth_repositories.TokenStore,
	blacklist BlacklistService,
	now func() time.Time,
) TokenValidator {
	return &tokenValidator{
		parser:    middleware.NewTokenParser(settings.Key, settings.Issuer, settings.Audience, now),
		users:     users,
		store:     store,
		blacklist: blacklist,
	}
}

func (v *tokenValidator) Authenticate(ctx context.Context, rawToken string) (*middleware.Principal, error) {
	claims, err := v.parser.Parse(rawToken)
	if err != nil {
		return nil, err
	}

	if v.blacklist != nil {
		listed, err := v.blacklist.IsBlacklisted(ctx, rawToken)
		if err != nil {
			return nil, fmt.Errorf("blacklist lookup: %w", err)
		}
		if listed {
			return nil, fmt.Errorf("%w: blacklisted", utils.ErrTokenRevoked)
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", utils.ErrTokenInvalid)
	}

	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrAccountNotFound, userID)
	}

	if subtle.ConstantTimeCompare([]byte(claims.Stamp), []byte(user.SecurityStamp)) != 1 {
		return nil, fmt.Errorf("%w: security stamp changed", utils.ErrTokenRevoked)
	}

	live, err := v.store.IsValid(ctx, userID, rawToken)
	if err != nil {
		return nil, fmt.Errorf("token store lookup: %w", err)
	}
	if !live {
		return nil, fmt.Errorf("%w: not in token store", utils.ErrTokenRevoked)
	}

	p := &middleware.Principal{
		UserID:   userID,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    claims.Roles,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}
