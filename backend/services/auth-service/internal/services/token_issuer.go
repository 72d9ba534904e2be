package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// TokenSettings carries the signing material and claim constants shared by
// the issuer and the validator.
type TokenSettings struct {
	Key      utils.SigningKey
	Issuer   string
	Audience string
	TTL      time.Duration
}

func TokenSettingsFromConfig(cfg *config.Config) TokenSettings {
	return TokenSettings{
		Key:      cfg.SigningKey,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
		TTL:      cfg.TokenTTL,
	}
}

// IssuedToken is a signed access token that has already been registered
// with the token store.
type IssuedToken struct {
	Token     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenIssuer interface {
	Issue(ctx context.Context, user *models.User) (*IssuedToken, error)
}

type tokenIssuer struct {
	settings TokenSettings
	store    auth_repositories.TokenStore
	now      func() time.Time
}

func NewTokenIssuer(settings TokenSettings, store auth_repositories.TokenStore, now func() time.Time) TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &tokenIssuer{settings: settings, store: store, now: now}
}

// Issue signs a token for user and registers it before returning it. If
// the store refuses the token, the signed value is discarded and the
// error is returned.
func (i *tokenIssuer) Issue(ctx context.Context, user *models.User) (*IssuedToken, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("cannot issue a token without a user")
	}
	if i.settings.Key.IsZero() {
		return nil, errors.New("token issuer has no signing key")
	}

	// Claims carry whole seconds; keep the stored expiry identical to exp.
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.settings.TTL)
	tokenID := uuid.NewString()

	claims := &middleware.Claims{
		Username: user.Username,
		Email:    user.Email,
		Roles:    models.NormalizeRoles(user.Roles),
		Stamp:    user.SecurityStamp,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.settings.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{i.settings.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.settings.Key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := i.store.Store(ctx, user.ID, signed, expiresAt); err != nil {
		return nil, fmt.Errorf("register token: %w", err)
	}

	utils.Logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"jti":     tokenID,
		"token":   utils.TokenFingerprint(signed),
	}).Debug("token issued")

	return &IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
