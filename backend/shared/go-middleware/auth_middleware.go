package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	ContextKeyUserID    = contextKey("userID")
	ContextKeyPrincipal = contextKey("principal")
	ContextKeyRawToken  = contextKey("rawToken")
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	Roles     []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Authenticator turns a raw bearer token into a Principal. Implementations
// must return errors wrapping the utils.ErrToken* / ErrAccountNotFound
// sentinels for token failures.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
}

// AuthMiddleware – for protected endpoints. If the token is missing, invalid,
// expired, revoked or orphaned the request stops with 401.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := ExtractBearerToken(r)
			if err != nil {
				utils.RespondErrorWithCode(
					w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, err.Error(), nil,
				)
				return
			}

			principal, aErr := auth.Authenticate(r.Context(), tokenStr)
			if aErr != nil {
				respondTokenFailure(w, tokenStr, aErr)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			ctx = context.WithValue(ctx, ContextKeyUserID, principal.UserID.String())
			ctx = context.WithValue(ctx, ContextKeyRawToken, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondTokenFailure(w http.ResponseWriter, tokenStr string, err error) {
	utils.Logger.WithFields(logrus.Fields{
		"reason": utils.TokenFailureReason(err),
		"token":  utils.TokenFingerprint(tokenStr),
	}).Info("token rejected")

	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, err)
	case errors.Is(err, utils.ErrTokenInvalid),
		errors.Is(err, utils.ErrTokenRevoked),
		errors.Is(err, utils.ErrAccountNotFound):
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid token", nil, err)
	default:
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Unable to verify token", nil, err)
	}
}

// ExtractBearerToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive.
func ExtractBearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", errors.New("missing Authorization header")
	}
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("malformed Authorization header")
	}
	return parts[1], nil
}

// PrincipalFromContext returns the principal stored by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p, ok && p != nil
}

// RawTokenFromContext returns the bearer token that authenticated the request.
func RawTokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ContextKeyRawToken).(string)
	return t, ok && t != ""
}
