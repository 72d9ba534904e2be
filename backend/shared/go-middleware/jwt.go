package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// Claims is the claim set carried by every access token.
type Claims struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	// Stamp is the owner's security stamp at issuance.
	Stamp string `json:"stamp"`
	jwt.RegisteredClaims
}

// TokenParser performs the stateless half of validation: signature,
// structure and temporal bounds. Liveness is checked by the caller.
type TokenParser struct {
	key      utils.SigningKey
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokenParser(key utils.SigningKey, issuer, audience string, now func() time.Time) *TokenParser {
	if now == nil {
		now = time.Now
	}
	return &TokenParser{key: key, issuer: issuer, audience: audience, now: now}
}

// Parse returns the verified claims, or an error wrapping
// utils.ErrTokenExpired or utils.ErrTokenInvalid. There is no clock-skew
// leeway.
func (p *TokenParser) Parse(raw string) (*Claims, error) {
	if p.key.IsZero() {
		return nil, errors.New("token parser has no signing key")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			return p.key.Bytes(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", utils.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrTokenInvalid, err)
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", utils.ErrTokenInvalid)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: bad subject", utils.ErrTokenInvalid)
	}
	return claims, nil
}
