package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

func TestValidatorFourHourScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "grace")

	t1, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.validator.Authenticate(ctx, t1.Token)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	require.NoError(t, env.store.Revoke(ctx, user.ID, t1.Token))

	env.clock.Advance(time.Second)
	_, err = env.validator.Authenticate(ctx, t1.Token)
	assert.ErrorIs(t, err, utils.ErrTokenRevoked)
}

func TestValidatorExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "expiring")

	tok, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	env.clock.Advance(4*time.Hour - time.Second)
	_, err = env.validator.Authenticate(ctx, tok.Token)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	_, err = env.validator.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, utils.ErrTokenExpired)
}

func TestValidatorRejectsTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "tamper")
	tok, err := env.issuer.Issue(context.Background(), user)
	require.NoError(t, err)

	// Replace the first signature character; it carries six full bits.
	sig := strings.LastIndex(tok.Token, ".") + 1
	replacement := "A"
	if tok.Token[sig] == 'A' {
		replacement = "B"
	}
	tampered := tok.Token[:sig] + replacement + tok.Token[sig+1:]

	_, err = env.validator.Authenticate(context.Background(), tampered)
	assert.ErrorIs(t, err, utils.ErrTokenInvalid)
}

func TestValidatorOrphanedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "orphan")
	tok, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.users.Delete(ctx, user.ID))

	_, err = env.validator.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, utils.ErrAccountNotFound)
	assert.NotErrorIs(t, err, utils.ErrTokenRevoked)
}

func TestValidatorStampMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "stamped")
	tok, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.users.UpdatePassword(ctx, user.ID, user.PasswordHash, "rotated"))

	_, err = env.validator.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, utils.ErrTokenRevoked)
}

func TestValidatorBlacklistFastReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "listed")
	tok, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	require.NoError(t, env.blacklist.Blacklist(ctx, tok.Token, tok.ExpiresAt))

	_, err = env.validator.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, utils.ErrTokenRevoked)
}

func TestValidatorWithoutBlacklist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "allowonly")
	tok, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)

	v := NewTokenValidator(env.settings, env.users, env.store, nil, env.clock.Now)
	_, err = v.Authenticate(ctx, tok.Token)
	require.NoError(t, err)

	require.NoError(t, env.store.Revoke(ctx, user.ID, tok.Token))
	_, err = v.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, utils.ErrTokenRevoked)
}
