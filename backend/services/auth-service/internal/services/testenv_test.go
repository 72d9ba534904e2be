package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/dtos"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

const testPassword = "Correct-Horse9"

type testEnv struct {
	clock       *fakeClock
	cfg         *config.Config
	settings    TokenSettings
	users       *memUserRepo
	store       auth_repositories.TokenStore
	blacklist   BlacklistService
	blRepo      *memBlacklistRepo
	resets      *memResetRepo
	issuer      TokenIssuer
	validator   TokenValidator
	provisioner *fakeProvisioner
	notifier    *recordingNotifier
	limiter     *fakeRateLimiter
	svc         *authService
}

func testSigningKey(t *testing.T) utils.SigningKey {
	t.Helper()
	key, err := utils.NewSigningKey([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	return key
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		clock:       newFakeClock(),
		users:       newMemUserRepo(),
		blRepo:      newMemBlacklistRepo(),
		resets:      newMemResetRepo(),
		provisioner: &fakeProvisioner{},
		notifier:    &recordingNotifier{},
		limiter:     &fakeRateLimiter{},
	}
	env.cfg = &config.Config{
		OrganizationName:  config.OrganizationName,
		AppUrl:            "https://app.learnly.test",
		TokenTTL:          4 * time.Hour,
		TokenIssuer:       utils.DefaultTokenIssuer,
		TokenAudience:     utils.DefaultTokenAudience,
		SigningKey:        testSigningKey(t),
		BlacklistEnabled:  true,
		ResetTokenTTL:     time.Hour,
		PasswordMinLength: 8,
	}
	env.settings = TokenSettingsFromConfig(env.cfg)
	env.store = auth_repositories.NewCacheTokenStore(rdb, env.clock.Now)
	env.blacklist = NewBlacklistService(env.blRepo, env.clock.Now)
	env.issuer = NewTokenIssuer(env.settings, env.store, env.clock.Now)
	env.validator = NewTokenValidator(env.settings, env.users, env.store, env.blacklist, env.clock.Now)
	env.rebuildService()
	return env
}

// rebuildService re-creates the orchestrator after a test swaps a collaborator.
func (e *testEnv) rebuildService() {
	svc := NewAuthService(
		e.users, e.resets, e.store, e.blacklist, e.issuer,
		e.provisioner, e.notifier, e.limiter, e.cfg,
	).(*authService)
	svc.now = e.clock.Now
	e.svc = svc
}

func (e *testEnv) register(t *testing.T, username string, roles ...string) *models.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{models.RoleStudent}
	}
	u, err := e.svc.Register(context.Background(), dtos.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Roles:    roles,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, login string) *IssuedToken {
	t.Helper()
	_, issued, err := e.svc.Login(context.Background(), login, testPassword, "203.0.113.7")
	require.NoError(t, err)
	return issued
}
