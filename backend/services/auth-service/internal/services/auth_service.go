package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/dtos"
	auth_models "github.com/learnly/mono-repo/backend/services/auth-service/internal/models"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	internal_utils "github.com/learnly/mono-repo/backend/services/auth-service/internal/utils"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// resetTokenBytes is the entropy of a password reset token.
const resetTokenBytes = 32

// AuthService composes issuing, validation and revocation into the
// user-facing account flows.
type AuthService interface {
	Register(ctx context.Context, req dtos.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, login, password, clientIP string) (*models.User, *IssuedToken, error)

	// Refresh mints a new token for an authenticated principal. The token
	// used to call it stays valid until it expires or is revoked.
	Refresh(ctx context.Context, p *middleware.Principal) (*models.User, *IssuedToken, error)
	Logout(ctx context.Context, p *middleware.Principal, rawToken string) error

	ChangePassword(ctx context.Context, p *middleware.Principal, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email, clientIP string) (*ForgotPasswordResult, error)
	ResetPassword(ctx context.Context, email, token, newPassword string) error

	GetCurrentUser(ctx context.Context, p *middleware.Principal) (*models.User, error)
}

// ForgotPasswordResult is empty unless reset tokens are exposed for testing
// and the account exists.
type ForgotPasswordResult struct {
	ResetToken string
	UserID     string
}

type authService struct {
	users       repositories.UserRepository
	resets      auth_repositories.PasswordResetRepository
	store       auth_repositories.TokenStore
	blacklist   BlacklistService
	issuer      TokenIssuer
	provisioner RoleProvisioner
	notifier    NotificationDispatcher
	rateLimiter RateLimiterService
	policy      internal_utils.PasswordPolicy

	cfg *config.Config
	now func() time.Time
}

// NewAuthService wires the flows. blacklist may be nil when the deny-list
// is disabled.
func NewAuthService(
	users repositories.UserRepository,
	resets auth_repositories.PasswordResetRepository,
	store auth_repositories.TokenStore,
	blacklist BlacklistService,
	issuer TokenIssuer,
	provisioner RoleProvisioner,
	notifier NotificationDispatcher,
	rateLimiter RateLimiterService,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:       users,
		resets:      resets,
		store:       store,
		blacklist:   blacklist,
		issuer:      issuer,
		provisioner: provisioner,
		notifier:    notifier,
		rateLimiter: rateLimiter,
		policy:      internal_utils.DefaultPasswordPolicy(cfg.PasswordMinLength),
		cfg:         cfg,
		now:         time.Now,
	}
}

// ---------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------

func (s *authService) Register(ctx context.Context, req dtos.RegisterRequest) (*models.User, error) {
	if err := s.policy.Validate(req.Password); err != nil {
		return nil, err
	}
	roles := models.NormalizeRoles(req.Roles)
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: no roles requested", utils.ErrRoleNotFound)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	stamp, err := utils.NewSecurityStamp()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:            uuid.New(),
		Username:      strings.TrimSpace(req.Username),
		Email:         normalizeEmail(req.Email),
		PasswordHash:  hash,
		SecurityStamp: stamp,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.users.AddToRoles(ctx, user.ID, roles); err != nil {
		s.rollbackRegistration(ctx, user.ID, "role assignment", err)
		return nil, fmt.Errorf("%w: %v", utils.ErrRoleAssignmentFailed, err)
	}
	user.Roles = roles

	for _, role := range roles {
		if err := s.provisioner.Provision(ctx, user, role); err != nil {
			s.rollbackRegistration(ctx, user.ID, "provisioning "+role, err)
			return nil, fmt.Errorf("%w: role %s: %v", utils.ErrProvisioningFailed, role, err)
		}
	}

	utils.Logger.WithFields(logrus.Fields{"user_id": user.ID, "roles": roles}).Info("user registered")

	subject, body := confirmationEmail(s.cfg.OrganizationName, user.Username)
	notifyAsync(ctx, s.notifier, user.Email, subject, body)
	return user, nil
}

// rollbackRegistration deletes an account whose setup failed part way. It
// runs even if the request was cancelled.
func (s *authService) rollbackRegistration(ctx context.Context, userID uuid.UUID, stage string, cause error) {
	logger := utils.Logger.WithField("user_id", userID).WithField("stage", stage)
	logger.WithError(cause).Warn("registration failed; deleting account")
	if err := s.users.Delete(context.WithoutCancel(ctx), userID); err != nil {
		logger.WithError(err).Error("failed to delete partially registered account")
	}
}

// ---------------------------------------------------------------------
// Login / Refresh / Logout
// ---------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, login, password, clientIP string) (*models.User, *IssuedToken, error) {
	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckLoginRateLimit(ctx, clientIP); err != nil {
			return nil, nil, err
		}
	}

	login = strings.TrimSpace(login)
	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, nil, err
	}

	if user == nil {
		utils.BurnPasswordCheck(password)
		utils.Logger.WithField("reason", "unknown_user").Info("login failed")
		return nil, nil, utils.ErrAuthenticationFailed
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		utils.Logger.WithField("user_id", user.ID).WithField("reason", "bad_password").Info("login failed")
		return nil, nil, utils.ErrAuthenticationFailed
	}

	issued, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

func (s *authService) Refresh(ctx context.Context, p *middleware.Principal) (*models.User, *IssuedToken, error) {
	user, err := s.loadPrincipalUser(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	issued, err := s.issuer.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, issued, nil
}

// Logout removes the token from the store, then blacklists it for the rest
// of its lifetime. The blacklist write is best-effort.
func (s *authService) Logout(ctx context.Context, p *middleware.Principal, rawToken string) error {
	if err := s.store.Revoke(ctx, p.UserID, rawToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	if s.blacklist != nil && !p.ExpiresAt.IsZero() {
		if err := s.blacklist.Blacklist(ctx, rawToken, p.ExpiresAt); err != nil {
			utils.Logger.WithError(err).WithField("user_id", p.UserID).Warn("failed to blacklist logged-out token")
		}
	}

	utils.Logger.WithField("user_id", p.UserID).WithField("jti", p.TokenID).Info("user logged out")
	return nil
}

// ---------------------------------------------------------------------
// Passwords
// ---------------------------------------------------------------------

func (s *authService) ChangePassword(ctx context.Context, p *middleware.Principal, currentPassword, newPassword string) error {
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", utils.ErrPasswordPolicyViolation)
	}

	user, err := s.loadPrincipalUser(ctx, p)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return utils.ErrAuthenticationFailed
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	s.afterPasswordChange(ctx, user)
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, email, clientIP string) (*ForgotPasswordResult, error) {
	email = normalizeEmail(email)
	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckEmailRateLimits(ctx, clientIP, email); err != nil {
			return nil, err
		}
	}

	result := &ForgotPasswordResult{}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		utils.Logger.Debug("password reset requested for unknown email")
		return result, nil
	}

	token, err := utils.SecureToken(resetTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &auth_models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		CreatedAt: now,
	}
	// A failure here must look the same to the caller as an unknown email.
	if err := s.resets.Create(ctx, rec); err != nil {
		utils.Logger.WithError(err).WithField("user_id", user.ID).Error("failed to store password reset token")
		return result, nil
	}

	subject, body := passwordResetEmail(
		s.cfg.OrganizationName, s.cfg.AppUrl, token, int(s.cfg.ResetTokenTTL/time.Minute),
	)
	notifyAsync(ctx, s.notifier, user.Email, subject, body)

	if s.cfg.LDFlag_ExposeResetTokens {
		result.ResetToken = token
		result.UserID = user.ID.String()
	}
	return result, nil
}

func (s *authService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return utils.ErrInvalidResetToken
	}

	rec, err := s.resets.Consume(ctx, user.ID, utils.HashToken(token), s.now())
	if err != nil {
		return err
	}
	if rec == nil {
		return utils.ErrInvalidResetToken
	}

	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	s.afterPasswordChange(ctx, user)
	return nil
}

// setPassword stores the new hash and rotates the security stamp, which
// on its own invalidates every token minted before it.
func (s *authService) setPassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	stamp, err := utils.NewSecurityStamp()
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, stamp); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// afterPasswordChange revokes every token of the user and notifies them.
// A revocation failure is logged and never undoes the password change.
func (s *authService) afterPasswordChange(ctx context.Context, user *models.User) {
	logger := utils.Logger.WithField("user_id", user.ID)
	if err := s.store.RevokeAll(ctx, user.ID); err != nil {
		logger.WithError(err).Warn("failed to revoke tokens after password change")
	} else {
		logger.Info("password changed; all tokens revoked")
	}

	subject, body := passwordChangedEmail(s.cfg.OrganizationName)
	notifyAsync(ctx, s.notifier, user.Email, subject, body)
}

// ---------------------------------------------------------------------
// Current user
// ---------------------------------------------------------------------

func (s *authService) GetCurrentUser(ctx context.Context, p *middleware.Principal) (*models.User, error) {
	return s.loadPrincipalUser(ctx, p)
}

func (s *authService) loadPrincipalUser(ctx context.Context, p *middleware.Principal) (*models.User, error) {
	if p == nil {
		return nil, utils.ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.ErrUserNotFound
	}
	return user, nil
}
