package controllers

import (
	"errors"
	"net/http"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/dtos"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/services"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

type AuthController struct {
	authService services.AuthService
	// TrustedProxyHops is how many reverse proxies append to
	// X-Forwarded-For in front of the service. See utils.ClientIP.
	TrustedProxyHops int
}

func NewAuthController(authService services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// asAppError converts a service error into the HTTP status and code the
// client sees. Unknown errors become 500.
func asAppError(err error) *utils.AppError {
	appErr := func(status int, code, msg string) *utils.AppError {
		return &utils.AppError{StatusCode: status, Code: code, Message: msg, Err: err}
	}
	switch {
	case errors.Is(err, utils.ErrPasswordPolicyViolation):
		return appErr(http.StatusBadRequest, utils.ErrCodePasswordPolicy, "Password does not meet requirements")
	case errors.Is(err, utils.ErrAuthenticationFailed):
		return appErr(http.StatusUnauthorized, utils.ErrCodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, utils.ErrInvalidResetToken):
		return appErr(http.StatusBadRequest, utils.ErrCodeInvalidResetToken, "Invalid or expired reset token")
	case errors.Is(err, utils.ErrEmailExists), errors.Is(err, utils.ErrUsernameExists):
		return appErr(http.StatusConflict, utils.ErrCodeConflict, "Email or username already in use")
	case errors.Is(err, utils.ErrRoleAssignmentFailed):
		return appErr(http.StatusUnprocessableEntity, utils.ErrCodeRegistrationFailed, "Registration failed: roles could not be assigned")
	case errors.Is(err, utils.ErrProvisioningFailed):
		return appErr(http.StatusInternalServerError, utils.ErrCodeRegistrationFailed, "Registration failed; please try again")
	case errors.Is(err, utils.ErrRateLimitExceeded):
		return appErr(http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded, "Too many requests. Please try again later.")
	case errors.Is(err, utils.ErrUserNotFound):
		return appErr(http.StatusNotFound, utils.ErrCodeNotFound, "User not found")
	case errors.Is(err, utils.ErrRowVersionConflict):
		return appErr(http.StatusConflict, utils.ErrCodeRowVersionConflict, "Concurrent update; please retry")
	default:
		return appErr(http.StatusInternalServerError, utils.ErrCodeInternal, "An unexpected error occurred")
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	utils.HandleAppError(w, asAppError(err))
}

// ---------------------------------------------------------------------
// Public endpoints
// ---------------------------------------------------------------------

func (c *AuthController) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequest
	if !decodeAndValidate(w, r, &req, "Invalid registration data") {
		return
	}

	user, err := c.authService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, dtos.RegisterResponse{User: dtos.NewUserFromModel(user)})
}

func (c *AuthController) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.LoginRequest
	if !decodeAndValidate(w, r, &req, "Login and password are required") {
		return
	}

	user, issued, err := c.authService.Login(r.Context(), req.Login, req.Password, utils.ClientIP(r, c.TrustedProxyHops))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tokenResponse(user, issued))
}

// ForgotPasswordHandler answers identically for known and unknown emails.
func (c *AuthController) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req, "A valid email is required") {
		return
	}

	res, err := c.authService.ForgotPassword(r.Context(), req.Email, utils.ClientIP(r, c.TrustedProxyHops))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.ForgotPasswordResponse{
		Message:    forgotPasswordMessage,
		ResetToken: res.ResetToken,
		UserID:     res.UserID,
	})
}

func (c *AuthController) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.ResetPasswordRequest
	if !decodeAndValidate(w, r, &req, "Email, token and new password are required") {
		return
	}

	if err := c.authService.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Password has been reset"})
}

// ---------------------------------------------------------------------
// Authenticated endpoints
// ---------------------------------------------------------------------

func (c *AuthController) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}

	user, issued, err := c.authService.Refresh(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tokenResponse(user, issued))
}

func (c *AuthController) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	raw, _ := middleware.RawTokenFromContext(r.Context())

	if err := c.authService.Logout(r.Context(), p, raw); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Logged out"})
}

func (c *AuthController) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	var req dtos.ChangePasswordRequest
	if !decodeAndValidate(w, r, &req, "Current and new password are required") {
		return
	}

	if err := c.authService.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{
		Message: "Password changed. Please log in again on all devices.",
	})
}

func (c *AuthController) MeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}

	user, err := c.authService.GetCurrentUser(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.NewUserFromModel(user))
}
