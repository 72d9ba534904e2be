// backend/shared/go-utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// Domain-level errors used by the service layer to provide
// fine-grained failure reasons.
var (
	ErrEmailExists             = errors.New("email_exists")
	ErrUsernameExists          = errors.New("username_exists")
	ErrUserNotFound            = errors.New("user_not_found")
	ErrAuthenticationFailed    = errors.New("authentication_failed")
	ErrPasswordPolicyViolation = errors.New("password_policy_violation")
	ErrInvalidResetToken       = errors.New("invalid_reset_token")

	// Registration rollbacks: the just-created account has been deleted.
	ErrRoleAssignmentFailed = errors.New("role_assignment_failed")
	ErrProvisioningFailed   = errors.New("provisioning_failed")
	ErrRoleNotFound         = errors.New("role_not_found")

	// Token failures. Callers only ever see a generic message; the
	// distinction is kept for logs and for the token_expired code.
	ErrTokenInvalid    = errors.New("token_invalid")
	ErrTokenExpired    = errors.New("token_expired")
	ErrTokenRevoked    = errors.New("token_revoked")
	ErrAccountNotFound = errors.New("account_not_found")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")

	// For rate limiting
	ErrRateLimitExceeded = errors.New("rate_limit_exceeded")

	// For external service failures (e.g., SendGrid)
	ErrExternalServiceFailure = errors.New("external_service_failure")

	ErrNoRowsUpdated = errors.New("no_rows_updated")
)

// TokenFailureReason maps a token error onto the short reason string
// written to logs. Unknown errors report "error".
func TokenFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrAccountNotFound):
		return "orphaned"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}

// AppError for structured error handling from services to controllers.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HandleAppError centralizes responding to AppErrors.
func HandleAppError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		RespondErrorWithCode(w, appErr.StatusCode, appErr.Code, appErr.Message, nil, appErr.Err)
	} else {
		RespondErrorWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", nil, err)
	}
}
