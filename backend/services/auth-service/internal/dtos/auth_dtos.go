package dtos

import (
	"time"

	"github.com/learnly/mono-repo/backend/shared/go-models"
)

// ----------------------
// Requests
// ----------------------

type RegisterRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string   `json:"email" validate:"required,email,max=254"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"required,min=1,max=3,dive,oneof=student teacher parent"`
}

// LoginRequest accepts either the email address or the username in Login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Token       string `json:"token" validate:"required,max=128"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ----------------------
// Responses
// ----------------------

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Roles          []string  `json:"roles"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewUserFromModel(u *models.User) User {
	roles := models.NormalizeRoles(u.Roles)
	if roles == nil {
		roles = []string{}
	}
	return User{
		ID:             u.ID.String(),
		Username:       u.Username,
		Email:          u.Email,
		Roles:          roles,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
	}
}

type RegisterResponse struct {
	User User `json:"user"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ForgotPasswordResponse has the same shape whether or not the account
// exists. ResetToken and UserID are only ever filled in by deployments that
// expose reset tokens for testing, and only for real accounts.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

type HealthCheckResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}
