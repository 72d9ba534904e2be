package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role names known to the platform. Roles are rows in the roles table;
// these constants only cover the ones the auth service provisions for.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleAdmin   = "admin"
)

// User is the identity record shared by every service.
type User struct {
	Versioned

	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`

	// SecurityStamp is rotated on every credential change. Tokens carry the
	// stamp they were issued under.
	SecurityStamp string `json:"-"`

	Roles []string `json:"roles"`

	// ActiveTokens maps token hash -> expiry for the identity-linked token
	// store. Empty when tokens live in the cache backend.
	ActiveTokens map[string]time.Time `json:"-"`

	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) GetID() string {
	return u.ID.String()
}

// NormalizeRoles returns a sorted copy of roles without duplicates or blanks.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
