package utils

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

// MaxPasswordLength is bcrypt's input limit; longer inputs are silently
// truncated by the algorithm, so they are refused up front.
const MaxPasswordLength = 72

// PasswordPolicy describes the complexity rules a new password must meet.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

func DefaultPasswordPolicy(minLength int) PasswordPolicy {
	return PasswordPolicy{
		MinLength:      minLength,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: false,
	}
}

// Validate returns an error wrapping utils.ErrPasswordPolicyViolation that
// lists every unmet rule.
func (p PasswordPolicy) Validate(password string) error {
	var problems []string

	if n := utf8.RuneCountInString(password); n < p.MinLength {
		problems = append(problems, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if len(password) > MaxPasswordLength {
		problems = append(problems, fmt.Sprintf("at most %d bytes", MaxPasswordLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if p.RequireUpper && !upper {
		problems = append(problems, "an uppercase letter")
	}
	if p.RequireLower && !lower {
		problems = append(problems, "a lowercase letter")
	}
	if p.RequireDigit && !digit {
		problems = append(problems, "a digit")
	}
	if p.RequireSpecial && !special {
		problems = append(problems, "a symbol")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: password needs %s", utils.ErrPasswordPolicyViolation, strings.Join(problems, ", "))
	}
	return nil
}
