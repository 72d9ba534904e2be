package utils

import (
	"strings"
	"testing"

	"github.com/learnly/mono-repo/backend/shared/go-utils"
	"github.com/stretchr/testify/assert"
)

func TestPasswordPolicy_Validate(t *testing.T) {
	p := DefaultPasswordPolicy(8)

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Sunflower7", true},
		{"too short", "Ab1", false},
		{"no upper", "sunflower7", false},
		{"no lower", "SUNFLOWER7", false},
		{"no digit", "Sunflowers", false},
		{"too long", "Aa1" + strings.Repeat("x", MaxPasswordLength), false},
		{"unicode counts runes", "Ünïcødé9", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.Validate(tc.password)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, utils.ErrPasswordPolicyViolation)
		})
	}
}

func TestPasswordPolicy_RequireSpecial(t *testing.T) {
	p := DefaultPasswordPolicy(8)
	p.RequireSpecial = true

	assert.Error(t, p.Validate("Sunflower7"))
	assert.NoError(t, p.Validate("Sunflower7!"))
}
