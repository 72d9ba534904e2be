package services

import (
	"context"

	"github.com/learnly/mono-repo/backend/shared/go-models"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
)

// RoleProvisioner creates whatever a role needs beyond the account itself,
// e.g. a student or teacher profile. It runs once per role at registration.
type RoleProvisioner interface {
	Provision(ctx context.Context, user *models.User, role string) error
}

type roleProfileProvisioner struct {
	db repositories.DB
}

// NewRoleProfileProvisioner records an empty role_profiles row per role for
// the domain services to fill in.
func NewRoleProfileProvisioner(db repositories.DB) RoleProvisioner {
	return &roleProfileProvisioner{db: db}
}

func (p *roleProfileProvisioner) Provision(ctx context.Context, user *models.User, role string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO role_profiles (user_id, role, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, role) DO NOTHING`,
		user.ID, role,
	)
	return err
}
