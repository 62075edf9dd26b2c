package port

import (
	"context"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
)

// RoleRepository persists roles and their permission groups.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Role, error)
	// SetPermissions replaces the role's permission groups.
	SetPermissions(ctx context.Context, id string, groups []domain.PermissionGroup) error
}
