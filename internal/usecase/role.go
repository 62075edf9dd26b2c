package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

// RoleService manages roles and their permission groups. Every mutation
// invalidates cached authorization decisions eagerly so checks never serve a
// stale grant for the cache TTL.
type RoleService struct {
	cfg      *config.AppConfig
	roles    port.RoleRepository
	resolver *PermissionResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(cfg *config.AppConfig, roles port.RoleRepository, resolver *PermissionResolver, log *zap.Logger) *RoleService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &RoleService{
		cfg:      cfg,
		roles:    roles,
		resolver: resolver,
		logger:   log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *RoleService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
	Permissions []domain.PermissionGroup
}

// CreateRole provisions a new role. The slug is derived from the name and
// must be unique.
func (s *RoleService) CreateRole(ctx context.Context, input CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrRoleNotFound.WithMessage("role name is required.")
	}

	roleSlug := slug.Make(name)

	if existing, err := s.roles.GetBySlug(ctx, roleSlug); err == nil && existing != nil {
		return nil, domain.ErrRoleAlreadyExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by slug: %w", err)
	}

	now := s.now()
	role := domain.Role{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        roleSlug,
		Description: input.Description,
		Permissions: input.Permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.ErrRoleAlreadyExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.logger.Info("role created",
		zap.String("role_id", role.ID),
		zap.String("slug", role.Slug),
	)

	return &role, nil
}

// SetPermissions replaces the role's permission groups and drops every
// cached decision, since any principal may hold the role.
func (s *RoleService) SetPermissions(ctx context.Context, roleID string, groups []domain.PermissionGroup) error {
	if err := s.roles.SetPermissions(ctx, roleID, groups); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrRoleNotFound
		}
		return fmt.Errorf("set role permissions: %w", err)
	}

	if err := s.resolver.InvalidateAll(ctx); err != nil {
		s.logger.Warn("cache invalidation on role change failed", zap.Error(err))
	}

	s.logger.Info("role permissions replaced", zap.String("role_id", roleID))

	return nil
}

// GetRole loads one role by id.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	return role, nil
}

// EnsureDefaultAdminRole seeds the configured admin role at startup when it
// does not exist yet. The admin slug bypasses permission resolution, so the
// seeded groups only matter for introspection.
func (s *RoleService) EnsureDefaultAdminRole(ctx context.Context, groups []domain.PermissionGroup) (*domain.Role, error) {
	name := strings.TrimSpace(s.cfg.Auth.DefaultAdminRole)
	if name == "" {
		return nil, fmt.Errorf("default admin role name is not configured")
	}

	roleSlug := slug.Make(name)

	existing, err := s.roles.GetBySlug(ctx, roleSlug)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup admin role: %w", err)
	}

	now := s.now()
	role := domain.Role{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        roleSlug,
		Permissions: groups,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.roles.Create(ctx, role); err != nil {
		// A concurrent replica may have seeded it first.
		if errors.Is(err, repository.ErrConflict) {
			return s.roles.GetBySlug(ctx, roleSlug)
		}
		return nil, fmt.Errorf("seed admin role: %w", err)
	}

	s.logger.Info("default admin role seeded",
		zap.String("role_id", role.ID),
		zap.String("slug", role.Slug),
	)

	return &role, nil
}
