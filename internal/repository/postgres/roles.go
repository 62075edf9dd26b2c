package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

const rolesTable = "auth.roles"

var roleColumns = []string{
	"id",
	"name",
	"slug",
	"description",
	"permissions",
	"created_at",
	"updated_at",
}

// RoleRepository implements port.RoleRepository using PostgreSQL. Permission
// groups are stored as a JSONB document on the role row.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new role. The slug carries a unique constraint, so a
// duplicate surfaces as repository.ErrConflict.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("marshal role permissions: %w", err)
	}

	stmt, args, err := r.builder.Insert(rolesTable).
		Columns(roleColumns...).
		Values(
			role.ID,
			role.Name,
			role.Slug,
			role.Description,
			permissions,
			role.CreatedAt,
			role.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by identifier.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetBySlug retrieves a role by its unique slug.
func (r *RoleRepository) GetBySlug(ctx context.Context, slug string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"slug": slug})
}

// SetPermissions replaces the role's permission document wholesale.
func (r *RoleRepository) SetPermissions(ctx context.Context, id string, groups []domain.PermissionGroup) error {
	permissions, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("marshal role permissions: %w", err)
	}

	stmt, args, err := r.builder.Update(rolesTable).
		Set("permissions", permissions).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role permissions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *RoleRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns...).
		From(rolesTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		role        domain.Role
		permissions []byte
	)

	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Slug,
		&role.Description,
		&permissions,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
			return nil, fmt.Errorf("unmarshal role permissions: %w", err)
		}
	}

	return &role, nil
}
