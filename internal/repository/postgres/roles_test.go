package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

func TestRoleRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	now := time.Now().UTC()
	role := domain.Role{
		ID:   "role-1",
		Name: "Support Agent",
		Slug: "support-agent",
		Permissions: []domain.PermissionGroup{
			{Service: "tickets", Permissions: []domain.Permission{{Code: "tickets:read"}}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec(`INSERT INTO auth\.roles`).
		WithArgs(
			role.ID,
			role.Name,
			role.Slug,
			(*string)(nil),
			pgxmock.AnyArg(),
			role.CreatedAt,
			role.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), role); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetBySlug(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	now := time.Now().UTC()
	permissions := []byte(`[{"service":"tickets","permissions":[{"code":"tickets:read"},{"code":"tickets:write"}]}]`)

	rows := pgxmock.NewRows([]string{
		"id", "name", "slug", "description", "permissions", "created_at", "updated_at",
	}).AddRow(
		"role-1", "Support Agent", "support-agent", nil, permissions, now, now,
	)

	mock.ExpectQuery(`SELECT .*FROM auth\.roles`).
		WithArgs("support-agent").
		WillReturnRows(rows)

	role, err := repo.GetBySlug(context.Background(), "support-agent")
	if err != nil {
		t.Fatalf("GetBySlug returned error: %v", err)
	}
	if role.ID != "role-1" {
		t.Fatalf("expected role-1, got %s", role.ID)
	}

	codes := role.PermissionCodes()
	if _, ok := codes["tickets:read"]; !ok {
		t.Fatalf("expected tickets:read in flattened codes, got %v", codes)
	}
	if _, ok := codes["tickets:write"]; !ok {
		t.Fatalf("expected tickets:write in flattened codes, got %v", codes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	rows := pgxmock.NewRows([]string{
		"id", "name", "slug", "description", "permissions", "created_at", "updated_at",
	})

	mock.ExpectQuery(`SELECT .*FROM auth\.roles`).
		WithArgs("missing").
		WillReturnRows(rows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_SetPermissions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	groups := []domain.PermissionGroup{
		{Service: "billing", Permissions: []domain.Permission{{Code: "billing:refund"}}},
	}

	mock.ExpectExec(`UPDATE auth\.roles`).
		WithArgs(pgxmock.AnyArg(), "role-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetPermissions(context.Background(), "role-1", groups); err != nil {
		t.Fatalf("SetPermissions returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE auth\.roles`).
		WithArgs(pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetPermissions(context.Background(), "missing", groups); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
