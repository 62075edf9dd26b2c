package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

const principalsTable = "auth.principals"

var principalColumns = []string{
	"id",
	"fullname",
	"email",
	"phone",
	"password_hash",
	"role_id",
	"is_active",
	"is_primary",
	"attributes",
	"created_at",
	"updated_at",
}

func isPrincipalColumn(name string) bool {
	for _, column := range principalColumns {
		if column == name {
			return true
		}
	}
	return false
}

// PrincipalRepository implements port.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPrincipalRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewPrincipalRepository(exec pgExecutor) *PrincipalRepository {
	return &PrincipalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new principal row.
func (r *PrincipalRepository) Create(ctx context.Context, principal domain.Principal) error {
	attrs, err := json.Marshal(principal.Attributes)
	if err != nil {
		return fmt.Errorf("marshal principal attributes: %w", err)
	}

	var emailValue any
	if principal.Email != "" {
		emailValue = principal.Email
	}

	var phoneValue any
	if principal.Phone != "" {
		phoneValue = principal.Phone
	}

	stmt, args, err := r.builder.Insert(principalsTable).
		Columns(principalColumns...).
		Values(
			principal.ID,
			principal.Fullname,
			emailValue,
			phoneValue,
			principal.PasswordHash,
			principal.RoleID,
			principal.IsActive,
			principal.IsPrimary,
			attrs,
			principal.CreatedAt,
			principal.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert principal sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert principal: %w", err)
	}

	return nil
}

// GetByID retrieves a principal by identifier.
func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByIdentifier resolves a principal by email or phone depending on the
// active identification scheme.
func (r *PrincipalRepository) GetByIdentifier(ctx context.Context, scheme domain.IdentifierScheme, identifier string) (*domain.Principal, error) {
	column := "email"
	if scheme == domain.SchemePhone {
		column = "phone"
	}
	return r.getOne(ctx, squirrel.Eq{column: identifier})
}

// ExistsByAttribute reports whether any principal matches the supplied column
// or attribute-map field value. The key is caller-supplied, so the column
// branch only accepts names from the table's own column list.
func (r *PrincipalRepository) ExistsByAttribute(ctx context.Context, key, value string, inAttributes bool) (bool, error) {
	query := r.builder.Select("1").From(principalsTable).Limit(1)
	if inAttributes {
		query = query.Where("attributes ->> ? = ?", key, value)
	} else {
		if !isPrincipalColumn(key) {
			return false, fmt.Errorf("unknown principal column %q", key)
		}
		query = query.Where(squirrel.Eq{key: value})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query principal existence: %w", err)
	}

	return true, nil
}

// UpdatePassword overwrites the stored password hash.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, id, map[string]any{"password_hash": passwordHash})
}

// SetActive toggles the logical-delete flag.
func (r *PrincipalRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, map[string]any{"is_active": active})
}

// UpdateOTPCredential overwrites the OTP secret and creation timestamp inside
// the attributes record, invalidating any previously issued code.
func (r *PrincipalRepository) UpdateOTPCredential(ctx context.Context, id, secret string, createdAt time.Time) error {
	patch, err := json.Marshal(map[string]any{
		"otp_secret":     secret,
		"otp_created_at": createdAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal otp attributes: %w", err)
	}

	return r.patchAttributes(ctx, id, patch)
}

// BindDevice persists the device fingerprint plus login IP and timestamp.
func (r *PrincipalRepository) BindDevice(ctx context.Context, id, fingerprint, ip string, at time.Time) error {
	patch, err := json.Marshal(map[string]any{
		"device_fingerprint": fingerprint,
		"last_login_ip":      ip,
		"last_login_at":      at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal device attributes: %w", err)
	}

	return r.patchAttributes(ctx, id, patch)
}

// ClearDevice removes the bound fingerprint so the next login from any device
// succeeds.
func (r *PrincipalRepository) ClearDevice(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(principalsTable).
		Set("attributes", squirrel.Expr("attributes - 'device_fingerprint'")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear device sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear device binding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *PrincipalRepository) patchAttributes(ctx context.Context, id string, patch []byte) error {
	stmt, args, err := r.builder.Update(principalsTable).
		Set("attributes", squirrel.Expr("attributes || ?::jsonb", patch)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build patch attributes sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch principal attributes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *PrincipalRepository) update(ctx context.Context, id string, fields map[string]any) error {
	query := r.builder.Update(principalsTable).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id})
	for column, value := range fields {
		query = query.Set(column, value)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update principal sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *PrincipalRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Principal, error) {
	stmt, args, err := r.builder.Select(principalColumns...).
		From(principalsTable).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		principal domain.Principal
		email     sql.NullString
		phone     sql.NullString
		attrs     []byte
	)

	if err := row.Scan(
		&principal.ID,
		&principal.Fullname,
		&email,
		&phone,
		&principal.PasswordHash,
		&principal.RoleID,
		&principal.IsActive,
		&principal.IsPrimary,
		&attrs,
		&principal.CreatedAt,
		&principal.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}

	principal.Email = email.String
	principal.Phone = phone.String

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &principal.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal principal attributes: %w", err)
		}
	}

	return &principal, nil
}
