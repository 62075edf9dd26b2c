package port

import (
	"context"
	"time"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
)

// PrincipalRepository persists principal identities.
type PrincipalRepository interface {
	Create(ctx context.Context, principal domain.Principal) error
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	// GetByIdentifier resolves a principal by the value of the active
	// identification scheme (email or phone).
	GetByIdentifier(ctx context.Context, scheme domain.IdentifierScheme, identifier string) (*domain.Principal, error)
	// ExistsByAttribute reports whether any principal matches the supplied
	// column or attribute field value.
	ExistsByAttribute(ctx context.Context, key, value string, inAttributes bool) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	// UpdateOTPCredential overwrites the stored OTP secret and creation
	// timestamp, invalidating any previously issued code.
	UpdateOTPCredential(ctx context.Context, id, secret string, createdAt time.Time) error
	// BindDevice persists the device fingerprint plus login IP/timestamp.
	BindDevice(ctx context.Context, id, fingerprint, ip string, at time.Time) error
	// ClearDevice removes the bound fingerprint so any device may log in next.
	ClearDevice(ctx context.Context, id string) error
}
