package domain

import "time"

// IdentifierScheme selects how principals are identified system-wide.
// Exactly one scheme is active per deployment.
type IdentifierScheme string

const (
	SchemeEmail IdentifierScheme = "email"
	SchemePhone IdentifierScheme = "phone"
)

// Valid reports whether the scheme is one of the supported values.
func (s IdentifierScheme) Valid() bool {
	return s == SchemeEmail || s == SchemePhone
}

// ProfileAttributes is the structured sub-record carried by every principal.
// All fields are optional; an empty OTPSecret means no verification is pending.
type ProfileAttributes struct {
	OTPSecret         string     `json:"otp_secret,omitempty"`
	OTPCreatedAt      *time.Time `json:"otp_created_at,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	LastLoginIP       string     `json:"last_login_ip,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}

// Principal mirrors the persisted representation in the principals table.
type Principal struct {
	ID           string
	Fullname     string
	Email        string
	Phone        string
	PasswordHash string
	RoleID       string
	IsActive     bool
	IsPrimary    bool
	Attributes   ProfileAttributes
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identifier returns the value identifying the principal under the active scheme.
func (p Principal) Identifier(scheme IdentifierScheme) string {
	if scheme == SchemePhone {
		return p.Phone
	}
	return p.Email
}

// Sanitized returns a copy stripped of the password hash and OTP internals,
// suitable for embedding into token subjects and API responses.
func (p Principal) Sanitized() Principal {
	clean := p
	clean.PasswordHash = ""
	clean.Attributes.OTPSecret = ""
	clean.Attributes.OTPCreatedAt = nil
	return clean
}
