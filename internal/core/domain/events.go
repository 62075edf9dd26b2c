package domain

import "time"

// PrincipalRegisteredEvent is emitted after a successful signup.
type PrincipalRegisteredEvent struct {
	EventID      string
	PrincipalID  string
	Identifier   string
	Scheme       IdentifierScheme
	RegisteredAt time.Time
}

// OTPIssuedEvent carries a freshly issued one-time code to the SMS collaborator.
type OTPIssuedEvent struct {
	EventID     string
	PrincipalID string
	Phone       string
	Code        string
	ExpiresAt   time.Time
	IssuedAt    time.Time
}

// PasswordResetRequestedEvent carries the reset token to the e-mail collaborator.
type PasswordResetRequestedEvent struct {
	EventID     string
	PrincipalID string
	Identifier  string
	ResetToken  string
	ExpiresAt   time.Time
	RequestedAt time.Time
}

// SessionRevokedEvent is emitted on logout for audit consumers.
type SessionRevokedEvent struct {
	EventID     string
	PrincipalID string
	Reason      string
	RevokedAt   time.Time
}
