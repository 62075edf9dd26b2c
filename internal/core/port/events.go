package port

import (
	"context"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
)

// EventPublisher delivers outbound notification and audit events. E-mail and
// SMS delivery are external collaborators fed by these events; the service
// never renders or sends messages itself.
type EventPublisher interface {
	PublishPrincipalRegistered(ctx context.Context, event domain.PrincipalRegisteredEvent) error
	PublishOTPIssued(ctx context.Context, event domain.OTPIssuedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
