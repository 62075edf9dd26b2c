package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishPrincipalRegistered logs auth.principal.registered events.
func (p *StubPublisher) PublishPrincipalRegistered(_ context.Context, event domain.PrincipalRegisteredEvent) error {
	payload := map[string]any{
		"principal_id":  event.PrincipalID,
		"identifier":    event.Identifier,
		"scheme":        string(event.Scheme),
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("auth.principal.registered", event.PrincipalID, event.RegisteredAt, payload)
	return nil
}

// PublishOTPIssued logs auth.otp.issued events. The code itself is omitted so
// development logs never carry live credentials.
func (p *StubPublisher) PublishOTPIssued(_ context.Context, event domain.OTPIssuedEvent) error {
	payload := map[string]any{
		"principal_id": event.PrincipalID,
		"phonenumber":  logger.MaskPhone(event.Phone),
		"expires_at":   event.ExpiresAt,
		"issued_at":    event.IssuedAt,
	}
	p.logEvent("auth.otp.issued", event.PrincipalID, event.IssuedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs auth.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"principal_id": event.PrincipalID,
		"identifier":   event.Identifier,
		"expires_at":   event.ExpiresAt,
		"requested_at": event.RequestedAt,
	}
	p.logEvent("auth.password.reset_requested", event.PrincipalID, event.RequestedAt, payload)
	return nil
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"principal_id": event.PrincipalID,
		"reason":       event.Reason,
		"revoked_at":   event.RevokedAt,
	}
	p.logEvent("auth.session.revoked", event.PrincipalID, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
