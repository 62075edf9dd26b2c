package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishPrincipalRegistered publishes auth.principal.registered events.
func (p *EventPublisher) PublishPrincipalRegistered(ctx context.Context, event domain.PrincipalRegisteredEvent) error {
	payload := struct {
		PrincipalID  string    `json:"principal_id"`
		Identifier   string    `json:"identifier"`
		Scheme       string    `json:"scheme"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		PrincipalID:  event.PrincipalID,
		Identifier:   event.Identifier,
		Scheme:       string(event.Scheme),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.principal.registered", event.PrincipalID, event.RegisteredAt, payload)
}

// PublishOTPIssued publishes auth.otp.issued events consumed by the SMS
// collaborator. The code travels in the payload; the broker link is assumed
// private to the platform.
func (p *EventPublisher) PublishOTPIssued(ctx context.Context, event domain.OTPIssuedEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		Phone       string    `json:"phonenumber"`
		Code        string    `json:"code"`
		ExpiresAt   time.Time `json:"expires_at"`
		IssuedAt    time.Time `json:"issued_at"`
	}{
		PrincipalID: event.PrincipalID,
		Phone:       event.Phone,
		Code:        event.Code,
		ExpiresAt:   event.ExpiresAt.UTC(),
		IssuedAt:    event.IssuedAt.UTC(),
	}

	p.logger.Debug("otp event queued", zap.String("phone", logger.MaskPhone(event.Phone)))

	return p.publish(ctx, event.EventID, "auth.otp.issued", event.PrincipalID, event.IssuedAt, payload)
}

// PublishPasswordResetRequested publishes auth.password.reset_requested events
// consumed by the e-mail collaborator.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		Identifier  string    `json:"identifier"`
		ResetToken  string    `json:"reset_token"`
		ExpiresAt   time.Time `json:"expires_at"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		PrincipalID: event.PrincipalID,
		Identifier:  event.Identifier,
		ResetToken:  event.ResetToken,
		ExpiresAt:   event.ExpiresAt.UTC(),
		RequestedAt: event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.password.reset_requested", event.PrincipalID, event.RequestedAt, payload)
}

// PublishSessionRevoked publishes auth.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		PrincipalID string    `json:"principal_id"`
		Reason      string    `json:"reason"`
		RevokedAt   time.Time `json:"revoked_at"`
	}{
		PrincipalID: event.PrincipalID,
		Reason:      event.Reason,
		RevokedAt:   event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.session.revoked", event.PrincipalID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
