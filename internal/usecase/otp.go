package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
	"github.com/flavien-hugs/auth-microservice/internal/infra/security"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

// OTPService drives the phone signup lifecycle: a signup creates an inactive
// principal holding an OTP secret, verification activates it, resend
// overwrites the pending secret. Verification of an already-active principal
// is idempotent.
type OTPService struct {
	cfg        *config.AppConfig
	principals port.PrincipalRepository
	generator  *security.OTPGenerator
	validator  *security.PasswordValidator
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewOTPService constructs an OTPService instance.
func NewOTPService(
	cfg *config.AppConfig,
	principals port.PrincipalRepository,
	generator *security.OTPGenerator,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *OTPService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &OTPService{
		cfg:        cfg,
		principals: principals,
		generator:  generator,
		validator:  validator,
		events:     events,
		logger:     log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *OTPService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SignupInput captures the phone signup payload.
type SignupInput struct {
	Phone    string
	Fullname string
	Password string
}

// Signup registers an inactive principal and issues its first code. A phone
// already held by an active principal is rejected outright; a disabled
// principal points the caller at account recovery instead of re-signup.
func (s *OTPService) Signup(ctx context.Context, input SignupInput) (*domain.Principal, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, domain.ErrInvalidCredentials
	}

	existing, err := s.principals.GetByIdentifier(ctx, domain.SchemePhone, phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup principal by phone: %w", err)
	}
	if existing != nil {
		if existing.IsActive {
			return nil, domain.ErrPhoneTaken
		}
		return nil, domain.ErrAccountDisabled
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return nil, passwordPolicyError(err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	secret, err := security.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate otp secret: %w", err)
	}

	now := s.now()
	principal := domain.Principal{
		ID:           uuid.NewString(),
		Fullname:     strings.TrimSpace(input.Fullname),
		Phone:        phone,
		PasswordHash: hash,
		IsActive:     false,
		Attributes: domain.ProfileAttributes{
			OTPSecret:    secret,
			OTPCreatedAt: &now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.principals.Create(ctx, principal); err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}

	registered := domain.PrincipalRegisteredEvent{
		EventID:      uuid.NewString(),
		PrincipalID:  principal.ID,
		Identifier:   phone,
		Scheme:       domain.SchemePhone,
		RegisteredAt: now,
	}
	if err := s.events.PublishPrincipalRegistered(ctx, registered); err != nil {
		s.logger.Warn("publish principal registered failed", zap.Error(err))
	}

	if err := s.publishCode(ctx, principal.ID, phone, secret, now); err != nil {
		return nil, err
	}

	s.logger.Info("principal signed up",
		zap.String("principal_id", principal.ID),
		zap.String("phone", logger.MaskPhone(phone)),
	)

	return &principal, nil
}

// VerifyOTP checks the submitted code against the pending secret and
// activates the principal. Verifying an already-active principal succeeds
// without touching state.
func (s *OTPService) VerifyOTP(ctx context.Context, phone, code string) error {
	principal, err := s.lookup(ctx, phone)
	if err != nil {
		return err
	}

	if principal.IsActive {
		return nil
	}

	if err := s.checkCode(*principal, code); err != nil {
		return err
	}

	if err := s.principals.SetActive(ctx, principal.ID, true); err != nil {
		return fmt.Errorf("activate principal: %w", err)
	}

	s.logger.Info("principal activated", zap.String("principal_id", principal.ID))

	return nil
}

// ResendOTP overwrites the pending secret with a fresh one and re-issues the
// code. Resending for an already-active principal is a no-op.
func (s *OTPService) ResendOTP(ctx context.Context, phone string) error {
	principal, err := s.lookup(ctx, phone)
	if err != nil {
		return err
	}

	if principal.IsActive {
		return nil
	}

	return s.IssueCode(ctx, principal)
}

// IssueCode rotates the principal's OTP secret and publishes the fresh code.
// Also used by the phone-scheme password reset flow, where the principal is
// active.
func (s *OTPService) IssueCode(ctx context.Context, principal *domain.Principal) error {
	secret, err := security.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generate otp secret: %w", err)
	}

	now := s.now()
	if err := s.principals.UpdateOTPCredential(ctx, principal.ID, secret, now); err != nil {
		return fmt.Errorf("store otp secret: %w", err)
	}

	principal.Attributes.OTPSecret = secret
	principal.Attributes.OTPCreatedAt = &now

	return s.publishCode(ctx, principal.ID, principal.Phone, secret, now)
}

// CheckCode validates the submitted code against the principal's pending
// secret without changing activation state.
func (s *OTPService) CheckCode(ctx context.Context, phone, code string) (*domain.Principal, error) {
	principal, err := s.lookup(ctx, phone)
	if err != nil {
		return nil, err
	}

	if err := s.checkCode(*principal, code); err != nil {
		return nil, err
	}

	return principal, nil
}

func (s *OTPService) checkCode(principal domain.Principal, code string) error {
	if principal.Attributes.OTPSecret == "" {
		return domain.ErrOTPNotValid
	}

	validity := s.cfg.OTP.Validity
	if validity <= 0 {
		validity = 5 * time.Minute
	}
	createdAt := principal.Attributes.OTPCreatedAt
	if createdAt == nil || s.now().Sub(*createdAt) > validity {
		return domain.ErrOTPExpired
	}

	ok, err := s.generator.Verify(principal.Attributes.OTPSecret, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("verify otp code: %w", err)
	}
	if !ok {
		return domain.ErrOTPNotValid
	}

	return nil
}

func (s *OTPService) lookup(ctx context.Context, phone string) (*domain.Principal, error) {
	principal, err := s.principals.GetByIdentifier(ctx, domain.SchemePhone, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup principal by phone: %w", err)
	}
	return principal, nil
}

func (s *OTPService) publishCode(ctx context.Context, principalID, phone, secret string, issuedAt time.Time) error {
	code, err := s.generator.Code(secret)
	if err != nil {
		return fmt.Errorf("derive otp code: %w", err)
	}

	validity := s.cfg.OTP.Validity
	if validity <= 0 {
		validity = 5 * time.Minute
	}

	// The advertised expiry is the earlier of the validity deadline and the
	// end of the generator window the code was derived in.
	expiresAt := issuedAt.Add(validity)
	if boundary := s.generator.ExpiresAt(issuedAt); boundary.Before(expiresAt) {
		expiresAt = boundary
	}

	event := domain.OTPIssuedEvent{
		EventID:     uuid.NewString(),
		PrincipalID: principalID,
		Phone:       phone,
		Code:        code,
		ExpiresAt:   expiresAt,
		IssuedAt:    issuedAt,
	}

	if err := s.events.PublishOTPIssued(ctx, event); err != nil {
		return fmt.Errorf("publish otp event: %w", err)
	}

	return nil
}
