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

// AuthService orchestrates login, logout, refresh, password lifecycle, and
// token-backed authorization checks on top of the token, permission, device,
// and OTP services.
type AuthService struct {
	cfg        *config.AppConfig
	principals port.PrincipalRepository
	roles      port.RoleRepository
	tokens     *TokenService
	resolver   *PermissionResolver
	devices    *DeviceGuard
	otp        *OTPService
	validator  *security.PasswordValidator
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	principals port.PrincipalRepository,
	roles port.RoleRepository,
	tokens *TokenService,
	resolver *PermissionResolver,
	devices *DeviceGuard,
	otp *OTPService,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}

	service := &AuthService{
		cfg:        cfg,
		principals: principals,
		roles:      roles,
		tokens:     tokens,
		resolver:   resolver,
		devices:    devices,
		otp:        otp,
		validator:  validator,
		events:     events,
		logger:     log,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AuthService) scheme() domain.IdentifierScheme {
	return domain.IdentifierScheme(s.cfg.Auth.Scheme())
}

// LoginInput captures a credential login attempt.
type LoginInput struct {
	Identifier        string
	Password          string
	DeviceFingerprint string
	IP                string
}

// LoginResult carries the signed token pair and the subject snapshot the
// tokens embed.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Subject      domain.TokenSubject
}

// Login authenticates a principal under the active identification scheme.
// Failure ordering is fixed: unknown identifier, then inactive account, then
// wrong password, then device conflict.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(input.Identifier)
	if identifier == "" || input.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	principal, err := s.principals.GetByIdentifier(ctx, s.scheme(), identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	if !principal.IsActive {
		return nil, domain.ErrUserInactive
	}

	ok, err := security.VerifyPassword(input.Password, principal.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login failed on password",
			zap.String("identifier", s.maskIdentifier(identifier)),
		)
		return nil, domain.ErrInvalidPassword
	}

	if err := s.devices.BindOrReject(ctx, principal, input.DeviceFingerprint, input.IP); err != nil {
		return nil, err
	}

	role, err := s.loadRole(ctx, principal.RoleID)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccess(*principal, role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(*principal, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded",
		zap.String("principal_id", principal.ID),
		zap.String("ip", logger.MaskIP(input.IP)),
	)

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Subject:      domain.NewTokenSubject(*principal, role),
	}, nil
}

// Logout revokes the presented token, clears the device binding, drops the
// principal's cached authorization decisions, and emits an audit event.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.Decode(rawToken)
	if err != nil {
		return err
	}

	if err := s.tokens.Revoke(ctx, rawToken); err != nil {
		return err
	}

	if err := s.devices.Clear(ctx, claims.Subject.ID); err != nil {
		return err
	}

	if err := s.resolver.InvalidatePrincipal(ctx, claims.Subject.ID); err != nil {
		s.logger.Warn("cache invalidation on logout failed", zap.Error(err))
	}

	event := domain.SessionRevokedEvent{
		EventID:     uuid.NewString(),
		PrincipalID: claims.Subject.ID,
		Reason:      "logout",
		RevokedAt:   s.now(),
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("session revoked event failed", zap.Error(err))
	}

	s.logger.Info("logout completed", zap.String("principal_id", claims.Subject.ID))

	return nil
}

// Refresh rotates a refresh token into a fresh pair. The old refresh token
// is revoked so it cannot mint twice.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.VerifyType(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	principal, err := s.principals.GetByID(ctx, claims.Subject.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}

	role, err := s.loadRole(ctx, principal.RoleID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}

	// The pair being replaced may still sit in the decision cache as live.
	if err := s.resolver.InvalidatePrincipal(ctx, claims.Subject.ID); err != nil {
		s.logger.Warn("cache invalidation on refresh failed", zap.Error(err))
	}

	access, err := s.tokens.IssueAccess(*principal, role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(*principal, role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Subject:      domain.NewTokenSubject(*principal, role),
	}, nil
}

// CheckAccess verifies the token and resolves whether its subject holds any
// of the required permission codes.
func (s *AuthService) CheckAccess(ctx context.Context, rawToken string, required []string) (bool, error) {
	claims, err := s.tokens.Verify(ctx, rawToken)
	if err != nil {
		return false, err
	}

	return s.resolver.CheckPermissions(ctx, claims.Subject, required)
}

// ValidateAccessToken verifies liveness and returns the embedded subject.
func (s *AuthService) ValidateAccessToken(ctx context.Context, rawToken string) (*domain.TokenSubject, error) {
	claims, err := s.tokens.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	subject := claims.Subject
	return &subject, nil
}

// ChangePasswordInput captures a password change request.
type ChangePasswordInput struct {
	PrincipalID     string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword rotates the principal's password after checking the current
// one, and revokes cached authorization state so the next check sees the
// fresh record.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	principal, err := s.principals.GetByID(ctx, input.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("load principal: %w", err)
	}

	ok, err := security.VerifyPassword(input.CurrentPassword, principal.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.ErrInvalidPassword
	}

	if input.NewPassword != input.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}

	if err := s.validator.Validate(input.NewPassword); err != nil {
		return passwordPolicyError(err)
	}

	hash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.principals.UpdatePassword(ctx, principal.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password changed", zap.String("principal_id", principal.ID))

	return nil
}

// RequestPasswordReset starts the reset flow for the identifier under the
// active scheme. Email deployments receive a signed reset token through the
// e-mail collaborator; phone deployments receive a fresh OTP code.
func (s *AuthService) RequestPasswordReset(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)

	principal, err := s.principals.GetByIdentifier(ctx, s.scheme(), identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lookup principal: %w", err)
	}

	if s.scheme() == domain.SchemePhone {
		return s.otp.IssueCode(ctx, principal)
	}

	role, err := s.loadRole(ctx, principal.RoleID)
	if err != nil {
		return err
	}

	resetToken, err := s.tokens.IssueReset(*principal, role)
	if err != nil {
		return err
	}

	now := s.now()
	event := domain.PasswordResetRequestedEvent{
		EventID:     uuid.NewString(),
		PrincipalID: principal.ID,
		Identifier:  identifier,
		ResetToken:  resetToken,
		ExpiresAt:   now.Add(s.cfg.JWT.ResetTokenTTL),
		RequestedAt: now,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		return fmt.Errorf("publish reset event: %w", err)
	}

	return nil
}

// CompletePasswordResetInput carries the proof of identity for a reset:
// a reset token under the email scheme, an identifier plus OTP code under
// the phone scheme.
type CompletePasswordResetInput struct {
	ResetToken      string
	Identifier      string
	Code            string
	NewPassword     string
	ConfirmPassword string
}

// CompletePasswordReset finishes the reset flow and writes the new password.
// The consumed proof (reset token or OTP code) cannot be replayed.
func (s *AuthService) CompletePasswordReset(ctx context.Context, input CompletePasswordResetInput) error {
	if input.NewPassword != input.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	if err := s.validator.Validate(input.NewPassword); err != nil {
		return passwordPolicyError(err)
	}

	var principal *domain.Principal

	if s.scheme() == domain.SchemePhone {
		found, err := s.otp.CheckCode(ctx, input.Identifier, input.Code)
		if err != nil {
			return err
		}
		principal = found

		// Burn the code by rotating the secret without publishing.
		rotated, err := security.GenerateSecret()
		if err != nil {
			return fmt.Errorf("rotate otp secret: %w", err)
		}
		if err := s.principals.UpdateOTPCredential(ctx, principal.ID, rotated, s.now()); err != nil {
			return fmt.Errorf("rotate otp secret: %w", err)
		}
	} else {
		claims, err := s.tokens.VerifyType(ctx, input.ResetToken, TokenTypeReset)
		if err != nil {
			return err
		}

		found, err := s.principals.GetByID(ctx, claims.Subject.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("load principal: %w", err)
		}
		principal = found

		if err := s.tokens.Revoke(ctx, input.ResetToken); err != nil {
			return err
		}
	}

	hash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.principals.UpdatePassword(ctx, principal.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset completed", zap.String("principal_id", principal.ID))

	return nil
}

// Columns sibling services may probe through the existence endpoint. The key
// reaches the SQL layer, so anything outside this set is rejected up front.
var probeableColumns = map[string]struct{}{
	"id":         {},
	"fullname":   {},
	"email":      {},
	"phone":      {},
	"role_id":    {},
	"is_active":  {},
	"is_primary": {},
}

// CheckUserAttribute reports whether any principal matches the column or
// attribute value. Used by sibling services as an existence probe.
func (s *AuthService) CheckUserAttribute(ctx context.Context, key, value string, inAttributes bool) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, domain.ErrInvalidCredentials.WithMessage("attribute key is required.")
	}
	if !inAttributes {
		if _, ok := probeableColumns[key]; !ok {
			return false, domain.ErrInvalidCredentials.WithMessage("Unknown attribute key.")
		}
	}

	exists, err := s.principals.ExistsByAttribute(ctx, key, value, inAttributes)
	if err != nil {
		return false, fmt.Errorf("check principal attribute: %w", err)
	}

	return exists, nil
}

// SetPrincipalActive toggles the logical-delete flag and drops the
// principal's cached authorization decisions.
func (s *AuthService) SetPrincipalActive(ctx context.Context, principalID string, active bool) error {
	if err := s.principals.SetActive(ctx, principalID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("set principal active: %w", err)
	}

	if err := s.resolver.InvalidatePrincipal(ctx, principalID); err != nil {
		s.logger.Warn("cache invalidation on activation change failed", zap.Error(err))
	}

	return nil
}

// loadRole expands the principal's role. A principal without an assigned
// role carries an empty snapshot and resolves no permissions.
func (s *AuthService) loadRole(ctx context.Context, roleID string) (domain.Role, error) {
	if roleID == "" {
		return domain.Role{}, nil
	}

	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Role{}, domain.ErrRoleNotFound
		}
		return domain.Role{}, fmt.Errorf("load role: %w", err)
	}

	return *role, nil
}

func (s *AuthService) maskIdentifier(identifier string) string {
	if s.scheme() == domain.SchemePhone {
		return logger.MaskPhone(identifier)
	}
	return logger.MaskEmail(identifier)
}

// passwordPolicyError converts a policy violation into the invalid-password
// taxonomy member so callers answer 400 with the rule's message rather than
// an opaque server error.
func passwordPolicyError(err error) error {
	var violation *security.PasswordValidationError
	if errors.As(err, &violation) {
		return domain.ErrInvalidPassword.WithMessage(violation.Message)
	}
	return fmt.Errorf("validate password: %w", err)
}
