package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

// DeviceGuard enforces the single-active-device policy. A principal with a
// bound fingerprint rejects logins from any other device until logout clears
// the binding. Two racing first logins resolve last-writer-wins; the loser's
// tokens die at the next revocation or verification check.
type DeviceGuard struct {
	principals port.PrincipalRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewDeviceGuard constructs a guard over the principal repository.
func NewDeviceGuard(principals port.PrincipalRepository, log *zap.Logger) *DeviceGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceGuard{
		principals: principals,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the guard clock for deterministic tests.
func (g *DeviceGuard) WithClock(clock func() time.Time) {
	if clock != nil {
		g.now = clock
	}
}

// BindOrReject admits the login when the principal has no binding or the
// fingerprint matches the existing one, persisting fingerprint, IP, and
// timestamp. A different bound fingerprint rejects the attempt. A client
// that sends no fingerprint is admitted without a binding.
func (g *DeviceGuard) BindOrReject(ctx context.Context, principal *domain.Principal, fingerprint, ip string) error {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil
	}

	bound := principal.Attributes.DeviceFingerprint
	if bound != "" && bound != fingerprint {
		g.logger.Info("login rejected on device conflict",
			zap.String("principal_id", principal.ID),
			zap.String("ip", logger.MaskIP(ip)),
		)
		return domain.ErrAlreadyLoggedIn
	}

	at := g.now()
	if err := g.principals.BindDevice(ctx, principal.ID, fingerprint, ip, at); err != nil {
		return fmt.Errorf("bind device: %w", err)
	}

	principal.Attributes.DeviceFingerprint = fingerprint
	principal.Attributes.LastLoginIP = ip
	principal.Attributes.LastLoginAt = &at

	return nil
}

// Clear removes the binding so the next login from any device succeeds.
// A missing principal is treated as already cleared.
func (g *DeviceGuard) Clear(ctx context.Context, principalID string) error {
	if err := g.principals.ClearDevice(ctx, principalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("clear device binding: %w", err)
	}
	return nil
}
