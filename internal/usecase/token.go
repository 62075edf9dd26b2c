package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/infra/security"
)

// Token type discriminators carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeReset   = "reset"
)

// AccessClaims is the claim set carried by every token the service signs.
// The subject object is decoded by sibling services without a callback, so
// its shape follows domain.TokenSubject exactly.
type AccessClaims struct {
	Subject domain.TokenSubject `json:"subject"`
	Type    string              `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs, decodes, verifies, and revokes session tokens.
// Verification is stateless apart from the revocation store: the subject
// snapshot embedded at issuance answers the active-account question, and
// outcomes are cached in the shared decision cache.
type TokenService struct {
	cfg         *config.AppConfig
	signer      *security.Signer
	revocations port.RevocationStore
	cache       port.PermissionCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewTokenService constructs a TokenService instance. The cache may be nil;
// verification then always consults the revocation store.
func NewTokenService(
	cfg *config.AppConfig,
	signer *security.Signer,
	revocations port.RevocationStore,
	cache port.PermissionCache,
	logger *zap.Logger,
) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	service := &TokenService{
		cfg:         cfg,
		signer:      signer,
		revocations: revocations,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// IssueAccess signs a short-lived access token for the principal.
func (s *TokenService) IssueAccess(principal domain.Principal, role domain.Role) (string, error) {
	return s.issue(principal, role, TokenTypeAccess, s.cfg.JWT.AccessTokenTTL)
}

// IssueRefresh signs a long-lived refresh token for the principal.
func (s *TokenService) IssueRefresh(principal domain.Principal, role domain.Role) (string, error) {
	return s.issue(principal, role, TokenTypeRefresh, s.cfg.JWT.RefreshTokenTTL)
}

// IssueReset signs a short-lived password reset token.
func (s *TokenService) IssueReset(principal domain.Principal, role domain.Role) (string, error) {
	return s.issue(principal, role, TokenTypeReset, s.cfg.JWT.ResetTokenTTL)
}

func (s *TokenService) issue(principal domain.Principal, role domain.Role, tokenType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	now := s.now()
	claims := AccessClaims{
		Subject: domain.NewTokenSubject(principal, role),
		Type:    tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti is the principal id. A fresh login therefore
			// supersedes older tokens of the same principal once the old
			// ones land in the revocation store.
			ID:        principal.ID,
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := s.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Decode verifies the signature and unmarshals the claims without touching
// revocation state or expiry. Any signature, format, or algorithm problem
// maps to the invalid-token taxonomy member.
func (s *TokenService) Decode(token string) (*AccessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrMissingToken
	}

	var claims AccessClaims
	if err := s.signer.Parse(token, &claims); err != nil {
		return nil, domain.ErrInvalidAccessToken
	}

	if claims.Subject.ID == "" {
		return nil, domain.ErrInvalidAccessToken
	}

	return &claims, nil
}

// Verify performs the full liveness check without a principal lookup: the
// embedded subject carries the active flag, so a deactivated account stops
// minting tokens on the next login or refresh instead of costing a store
// round-trip on every request. A token that decodes but fails a liveness
// check reports as expired rather than invalid, so clients re-authenticate
// instead of treating it as corrupt. Outcomes land in the subject's decision
// keyspace and are dropped eagerly by logout, refresh, and activation
// changes.
func (s *TokenService) Verify(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return nil, err
	}

	key := s.livenessKey(claims.Subject.ID, token)
	if s.cache != nil {
		if live, found, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("token liveness cache read failed", zap.Error(err))
		} else if found {
			if !live {
				return nil, domain.ErrExpiredAccessToken
			}
			return claims, nil
		}
	}

	revoked, err := s.revocations.Contains(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}

	live := !revoked &&
		claims.Subject.IsActive &&
		claims.ExpiresAt != nil &&
		claims.ExpiresAt.After(s.now())

	if s.cache != nil && claims.ExpiresAt != nil {
		ttl := s.cacheTTL
		if until := claims.ExpiresAt.Sub(s.now()); until < ttl {
			ttl = until
		}
		if ttl > 0 {
			if err := s.cache.Set(ctx, key, live, ttl); err != nil {
				s.logger.Warn("token liveness cache write failed", zap.Error(err))
			}
		}
	}

	if !live {
		return nil, domain.ErrExpiredAccessToken
	}

	return claims, nil
}

func (s *TokenService) livenessKey(principalID, token string) string {
	return fmt.Sprintf("%s:%s:token:%s", checkAccessKeyspace, principalID, security.HashToken(token))
}

// VerifyType runs Verify and additionally pins the expected token type.
func (s *TokenService) VerifyType(ctx context.Context, token, tokenType string) (*AccessClaims, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, domain.ErrInvalidAccessToken
	}
	return claims, nil
}

// Revoke blacklists the raw token for the remainder of its natural lifetime
// and drops its cached liveness entry so the blacklist is consulted on the
// next verification.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.revocations.Add(ctx, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	if s.cache != nil {
		if claims, err := s.Decode(token); err == nil {
			if err := s.cache.Invalidate(ctx, s.livenessKey(claims.Subject.ID, token)); err != nil {
				s.logger.Warn("drop cached token liveness failed", zap.Error(err))
			}
		}
	}

	return nil
}
