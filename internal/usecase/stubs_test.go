package usecase

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "auth-microservice", Env: "test"},
		Auth: config.AuthSettings{
			RegisterWithEmail: true,
			DefaultAdminRole:  "super admin",
		},
		JWT: config.JWTSettings{
			Secret:          "unit-test-secret",
			Algorithm:       "HS256",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			ResetTokenTTL:   15 * time.Minute,
		},
		OTP: config.OTPSettings{
			Digits:   6,
			Interval: 30 * time.Second,
			Validity: 5 * time.Minute,
		},
		Cache: config.CacheSettings{TTL: time.Minute, KeyPrefix: "auth"},
	}
}

type stubPrincipals struct {
	mu   sync.Mutex
	byID map[string]*domain.Principal

	createErr error
	getErr    error
}

func newStubPrincipals(principals ...domain.Principal) *stubPrincipals {
	s := &stubPrincipals{byID: make(map[string]*domain.Principal)}
	for i := range principals {
		copied := principals[i]
		s.byID[copied.ID] = &copied
	}
	return s
}

func (s *stubPrincipals) Create(_ context.Context, principal domain.Principal) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := principal
	s.byID[copied.ID] = &copied
	return nil
}

func (s *stubPrincipals) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *principal
	return &copied, nil
}

func (s *stubPrincipals) GetByIdentifier(_ context.Context, scheme domain.IdentifierScheme, identifier string) (*domain.Principal, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, principal := range s.byID {
		if principal.Identifier(scheme) == identifier {
			copied := *principal
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubPrincipals) ExistsByAttribute(_ context.Context, key, value string, inAttributes bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, principal := range s.byID {
		if inAttributes {
			switch key {
			case "device_fingerprint":
				if principal.Attributes.DeviceFingerprint == value {
					return true, nil
				}
			case "last_login_ip":
				if principal.Attributes.LastLoginIP == value {
					return true, nil
				}
			}
			continue
		}
		switch key {
		case "email":
			if principal.Email == value {
				return true, nil
			}
		case "phone":
			if principal.Phone == value {
				return true, nil
			}
		case "fullname":
			if principal.Fullname == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *stubPrincipals) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.PasswordHash = passwordHash
	return nil
}

func (s *stubPrincipals) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.IsActive = active
	return nil
}

func (s *stubPrincipals) UpdateOTPCredential(_ context.Context, id, secret string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.Attributes.OTPSecret = secret
	principal.Attributes.OTPCreatedAt = &createdAt
	return nil
}

func (s *stubPrincipals) BindDevice(_ context.Context, id, fingerprint, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.Attributes.DeviceFingerprint = fingerprint
	principal.Attributes.LastLoginIP = ip
	principal.Attributes.LastLoginAt = &at
	return nil
}

func (s *stubPrincipals) ClearDevice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	principal.Attributes.DeviceFingerprint = ""
	return nil
}

type stubRoles struct {
	mu   sync.Mutex
	byID map[string]*domain.Role
}

func newStubRoles(roles ...domain.Role) *stubRoles {
	s := &stubRoles{byID: make(map[string]*domain.Role)}
	for i := range roles {
		copied := roles[i]
		s.byID[copied.ID] = &copied
	}
	return s
}

func (s *stubRoles) Create(_ context.Context, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Slug == role.Slug {
			return repository.ErrConflict
		}
	}
	copied := role
	s.byID[copied.ID] = &copied
	return nil
}

func (s *stubRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (s *stubRoles) GetBySlug(_ context.Context, slugValue string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.byID {
		if role.Slug == slugValue {
			copied := *role
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubRoles) SetPermissions(_ context.Context, id string, groups []domain.PermissionGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	role.Permissions = groups
	return nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
	addErr  error
	getErr  error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: make(map[string]bool)}
}

func (s *memRevocations) Add(_ context.Context, token string) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
	return nil
}

func (s *memRevocations) Contains(_ context.Context, token string) (bool, error) {
	if s.getErr != nil {
		return false, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token], nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]bool
	gets    int
	hits    int
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]bool)}
}

func (c *memCache) Get(_ context.Context, key string) (bool, bool, error) {
	if c.getErr != nil {
		return false, false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	value, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return value, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value bool, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

type recordedEvents struct {
	mu         sync.Mutex
	registered []domain.PrincipalRegisteredEvent
	otps       []domain.OTPIssuedEvent
	resets     []domain.PasswordResetRequestedEvent
	revoked    []domain.SessionRevokedEvent
}

func (r *recordedEvents) PublishPrincipalRegistered(_ context.Context, event domain.PrincipalRegisteredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, event)
	return nil
}

func (r *recordedEvents) PublishOTPIssued(_ context.Context, event domain.OTPIssuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps = append(r.otps, event)
	return nil
}

func (r *recordedEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, event)
	return nil
}

func (r *recordedEvents) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, event)
	return nil
}
