package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/infra/security"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
	httproutes "github.com/flavien-hugs/auth-microservice/internal/transport/http/routes"
	"github.com/flavien-hugs/auth-microservice/internal/usecase"
)

type memPrincipals struct {
	mu   sync.Mutex
	byID map[string]*domain.Principal
}

func (s *memPrincipals) Create(_ context.Context, principal domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := principal
	s.byID[copied.ID] = &copied
	return nil
}

func (s *memPrincipals) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *principal
	return &copied, nil
}

func (s *memPrincipals) GetByIdentifier(_ context.Context, scheme domain.IdentifierScheme, identifier string) (*domain.Principal, error) {
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

func (s *memPrincipals) ExistsByAttribute(_ context.Context, key, value string, _ bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, principal := range s.byID {
		if key == "email" && principal.Email == value {
			return true, nil
		}
		if key == "phone" && principal.Phone == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *memPrincipals) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.mutate(id, func(p *domain.Principal) { p.PasswordHash = passwordHash })
}

func (s *memPrincipals) SetActive(_ context.Context, id string, active bool) error {
	return s.mutate(id, func(p *domain.Principal) { p.IsActive = active })
}

func (s *memPrincipals) UpdateOTPCredential(_ context.Context, id, secret string, createdAt time.Time) error {
	return s.mutate(id, func(p *domain.Principal) {
		p.Attributes.OTPSecret = secret
		p.Attributes.OTPCreatedAt = &createdAt
	})
}

func (s *memPrincipals) BindDevice(_ context.Context, id, fingerprint, ip string, at time.Time) error {
	return s.mutate(id, func(p *domain.Principal) {
		p.Attributes.DeviceFingerprint = fingerprint
		p.Attributes.LastLoginIP = ip
		p.Attributes.LastLoginAt = &at
	})
}

func (s *memPrincipals) ClearDevice(_ context.Context, id string) error {
	return s.mutate(id, func(p *domain.Principal) { p.Attributes.DeviceFingerprint = "" })
}

func (s *memPrincipals) mutate(id string, fn func(*domain.Principal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	principal, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(principal)
	return nil
}

type memRoles struct {
	mu   sync.Mutex
	byID map[string]*domain.Role
}

func (s *memRoles) Create(_ context.Context, role domain.Role) error {
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

func (s *memRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (s *memRoles) GetBySlug(_ context.Context, slugValue string) (*domain.Role, error) {
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

func (s *memRoles) SetPermissions(_ context.Context, id string, groups []domain.PermissionGroup) error {
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
}

func (s *memRevocations) Add(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
	return nil
}

func (s *memRevocations) Contains(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token], nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]bool
}

func (c *memCache) Get(_ context.Context, key string) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
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

type noopEvents struct{}

func (noopEvents) PublishPrincipalRegistered(context.Context, domain.PrincipalRegisteredEvent) error {
	return nil
}
func (noopEvents) PublishOTPIssued(context.Context, domain.OTPIssuedEvent) error { return nil }
func (noopEvents) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	return nil
}
func (noopEvents) PublishSessionRevoked(context.Context, domain.SessionRevokedEvent) error {
	return nil
}

type testEnv struct {
	engine     *gin.Engine
	principals *memPrincipals
	roles      *memRoles
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "auth-microservice", Env: "test", AllowedOrigins: []string{"*"}},
		Auth: config.AuthSettings{
			RegisterWithEmail: true,
			DefaultAdminRole:  "super admin",
		},
		JWT: config.JWTSettings{
			Secret:          "routes-test-secret",
			Algorithm:       "HS256",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			ResetTokenTTL:   15 * time.Minute,
		},
		OTP:   config.OTPSettings{Digits: 6, Interval: 30 * time.Second, Validity: 5 * time.Minute},
		Cache: config.CacheSettings{TTL: time.Minute, KeyPrefix: "auth"},
	}
}

func newTestEnv(t *testing.T, cfg *config.AppConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	principals := &memPrincipals{byID: make(map[string]*domain.Principal)}
	roles := &memRoles{byID: make(map[string]*domain.Role)}
	revocations := &memRevocations{revoked: make(map[string]bool)}
	cache := &memCache{entries: make(map[string]bool)}
	log := zap.NewNop()

	signer, err := security.NewSigner(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		t.Fatalf("security.NewSigner: %v", err)
	}

	tokens := usecase.NewTokenService(cfg, signer, revocations, cache, log)
	resolver := usecase.NewPermissionResolver(cfg, roles, cache, log)
	devices := usecase.NewDeviceGuard(principals, log)
	generator := security.NewOTPGenerator(cfg.OTP.Digits, cfg.OTP.Interval)
	validator := security.DefaultPasswordValidator()
	otp := usecase.NewOTPService(cfg, principals, generator, validator, noopEvents{}, log)
	auth := usecase.NewAuthService(cfg, principals, roles, tokens, resolver, devices, otp, validator, noopEvents{}, log)
	roleService := usecase.NewRoleService(cfg, roles, resolver, log)

	engine := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: log,
		Services: httproutes.ServiceSet{
			Auth:  auth,
			OTP:   otp,
			Roles: roleService,
		},
	})

	return &testEnv{engine: engine, principals: principals, roles: roles}
}

func (e *testEnv) seedPrincipal(t *testing.T, email, password, roleID string) domain.Principal {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("security.HashPassword: %v", err)
	}

	principal := domain.Principal{
		ID:           "principal-" + email,
		Fullname:     "Test Principal",
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		RoleID:       roleID,
	}
	if err := e.principals.Create(context.Background(), principal); err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	return principal
}

func (e *testEnv) seedRole(t *testing.T, id, name, slugValue string, codes ...string) {
	t.Helper()

	permissions := make([]domain.Permission, 0, len(codes))
	for _, code := range codes {
		permissions = append(permissions, domain.Permission{Code: code})
	}

	role := domain.Role{
		ID:   id,
		Name: name,
		Slug: slugValue,
		Permissions: []domain.PermissionGroup{
			{Service: "tickets", Permissions: permissions},
		},
	}
	if err := e.roles.Create(context.Background(), role); err != nil {
		t.Fatalf("seed role: %v", err)
	}
}

func (e *testEnv) do(method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email, password string) (string, string) {
	t.Helper()

	w := e.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": email,
		"password":   password,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken, resp.RefreshToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seedRole(t, "role-1", "Support Agent", "support-agent", "tickets:read")
	env.seedPrincipal(t, "awa@example.com", "S3cure!password", "role-1")

	access, _ := env.login(t, "awa@example.com", "S3cure!password")

	w := env.do(http.MethodGet, "/api/v1/auth/check-access?permission=tickets:read", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("check-access returned %d: %s", w.Code, w.Body.String())
	}
	var decision struct {
		Access bool `json:"access"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode check-access response: %v", err)
	}
	if !decision.Access {
		t.Fatalf("expected the held permission to grant")
	}

	w = env.do(http.MethodGet, "/api/v1/auth/logout", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("logout returned %d: %s", w.Code, w.Body.String())
	}

	// The revoked token is dead for every authenticated route.
	w = env.do(http.MethodGet, "/api/v1/auth/check-access?permission=tickets:read", nil, bearer(access))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestLoginFailureStatuses(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seedRole(t, "role-1", "Support Agent", "support-agent", "tickets:read")
	principal := env.seedPrincipal(t, "awa@example.com", "S3cure!password", "role-1")

	w := env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": "nobody@example.com",
		"password":   "S3cure!password",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown identifier, got %d", w.Code)
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "users/user-not-found" {
		t.Fatalf("unexpected code: %s", payload.Code)
	}

	if err := env.principals.SetActive(context.Background(), principal.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// Inactive accounts reuse the not-found code with 403.
	w = env.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"identifier": "awa@example.com",
		"password":   "S3cure!password",
	}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an inactive account, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "users/user-not-found" {
		t.Fatalf("unexpected code for inactive account: %s", payload.Code)
	}
}

func TestValidateAccessTokenEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seedRole(t, "role-1", "Support Agent", "support-agent", "tickets:read")
	env.seedPrincipal(t, "awa@example.com", "S3cure!password", "role-1")

	access, _ := env.login(t, "awa@example.com", "S3cure!password")

	w := env.do(http.MethodGet, "/api/v1/auth/check-validate-access-token?token="+access, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate returned %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Active   bool `json:"active"`
		UserInfo *struct {
			ID string `json:"_id"`
		} `json:"user_info"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode validate response: %v", err)
	}
	if !resp.Active || resp.UserInfo == nil {
		t.Fatalf("expected an active token with user info: %s", w.Body.String())
	}

	// Garbage is a negative answer, not a transport failure.
	w = env.do(http.MethodGet, "/api/v1/auth/check-validate-access-token?token=garbage", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate of garbage returned %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode validate response: %v", err)
	}
	if resp.Active {
		t.Fatalf("expected an inactive verdict for garbage")
	}
}

func TestRefreshEndpointRotatesPair(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seedRole(t, "role-1", "Support Agent", "support-agent", "tickets:read")
	env.seedPrincipal(t, "awa@example.com", "S3cure!password", "role-1")

	_, refresh := env.login(t, "awa@example.com", "S3cure!password")

	w := env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh returned %d: %s", w.Code, w.Body.String())
	}

	// The consumed refresh token cannot mint twice.
	w = env.do(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on refresh replay, got %d", w.Code)
	}
}

func TestRolesEndpointsAreAdminGated(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.seedRole(t, "role-1", "Support Agent", "support-agent", "tickets:read")
	env.seedRole(t, "role-admin", "Super Admin", "super-admin")
	env.seedPrincipal(t, "agent@example.com", "S3cure!password", "role-1")
	env.seedPrincipal(t, "admin@example.com", "S3cure!password", "role-admin")

	agentToken, _ := env.login(t, "agent@example.com", "S3cure!password")
	adminToken, _ := env.login(t, "admin@example.com", "S3cure!password")

	body := map[string]any{"name": "Billing Manager"}

	w := env.do(http.MethodPost, "/api/v1/roles", body, bearer(agentToken))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/v1/roles", body, bearer(adminToken))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 for the admin, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/v1/roles", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}

func TestSignupRejectedUnderEmailScheme(t *testing.T) {
	env := newTestEnv(t, testConfig())

	w := env.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"phonenumber": "+221771234567",
		"password":    "S3cure!password",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 under the email scheme, got %d", w.Code)
	}
}

func TestSignupAndVerifyUnderPhoneScheme(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.RegisterWithEmail = false
	env := newTestEnv(t, cfg)

	w := env.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"phonenumber": "+221771234567",
		"fullname":    "Awa Diallo",
		"password":    "S3cure!password",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		ID       string `json:"_id"`
		IsActive bool   `json:"is_active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if created.IsActive {
		t.Fatalf("expected a pending principal")
	}

	// Read the live code from the stored secret, as the SMS collaborator would.
	stored, err := env.principals.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("load pending principal: %v", err)
	}
	generator := security.NewOTPGenerator(cfg.OTP.Digits, cfg.OTP.Interval)
	code, err := generator.Code(stored.Attributes.OTPSecret)
	if err != nil {
		t.Fatalf("derive code: %v", err)
	}

	w = env.do(http.MethodPost, "/api/v1/auth/verify-otp", map[string]string{
		"phonenumber": "+221771234567",
		"code":        code,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify-otp returned %d: %s", w.Code, w.Body.String())
	}

	stored, err = env.principals.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reload principal: %v", err)
	}
	if !stored.IsActive {
		t.Fatalf("expected the principal to be active after verification")
	}
}
