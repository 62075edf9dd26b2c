package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/flavien-hugs/auth-microservice/internal/core/domain"
	"github.com/flavien-hugs/auth-microservice/internal/core/port"
	"github.com/flavien-hugs/auth-microservice/internal/infra/config"
	"github.com/flavien-hugs/auth-microservice/internal/repository"
)

const checkAccessKeyspace = "check_access"

// PermissionResolver answers "does this subject hold any of these codes",
// caching positive and negative results alike. Grants follow OR semantics:
// holding any one of the required codes is enough.
type PermissionResolver struct {
	roles     port.RoleRepository
	cache     port.PermissionCache
	cacheTTL  time.Duration
	adminSlug string
	logger    *zap.Logger
	observe   func(outcome string)
}

// NewPermissionResolver constructs a resolver bound to the role repository
// and the permission cache.
func NewPermissionResolver(cfg *config.AppConfig, roles port.RoleRepository, cache port.PermissionCache, logger *zap.Logger) *PermissionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &PermissionResolver{
		roles:     roles,
		cache:     cache,
		cacheTTL:  ttl,
		adminSlug: slug.Make(cfg.Auth.DefaultAdminRole),
		logger:    logger,
		observe:   func(string) {},
	}
}

// WithCacheObserver installs a hook invoked with "hit" or "miss" on every
// cache lookup. Used to feed the Prometheus cache counters.
func (r *PermissionResolver) WithCacheObserver(observe func(outcome string)) {
	if observe != nil {
		r.observe = observe
	}
}

// EffectivePermissions loads the role and flattens its permission groups.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, roleID string) (map[string]struct{}, error) {
	role, err := r.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("load role: %w", err)
	}

	return role.PermissionCodes(), nil
}

// CheckPermissions reports whether the subject holds at least one of the
// required codes. The default admin role bypasses resolution entirely.
// Cache failures fall through to the authoritative role lookup, never to a
// stale grant.
func (r *PermissionResolver) CheckPermissions(ctx context.Context, subject domain.TokenSubject, required []string) (bool, error) {
	if subject.Role.Slug == r.adminSlug {
		return true, nil
	}

	if len(required) == 0 {
		return false, nil
	}

	// A principal without a role assignment holds no permissions.
	if subject.Role.ID == "" {
		return false, nil
	}

	key := r.checkKey(subject.ID, required)

	value, found, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("permission cache read failed", zap.Error(err))
	} else if found {
		r.observe("hit")
		return value, nil
	} else {
		r.observe("miss")
	}

	codes, err := r.EffectivePermissions(ctx, subject.Role.ID)
	if err != nil {
		return false, err
	}

	granted := false
	for _, code := range required {
		if _, ok := codes[strings.TrimSpace(code)]; ok {
			granted = true
			break
		}
	}

	if err := r.cache.Set(ctx, key, granted, r.cacheTTL); err != nil {
		r.logger.Warn("permission cache write failed", zap.Error(err))
	}

	return granted, nil
}

// InvalidatePrincipal drops every cached decision for one principal. Called
// when the principal's activation or role assignment changes.
func (r *PermissionResolver) InvalidatePrincipal(ctx context.Context, principalID string) error {
	pattern := fmt.Sprintf("%s:%s:*", checkAccessKeyspace, principalID)
	if err := r.cache.Invalidate(ctx, pattern); err != nil {
		return fmt.Errorf("invalidate principal cache: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached decision. Called when a role's permission
// groups change, since any principal may hold the role.
func (r *PermissionResolver) InvalidateAll(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:*", checkAccessKeyspace)
	if err := r.cache.Invalidate(ctx, pattern); err != nil {
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	return nil
}

// checkKey derives a deterministic cache key from the principal and the
// required set. The set is sorted so equivalent requests share an entry, and
// hashed so arbitrary permission codes cannot inject key separators.
func (r *PermissionResolver) checkKey(principalID string, required []string) string {
	sorted := make([]string, 0, len(required))
	for _, code := range required {
		sorted = append(sorted, strings.TrimSpace(code))
	}
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return fmt.Sprintf("%s:%s:%s", checkAccessKeyspace, principalID, hex.EncodeToString(sum[:]))
}
