package port

import (
	"context"
	"time"
)

// PermissionCache is a time-bounded cache for verification and permission
// check results. Lookups that fail or time out must be treated as misses and
// fall through to the authoritative check, never as authorized.
type PermissionCache interface {
	Get(ctx context.Context, key string) (bool, bool, error)
	Set(ctx context.Context, key string, value bool, ttl time.Duration) error
	// Invalidate removes every entry whose key matches the glob pattern.
	// Mutation paths call this eagerly; TTL expiry alone is not sufficient
	// for correctness because a stale authorized result is a security risk.
	Invalidate(ctx context.Context, pattern string) error
}
