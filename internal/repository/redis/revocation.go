package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/flavien-hugs/auth-microservice/internal/infra/security"
)

const defaultRevocationPrefix = "auth:blacklist"

// RevocationStore records revoked tokens in Redis. Tokens are keyed by their
// SHA-256 fingerprint so membership checks never compare raw token strings;
// the fixed-width key lookup leaks nothing about valid-token prefixes.
type RevocationStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewRevocationStore wires a Redis client into a revocation store. The TTL
// should cover the longest token lifetime; revocation is permanent within it.
func NewRevocationStore(client *red.Client, keyPrefix string, ttl time.Duration) *RevocationStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &RevocationStore{client: client, prefix: prefix, ttl: ttl}
}

// Add records the raw token as revoked. Concurrent writers are safe; Redis
// serializes the SET and a lost duplicate write is indistinguishable from a
// successful one.
func (s *RevocationStore) Add(ctx context.Context, token string) error {
	key := s.key(token)
	if key == "" {
		return errors.New("token must not be empty")
	}

	if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}

	return nil
}

// Contains reports whether the token has been revoked. Store failures
// propagate to the caller, which must fail closed.
func (s *RevocationStore) Contains(ctx context.Context, token string) (bool, error) {
	key := s.key(token)
	if key == "" {
		return false, errors.New("token must not be empty")
	}

	count, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revoked token: %w", err)
	}

	return count > 0, nil
}

func (s *RevocationStore) key(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.prefix, security.HashToken(trimmed))
}
