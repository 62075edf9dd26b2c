package port

import "context"

// RevocationStore records tokens explicitly invalidated before natural expiry.
// Implementations must support concurrent writers without losing entries and
// must survive process restarts. Once added, a token must never verify again
// within its natural lifetime.
type RevocationStore interface {
	Add(ctx context.Context, token string) error
	Contains(ctx context.Context, token string) (bool, error)
}
