package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnexpectedSigningMethod indicates the token header advertises an
// algorithm other than the configured HMAC family.
var ErrUnexpectedSigningMethod = errors.New("jwt: unexpected signing method")

// Signer signs and verifies HMAC JWTs with the configured secret and
// algorithm. Misconfiguration is fatal at construction, never user-facing.
type Signer struct {
	secret []byte
	method jwt.SigningMethod
}

// NewSigner constructs a Signer for the supplied secret and algorithm name.
func NewSigner(secret, algorithm string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("jwt: unknown algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwt: algorithm %q is not an HMAC method", algorithm)
	}

	return &Signer{secret: []byte(secret), method: method}, nil
}

// Sign produces a signed token string for the supplied claims.
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token signature and algorithm and unmarshals its claims.
// Expiry is not enforced here; callers decide how an expired-but-authentic
// token is reported.
func (s *Signer) Parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}

	if parsed == nil || !parsed.Valid {
		return jwt.ErrTokenUnverifiable
	}

	return nil
}

// HashToken calculates a SHA-256 fingerprint of the provided value. Revoked
// tokens are stored and looked up by fingerprint, which keeps membership
// checks constant time with respect to the token contents.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
