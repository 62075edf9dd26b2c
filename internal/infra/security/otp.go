package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"
)

// ErrMissingSecret is returned when the OTP secret is empty.
var ErrMissingSecret = fmt.Errorf("otp: secret is required")

const otpSecretBytes = 20

// OTPGenerator derives time-windowed numeric codes from a shared secret.
// The interval must match between code generation and verification.
type OTPGenerator struct {
	digits   int
	interval time.Duration
	now      func() time.Time
}

// NewOTPGenerator constructs a generator with the configured digit length and
// time-step interval.
func NewOTPGenerator(digits int, interval time.Duration) *OTPGenerator {
	if digits <= 0 {
		digits = 6
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &OTPGenerator{digits: digits, interval: interval, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (g *OTPGenerator) WithClock(clock func() time.Time) *OTPGenerator {
	if clock != nil {
		g.now = clock
	}
	return g
}

// GenerateSecret returns a cryptographically random base32 secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, otpSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("otp: generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// Code derives the numeric code for the current time window.
func (g *OTPGenerator) Code(secret string) (string, error) {
	counter := uint64(g.now().UTC().Unix() / int64(g.interval.Seconds()))
	return g.hotp(secret, counter)
}

// ExpiresAt returns the end of the time window containing ts, which is when
// a code derived in that window stops verifying.
func (g *OTPGenerator) ExpiresAt(ts time.Time) time.Time {
	step := int64(g.interval.Seconds())
	counter := ts.UTC().Unix() / step
	return time.Unix((counter+1)*step, 0).UTC()
}

// Verify reports whether the submitted code matches the current window's
// value for the secret. Only the live window is accepted; comparison is
// constant time.
func (g *OTPGenerator) Verify(secret, code string) (bool, error) {
	expected, err := g.Code(secret)
	if err != nil {
		return false, err
	}
	if len(code) != len(expected) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1, nil
}

func (g *OTPGenerator) hotp(secret string, counter uint64) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("otp: decode secret: %w", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < g.digits; i++ {
		mod *= 10
	}

	code := strconv.FormatUint(uint64(value%mod), 10)
	for len(code) < g.digits {
		code = "0" + code
	}

	return code, nil
}
