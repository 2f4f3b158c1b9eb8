// Package qrtoken issues and verifies the short-lived signed tokens that are
// encoded into an event's check-in QR code.
//
// A token has the form "<eventID>.<issuedAtMs>.<signature>" where signature is
// the unpadded base64url HMAC-SHA256 of "<eventID>.<issuedAtMs>". Nothing is
// stored server side; a token stops being accepted once it is older than the
// configured TTL.
package qrtoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTTL  = 60 * time.Second
	DefaultSkew = 15 * time.Second
)

// Reason explains why a token was rejected.
type Reason string

const (
	ReasonMissingToken       Reason = "missing_token"
	ReasonMissingSecret      Reason = "missing_secret"
	ReasonMalformed          Reason = "malformed"
	ReasonEventMismatch      Reason = "event_mismatch"
	ReasonBadTimestamp       Reason = "bad_timestamp"
	ReasonBadSignatureLength Reason = "bad_signature_length"
	ReasonBadSignature       Reason = "bad_signature"
	ReasonFutureTimestamp    Reason = "future_timestamp"
	ReasonExpired            Reason = "expired"
)

// ErrMissingSecret is returned when a signer is built or asked to issue
// without a secret. It is a configuration error and should stop the process.
var ErrMissingSecret = errors.New("check-in token secret is not configured")

// SecretProvider yields the shared signing key. It is read on every call so
// tests can swap it, but in production it is fixed at startup.
type SecretProvider interface {
	Secret() []byte
}

// StaticSecret is a SecretProvider over a fixed key.
type StaticSecret []byte

func (s StaticSecret) Secret() []byte { return s }

// Verification is the outcome of Verify. Reason is empty when Valid.
type Verification struct {
	Valid    bool
	Reason   Reason
	IssuedAt time.Time
}

func reject(r Reason) Verification {
	return Verification{Reason: r}
}

// Signer issues and verifies tokens. It holds no mutable state and is safe
// for concurrent use.
type Signer struct {
	secret SecretProvider
	ttl    time.Duration
	skew   time.Duration
}

type Option func(*Signer)

// WithTTL sets how long an issued token stays valid.
func WithTTL(d time.Duration) Option {
	return func(s *Signer) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSkew sets how far in the future an issue time may be.
func WithSkew(d time.Duration) Option {
	return func(s *Signer) {
		if d >= 0 {
			s.skew = d
		}
	}
}

// NewSigner fails with ErrMissingSecret when the provider has no key.
func NewSigner(secret SecretProvider, opts ...Option) (*Signer, error) {
	if secret == nil || len(secret.Secret()) == 0 {
		return nil, ErrMissingSecret
	}
	s := &Signer{secret: secret, ttl: DefaultTTL, skew: DefaultSkew}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Signer) TTL() time.Duration  { return s.ttl }
func (s *Signer) Skew() time.Duration { return s.skew }

// Issue mints a token for eventID stamped with issuedAt.
func (s *Signer) Issue(eventID string, issuedAt time.Time) (string, error) {
	key := s.key()
	if len(key) == 0 {
		return "", ErrMissingSecret
	}
	if eventID == "" || strings.Contains(eventID, ".") {
		return "", fmt.Errorf("invalid event id %q", eventID)
	}

	ms := strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return eventID + "." + ms + "." + sign(key, eventID, ms), nil
}

// Verify checks token against eventID at now. Every failure is reported
// with a Reason; no failure panics or returns an error.
func (s *Signer) Verify(eventID, token string, now time.Time) Verification {
	if token == "" {
		return reject(ReasonMissingToken)
	}
	key := s.key()
	if len(key) == 0 {
		return reject(ReasonMissingSecret)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return reject(ReasonMalformed)
	}
	tokenEvent, ms, sig := parts[0], parts[1], parts[2]

	if tokenEvent != eventID {
		return reject(ReasonEventMismatch)
	}

	issuedMs, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return reject(ReasonBadTimestamp)
	}

	expected := sign(key, tokenEvent, ms)
	if len(sig) != len(expected) {
		return reject(ReasonBadSignatureLength)
	}
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return reject(ReasonBadSignature)
	}

	issuedAt := time.UnixMilli(issuedMs)
	age := now.Sub(issuedAt)
	if age < -s.skew {
		return reject(ReasonFutureTimestamp)
	}
	if age > s.ttl {
		return reject(ReasonExpired)
	}

	return Verification{Valid: true, IssuedAt: issuedAt}
}

func (s *Signer) key() []byte {
	if s == nil || s.secret == nil {
		return nil
	}
	return s.secret.Secret()
}

func sign(key []byte, eventID, ms string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(eventID + "." + ms))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
