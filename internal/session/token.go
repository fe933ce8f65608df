// Package session issues and recovers signed tokens that carry the storage
// facade's session blob. The blob is encrypted before it is placed in the
// token, so the cookie never exposes the account's auth key.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/teledrive/internal/crypto"
)

// Kind separates long-lived login sessions from short-lived pending logins.
type Kind string

const (
	KindSession Kind = "session"
	KindLogin   Kind = "login"
)

const (
	DefaultTTL      = 30 * 24 * time.Hour
	DefaultLoginTTL = 10 * time.Minute
)

var (
	// ErrMalformed is returned for tokens that cannot be parsed or whose
	// payload cannot be decrypted.
	ErrMalformed = errors.New("malformed session token")
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = errors.New("invalid session token signature")
	// ErrExpired is returned for tokens past their expiry.
	ErrExpired = errors.New("session token expired")
)

type claims struct {
	Blob string `json:"blob"`
	jwt.RegisteredClaims
}

// Manager issues and recovers session tokens.
type Manager struct {
	secret    []byte
	encryptor crypto.Encryptor
	ttl       map[Kind]time.Duration
	now       func() time.Time
}

// NewManager creates a Manager signing with secret. A zero ttl selects DefaultTTL.
func NewManager(secret string, encryptor crypto.Encryptor, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret:    []byte(secret),
		encryptor: encryptor,
		ttl: map[Kind]time.Duration{
			KindSession: ttl,
			KindLogin:   DefaultLoginTTL,
		},
		now: time.Now,
	}
}

// TTL returns the lifetime of tokens of the given kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	return m.ttl[kind]
}

// Issue wraps blob in a signed session token.
func (m *Manager) Issue(ctx context.Context, blob []byte) (string, error) {
	return m.IssueKind(ctx, KindSession, blob)
}

// Recover returns the blob carried by a session token.
func (m *Manager) Recover(ctx context.Context, token string) ([]byte, error) {
	return m.RecoverKind(ctx, KindSession, token)
}

// IssueKind wraps blob in a signed token of the given kind.
func (m *Manager) IssueKind(ctx context.Context, kind Kind, blob []byte) (string, error) {
	sealed, err := m.encryptor.Encrypt(ctx, blob)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt session: %w", err)
	}
	now := m.now()
	c := claims{
		Blob: sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(kind),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl[kind])),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// RecoverKind verifies a token of the given kind and returns its blob.
func (m *Manager) RecoverKind(ctx context.Context, kind Kind, token string) ([]byte, error) {
	if token == "" {
		return nil, ErrMalformed
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(string(kind)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if c.Blob == "" {
		return nil, ErrMalformed
	}
	blob, err := m.encryptor.Decrypt(ctx, c.Blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return blob, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
