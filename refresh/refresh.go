package refresh

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no token row exists for the presented value.
	ErrNotFound = errors.New("refresh: token not found")
	// ErrRevoked indicates the token was already rotated out or revoked.
	ErrRevoked = errors.New("refresh: token revoked")
	// ErrExpired indicates the token row exists but is past its expiry.
	ErrExpired = errors.New("refresh: token expired")
	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("refresh: store unavailable")
)

const secretSize = 32

// Token is one issued refresh credential. Value is only populated on the
// issuing path; stores retain its hash.
type Token struct {
	ID        string
	Value     string
	AccountID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Store is the persistence contract for refresh token lifecycle. A refresh
// token is a security credential: implementations must make ValidateAndRotate
// atomic per token value, and callers must treat any [ErrUnavailable] as a
// denial.
type Store interface {
	// Issue persists a new active token for the account.
	Issue(ctx context.Context, accountID string, ttl time.Duration) (*Token, error)

	// ValidateAndRotate looks up the presented value, atomically revokes it,
	// and issues a replacement for the same account. Of N concurrent calls
	// with the same value at most one succeeds; the rest observe ErrRevoked.
	ValidateAndRotate(ctx context.Context, value string, ttl time.Duration) (string, *Token, error)

	// Revoke marks a single token revoked. Revoking an already-terminal
	// token is a no-op, not an error.
	Revoke(ctx context.Context, value string) error

	// RevokeAllForAccount revokes every active token for the account.
	RevokeAllForAccount(ctx context.Context, accountID string) error
}

// NewValue generates an opaque token value with 256 bits of entropy.
func NewValue() (string, error) {
	var raw [secretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashValue derives the store lookup key from a token value.
func HashValue(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}
