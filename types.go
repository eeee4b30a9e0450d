package authcore

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus uint8

const (
	// AccountActive is an exported constant or variable used by the authentication engine.
	AccountActive AccountStatus = iota
	// AccountPendingVerification is an exported constant or variable used by the authentication engine.
	AccountPendingVerification
	// AccountDisabled is an exported constant or variable used by the authentication engine.
	AccountDisabled
	// AccountDeleted is an exported constant or variable used by the authentication engine.
	AccountDeleted
)

// LockoutState tracks consecutive failed password attempts for one account.
// It is persisted through [AccountProvider.UpdateLockout] and applies only to
// password logins, never to token validation.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	LastFailedAt   *time.Time
}

// AccountRecord is the full account record returned by [AccountProvider].
// It carries the credential hash, status, role, and lockout counters.
type AccountRecord struct {
	AccountID    string
	Identifier   string
	PasswordHash string
	Role         string
	Status       AccountStatus
	Lockout      LockoutState
}

// AccountProvider is the interface callers must implement to integrate
// authcore with their account database. It covers credential lookup, account
// creation, password updates, status transitions, and lockout persistence.
//
// Lookup misses must be reported as [ErrAccountNotFound] (wrapped or bare);
// duplicate identifiers on Create as [ErrProviderDuplicateIdentifier]. Any
// other error is treated as backend unavailability and the calling flow
// fails closed.
type AccountProvider interface {
	GetByIdentifier(ctx context.Context, identifier string) (AccountRecord, error)
	GetByID(ctx context.Context, accountID string) (AccountRecord, error)
	Create(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	UpdateStatus(ctx context.Context, accountID string, status AccountStatus) error
	UpdateLockout(ctx context.Context, accountID string, state LockoutState) error
}

// CreateAccountInput is the input for [AccountProvider.Create].
type CreateAccountInput struct {
	Identifier   string
	PasswordHash string
	Role         string
	Status       AccountStatus
}

// RegisterRequest is the input for [Engine.Register]. Identifier and
// Password are required; Role defaults to [RegistrationConfig.DefaultRole]
// when empty.
type RegisterRequest struct {
	Identifier string
	Password   string
	Role       string
}

// RegisterResult is returned by [Engine.Register]. VerificationCode is the
// plaintext single-use code for caller-side delivery; the engine only stores
// its hash and never logs it.
type RegisterResult struct {
	AccountID        string
	Role             string
	VerificationCode string
}

// LoginResult is returned by [Engine.Login] and [Engine.Refresh]. It carries
// the signed access token and the opaque refresh token value.
type LoginResult struct {
	AccountID    string
	Role         string
	AccessToken  string
	RefreshToken string
}
