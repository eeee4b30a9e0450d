package postgres

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexauth/authcore/refresh"
)

// Schema is the DDL the store expects. Apply it through your migration
// tooling before wiring the store.
const Schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id          UUID PRIMARY KEY,
	token_hash  CHAR(64) NOT NULL UNIQUE,
	account_id  TEXT NOT NULL,
	revoked     BOOLEAN NOT NULL DEFAULT FALSE,
	issued_at   TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS refresh_tokens_account_idx ON refresh_tokens (account_id) WHERE NOT revoked;
`

// Store persists refresh tokens in PostgreSQL. It satisfies [refresh.Store].
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing connection pool. The store does not own the
// pool and never closes it.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func hashKey(value string) string {
	sum := refresh.HashValue(value)
	return hex.EncodeToString(sum[:])
}

// Issue persists a new active token for the account.
func (s *Store) Issue(ctx context.Context, accountID string, ttl time.Duration) (*refresh.Token, error) {
	value, err := refresh.NewValue()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	now := time.Now()
	token := &refresh.Token{
		ID:        uuid.NewString(),
		Value:     value,
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, token_hash, account_id, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token.ID, hashKey(value), accountID, token.IssuedAt, token.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return token, nil
}

// ValidateAndRotate atomically revokes the presented token and issues a
// replacement for the same account. Of N concurrent calls with the same
// value at most one succeeds.
func (s *Store) ValidateAndRotate(ctx context.Context, value string, ttl time.Duration) (string, *refresh.Token, error) {
	key := hashKey(value)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var accountID string
	err = tx.QueryRow(ctx,
		`UPDATE refresh_tokens
		 SET revoked = TRUE
		 WHERE token_hash = $1 AND NOT revoked AND expires_at > now()
		 RETURNING account_id`,
		key,
	).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, s.classifyLoss(ctx, key)
		}
		return "", nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	replacementValue, err := refresh.NewValue()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	now := time.Now()
	next := &refresh.Token{
		ID:        uuid.NewString(),
		Value:     replacementValue,
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, token_hash, account_id, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		next.ID, hashKey(replacementValue), accountID, next.IssuedAt, next.ExpiresAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", nil, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return accountID, next, nil
}

// classifyLoss distinguishes why the conditional rotation matched no row.
func (s *Store) classifyLoss(ctx context.Context, key string) error {
	var (
		revoked   bool
		expiresAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT revoked, expires_at FROM refresh_tokens WHERE token_hash = $1`,
		key,
	).Scan(&revoked, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refresh.ErrNotFound
		}
		return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	if revoked {
		return refresh.ErrRevoked
	}
	if !expiresAt.After(time.Now()) {
		return refresh.ErrExpired
	}
	// The row was live on re-read: the conditional update lost to a
	// concurrent writer that has since rolled back. Deny anyway.
	return refresh.ErrRevoked
}

// Revoke marks a single token revoked. Unknown or already-terminal tokens
// are a no-op.
func (s *Store) Revoke(ctx context.Context, value string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1 AND NOT revoked`,
		hashKey(value),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForAccount revokes every active token for the account.
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE account_id = $1 AND NOT revoked`,
		accountID,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return nil
}

// PurgeExpired deletes rows whose expiry passed more than the grace period
// ago and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`,
		time.Now().Add(-grace),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", refresh.ErrUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
