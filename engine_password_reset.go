package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/apexauth/authcore/internal"
	"github.com/apexauth/authcore/internal/stores"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned opaque token is for caller-side delivery. Unknown identifiers
// receive a decoy token that can never be consumed. Reset tokens carry
// enough entropy that no attempt cap applies; issuing a new token replaces
// the previous one.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	if e == nil || e.resetStore == nil {
		if e != nil && !e.config.PasswordReset.Enabled {
			return "", ErrPasswordResetDisabled
		}
		return "", ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return "", ErrPasswordResetDisabled
	}
	if identifier == "" {
		return "", ErrPasswordResetInvalid
	}

	if !e.allow(ctx, passwordResetReqPrefix, identifier,
		e.config.PasswordReset.MaxRequests, e.config.PasswordReset.RequestWindow) {
		e.emitAudit(ctx, auditEventPasswordResetRateLimited, false, "", ErrPasswordResetRateLimited, func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		e.emitRateLimit(ctx, "password_reset", func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return "", ErrPasswordResetRateLimited
	}

	tokenValue, err := internal.NewOpaqueSecret()
	if err != nil {
		return "", ErrPasswordResetUnavailable
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Decoy: same response shape, nothing stored.
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, func() map[string]string {
				return map[string]string{"identifier": identifier, "decoy": "true"}
			})
			return tokenValue, nil
		}
		e.log().Error("account lookup failed during reset request", zap.Error(err))
		return "", ErrPasswordResetUnavailable
	}

	ttl := e.config.PasswordReset.TokenTTL
	record := &stores.CodeRecord{
		SecretHash: internal.HashSecret(tokenValue),
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.resetStore.Save(ctx, account.AccountID, record, ttl); err != nil {
		e.log().Error("reset token save failed",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return "", ErrPasswordResetUnavailable
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.AccountID, nil, func() map[string]string {
		return map[string]string{"token": maskSecret(tokenValue)}
	})
	return tokenValue, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A matching token is single-use. Success re-hashes the password, clears any
// lockout, and revokes every refresh token for the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, identifier, tokenValue, newPassword string) error {
	if e == nil || e.resetStore == nil {
		if e != nil && !e.config.PasswordReset.Enabled {
			return ErrPasswordResetDisabled
		}
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrPasswordResetDisabled
	}
	if identifier == "" || tokenValue == "" {
		return ErrPasswordResetInvalid
	}
	if len(newPassword) < e.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			return ErrPasswordResetInvalid
		}
		e.log().Error("account lookup failed during reset confirm", zap.Error(err))
		return ErrPasswordResetUnavailable
	}

	// No attempt cap: the token space is not guessable within the TTL.
	_, err = e.resetStore.Consume(ctx, account.AccountID, internal.HashSecret(tokenValue), 0)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeNotFound), errors.Is(err, stores.ErrCodeMismatch):
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, account.AccountID, ErrPasswordResetInvalid, func() map[string]string {
				return map[string]string{"token": maskSecret(tokenValue)}
			})
			return ErrPasswordResetInvalid
		default:
			e.log().Error("reset token consume failed", zap.Error(err))
			return ErrPasswordResetUnavailable
		}
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.log().Error("password hash failed during reset confirm", zap.Error(err))
		return ErrPasswordResetUnavailable
	}
	if err := e.accounts.UpdatePasswordHash(ctx, account.AccountID, newHash); err != nil {
		e.log().Error("password hash update failed during reset confirm", zap.Error(err))
		return ErrPasswordResetUnavailable
	}

	// A reset proves control of the recovery channel; stale lockouts from
	// the forgotten password should not outlive it.
	e.recordLoginSuccess(ctx, &account)

	if err := e.refreshStore.RevokeAllForAccount(ctx, account.AccountID); err != nil {
		e.log().Error("session revocation failed after password reset",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return ErrRefreshUnavailable
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, account.AccountID, nil, nil)
	return nil
}
