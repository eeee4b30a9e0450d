package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/apexauth/authcore/internal"
	"github.com/apexauth/authcore/internal/stores"
)

// issueVerificationCode stores a fresh code for the account, replacing any
// outstanding one. The latest issued code is the only reachable code.
func (e *Engine) issueVerificationCode(ctx context.Context, accountID string) (string, error) {
	code, err := internal.NewOTP(e.config.EmailVerification.OTPDigits)
	if err != nil {
		return "", err
	}

	ttl := e.config.EmailVerification.CodeTTL
	record := &stores.CodeRecord{
		SecretHash: internal.HashSecret(code),
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.verificationStore.Save(ctx, accountID, record, ttl); err != nil {
		return "", err
	}
	return code, nil
}

// RequestEmailVerification describes the requestemailverification operation and its observable behavior.
//
// RequestEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// RequestEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The returned code is for caller-side delivery. Unknown identifiers and
// already-verified accounts receive a decoy code that can never be
// consumed, so the response does not reveal whether the account exists.
func (e *Engine) RequestEmailVerification(ctx context.Context, identifier string) (string, error) {
	if e == nil || e.verificationStore == nil {
		if e != nil && !e.config.EmailVerification.Enabled {
			return "", ErrEmailVerificationDisabled
		}
		return "", ErrEngineNotReady
	}
	if !e.config.EmailVerification.Enabled {
		return "", ErrEmailVerificationDisabled
	}
	if identifier == "" {
		return "", ErrEmailVerificationInvalid
	}

	if !e.allow(ctx, verificationReqPrefix, identifier,
		e.config.EmailVerification.MaxRequests, e.config.EmailVerification.RequestWindow) {
		e.emitAudit(ctx, auditEventEmailVerificationRateLimited, false, "", ErrEmailVerificationRateLimited, func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		e.emitRateLimit(ctx, "email_verification", func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return "", ErrEmailVerificationRateLimited
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return e.decoyVerificationCode(ctx, identifier)
		}
		e.log().Error("account lookup failed during verification request", zap.Error(err))
		return "", ErrEmailVerificationUnavailable
	}
	if account.Status != AccountPendingVerification {
		return e.decoyVerificationCode(ctx, identifier)
	}

	code, err := e.issueVerificationCode(ctx, account.AccountID)
	if err != nil {
		e.log().Error("verification code issuance failed",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return "", ErrEmailVerificationUnavailable
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, account.AccountID, nil, func() map[string]string {
		return map[string]string{"code": maskSecret(code)}
	})
	return code, nil
}

// decoyVerificationCode keeps the request path indistinguishable for
// identifiers that cannot be verified: same work, same response shape,
// nothing stored.
func (e *Engine) decoyVerificationCode(ctx context.Context, identifier string) (string, error) {
	code, err := internal.NewOTP(e.config.EmailVerification.OTPDigits)
	if err != nil {
		return "", ErrEmailVerificationUnavailable
	}
	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier, "decoy": "true"}
	})
	return code, nil
}

// ConfirmEmailVerification describes the confirmemailverification operation and its observable behavior.
//
// ConfirmEmailVerification may return an error when input validation, dependency calls, or security checks fail.
// ConfirmEmailVerification does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A matching code is single-use: the account flips to Active and the code is
// gone. The third wrong guess permanently invalidates the outstanding code
// even if time remains.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, identifier, code string) error {
	if e == nil || e.verificationStore == nil {
		if e != nil && !e.config.EmailVerification.Enabled {
			return ErrEmailVerificationDisabled
		}
		return ErrEngineNotReady
	}
	if !e.config.EmailVerification.Enabled {
		return ErrEmailVerificationDisabled
	}
	if identifier == "" || code == "" {
		return ErrEmailVerificationInvalid
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrEmailVerificationInvalid
		}
		e.log().Error("account lookup failed during verification confirm", zap.Error(err))
		return ErrEmailVerificationUnavailable
	}
	if account.Status != AccountPendingVerification {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrEmailVerificationInvalid
	}

	_, err = e.verificationStore.Consume(ctx, account.AccountID,
		internal.HashSecret(code), e.config.EmailVerification.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeAttemptsExceeded):
			e.metricInc(MetricEmailVerificationAttemptsExceeded)
			e.emitAudit(ctx, auditEventEmailVerificationAttempts, false, account.AccountID, ErrEmailVerificationAttempts, nil)
			return ErrEmailVerificationAttempts
		case errors.Is(err, stores.ErrCodeNotFound), errors.Is(err, stores.ErrCodeMismatch):
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, account.AccountID, ErrEmailVerificationInvalid, func() map[string]string {
				return map[string]string{"code": maskSecret(code)}
			})
			return ErrEmailVerificationInvalid
		default:
			e.log().Error("verification code consume failed", zap.Error(err))
			return ErrEmailVerificationUnavailable
		}
	}

	if err := e.accounts.UpdateStatus(ctx, account.AccountID, AccountActive); err != nil {
		// The code is already spent; the next request issues a fresh one.
		e.log().Error("account activation failed after verification",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return ErrEmailVerificationUnavailable
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, account.AccountID, nil, nil)
	return nil
}
