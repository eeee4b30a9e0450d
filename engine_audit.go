package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess                 = "login_success"
	auditEventLoginFailure                 = "login_failure"
	auditEventLoginRateLimited             = "login_rate_limited"
	auditEventAccountLocked                = "account_locked"
	auditEventRefreshSuccess               = "refresh_success"
	auditEventRefreshInvalid               = "refresh_invalid"
	auditEventRefreshReuseDetected         = "refresh_reuse_detected"
	auditEventRefreshRateLimited           = "refresh_rate_limited"
	auditEventLogout                       = "logout"
	auditEventLogoutAll                    = "logout_all"
	auditEventRegistrationSuccess          = "registration_success"
	auditEventRegistrationFailure          = "registration_failure"
	auditEventRegistrationDuplicate        = "registration_duplicate"
	auditEventRegistrationRateLimited      = "registration_rate_limited"
	auditEventPasswordChangeSuccess        = "password_change_success"
	auditEventPasswordChangeInvalidOld     = "password_change_invalid_old"
	auditEventPasswordChangeReuse          = "password_change_reuse_attempt"
	auditEventPasswordChangeFailure        = "password_change_failure"
	auditEventPasswordResetRequest         = "password_reset_request"
	auditEventPasswordResetConfirm         = "password_reset_confirm"
	auditEventEmailVerificationRequest     = "email_verification_request"
	auditEventEmailVerificationConfirm     = "email_verification_confirm"
	auditEventEmailVerificationAttempts    = "email_verification_attempts_exceeded"
	auditEventEmailVerificationRateLimited = "email_verification_rate_limited"
	auditEventPasswordResetRateLimited     = "password_reset_rate_limited"
	auditEventRateLimitTriggered           = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrAccountDeleted     AuditErrorCode = "account_deleted"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrAccountDeleted):
		return auditErrAccountDeleted
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrRegistrationRateLimited),
		errors.Is(err, ErrEmailVerificationRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrEmailVerificationInvalid),
		errors.Is(err, ErrPasswordResetInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrEmailVerificationAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrProviderDuplicateIdentifier):
		return auditErrDuplicate
	case errors.Is(err, ErrLoginUnavailable),
		errors.Is(err, ErrRefreshUnavailable),
		errors.Is(err, ErrRegistrationUnavailable),
		errors.Is(err, ErrEmailVerificationUnavailable),
		errors.Is(err, ErrPasswordResetUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
