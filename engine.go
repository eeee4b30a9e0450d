package authcore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/apexauth/authcore/internal/rate"
	"github.com/apexauth/authcore/internal/stores"
	"github.com/apexauth/authcore/keys"
	"github.com/apexauth/authcore/password"
	"github.com/apexauth/authcore/refresh"
	"github.com/apexauth/authcore/token"
)

const (
	loginIdentifierPrefix  = "rl:login:id"
	loginIPPrefix          = "rl:login:ip"
	refreshIPPrefix        = "rl:refresh:ip"
	registrationIDPrefix   = "rl:register:id"
	registrationIPPrefix   = "rl:register:ip"
	verificationReqPrefix  = "rl:verify:id"
	passwordResetReqPrefix = "rl:reset:id"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config            Config
	accounts          AccountProvider
	keyProvider       *keys.Provider
	issuer            *token.Issuer
	refreshStore      refresh.Store
	limiter           *rate.Limiter
	verificationStore *stores.CodeStore
	resetStore        *stores.CodeStore
	audit             *auditDispatcher
	metrics           *Metrics
	passwordHash      *password.Argon2
	logger            *zap.Logger
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// JWKS returns the public key-set document for unauthenticated consumption
// by services that verify access tokens locally.
func (e *Engine) JWKS() keys.JWKS {
	return e.keyProvider.JWKS()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// allow runs one fixed-window check. The limiter fails open on backend
// errors; a degraded limiter is logged and counted but never blocks auth.
func (e *Engine) allow(ctx context.Context, prefix, identifier string, limit int, window time.Duration) bool {
	if identifier == "" {
		return true
	}
	ok, err := e.limiter.Allow(ctx, prefix, identifier, limit, window)
	if err != nil {
		e.metricInc(MetricRateLimiterDegraded)
		e.log().Warn("rate limiter degraded, allowing request",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
	return ok
}

func accountStatusError(status AccountStatus) error {
	switch status {
	case AccountDisabled:
		return ErrAccountDisabled
	case AccountDeleted:
		return ErrAccountDeleted
	default:
		return nil
	}
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Unknown accounts, wrong passwords, and locked accounts all surface the
// same [ErrInvalidCredentials]; only rate limiting and backend outages are
// distinguishable by a caller.
func (e *Engine) Login(ctx context.Context, identifier, plainPassword string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.config.RateLimit.EnableLoginThrottle {
		limited := !e.allow(ctx, loginIdentifierPrefix, identifier,
			e.config.RateLimit.MaxLoginAttempts, e.config.RateLimit.LoginWindow)
		if !limited && ip != "" {
			limited = !e.allow(ctx, loginIPPrefix, ip,
				e.config.RateLimit.MaxLoginAttempts, e.config.RateLimit.LoginWindow)
		}
		if limited {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, ErrLoginRateLimited
		}
	}

	if identifier == "" || plainPassword == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "empty_input"}
		})
		return nil, ErrInvalidCredentials
	}

	account, err := e.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "account_not_found"}
			})
			return nil, ErrInvalidCredentials
		}
		e.log().Error("account lookup failed", zap.Error(err))
		return nil, ErrLoginUnavailable
	}

	now := time.Now()
	if e.isLockedOut(&account, now) {
		// A locked account denies even the correct password, and the denial
		// is indistinguishable from a bad one.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "locked"}
		})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(plainPassword, account.PasswordHash)
	if err != nil || !ok {
		e.recordLoginFailure(ctx, &account, now)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	if statusErr := accountStatusError(account.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, statusErr, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "account_status"}
		})
		return nil, statusErr
	}
	if e.config.EmailVerification.RequireForLogin && account.Status == AccountPendingVerification {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, ErrAccountUnverified, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "pending_verification"}
		})
		return nil, ErrAccountUnverified
	}

	e.recordLoginSuccess(ctx, &account)
	plainPassword = ""

	// A fresh login ends every prior session for the account.
	if err := e.refreshStore.RevokeAllForAccount(ctx, account.AccountID); err != nil {
		e.log().Error("prior session revocation failed",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return nil, ErrLoginUnavailable
	}

	result, err := e.issuePair(ctx, &account)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, nil, nil)
	return result, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Presenting a rotated-out or revoked token returns [ErrRefreshReuse];
// unknown and expired tokens return [ErrRefreshInvalid]. Exactly one of N
// concurrent calls with the same value can succeed.
func (e *Engine) Refresh(ctx context.Context, refreshValue string) (*LoginResult, error) {
	if e == nil || e.refreshStore == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if e.config.RateLimit.EnableRefreshThrottle && ip != "" {
		if !e.allow(ctx, refreshIPPrefix, ip,
			e.config.RateLimit.MaxRefreshAttempts, e.config.RateLimit.RefreshWindow) {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", ErrRefreshRateLimited, nil)
			e.emitRateLimit(ctx, "refresh", nil)
			return nil, ErrRefreshRateLimited
		}
	}

	if refreshValue == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	accountID, next, err := e.refreshStore.ValidateAndRotate(ctx, refreshValue, e.config.Refresh.TTL)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrRevoked):
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", ErrRefreshReuse, func() map[string]string {
				return map[string]string{"token": maskSecret(refreshValue)}
			})
			return nil, ErrRefreshReuse
		case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, func() map[string]string {
				return map[string]string{"token": maskSecret(refreshValue)}
			})
			return nil, ErrRefreshInvalid
		default:
			e.log().Error("refresh rotation failed", zap.Error(err))
			return nil, ErrRefreshUnavailable
		}
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		// The rotation already happened; the replacement must not outlive a
		// failed status check.
		_ = e.refreshStore.Revoke(ctx, next.Value)
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrRefreshInvalid
		}
		e.log().Error("account lookup failed during refresh", zap.Error(err))
		return nil, ErrRefreshUnavailable
	}
	if statusErr := accountStatusError(account.Status); statusErr != nil {
		_ = e.refreshStore.Revoke(ctx, next.Value)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, account.AccountID, statusErr, nil)
		return nil, statusErr
	}

	access, err := e.issuer.IssueAccess(account.AccountID, account.Identifier, account.Role)
	if err != nil {
		_ = e.refreshStore.Revoke(ctx, next.Value)
		e.log().Error("access token issuance failed", zap.Error(err))
		return nil, ErrRefreshUnavailable
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, account.AccountID, nil, nil)
	return &LoginResult{
		AccountID:    account.AccountID,
		Role:         account.Role,
		AccessToken:  access,
		RefreshToken: next.Value,
	}, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, accountID string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrRefreshInvalid
	}

	if err := e.refreshStore.RevokeAllForAccount(ctx, accountID); err != nil {
		e.log().Error("logout revocation failed",
			zap.String("account_id", accountID),
			zap.Error(err))
		return ErrRefreshUnavailable
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, nil, nil)
	return nil
}

// RevokeRefreshToken revokes the single session behind one refresh token
// value. Unknown and already-terminal tokens are a no-op success.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshValue string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}
	if refreshValue == "" {
		return ErrRefreshInvalid
	}

	if err := e.refreshStore.Revoke(ctx, refreshValue); err != nil {
		e.log().Error("refresh token revocation failed", zap.Error(err))
		return ErrRefreshUnavailable
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, func() map[string]string {
		return map[string]string{"token": maskSecret(refreshValue)}
	})
	return nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// This is the hot path: signature and claim checks only, no store I/O.
// Every failure collapses into [ErrTokenInvalid].
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*token.AccessClaims, error) {
	if e == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.issuer.Validate(tokenStr)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.log().Debug("access token rejected", zap.Error(err))
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (e *Engine) issuePair(ctx context.Context, account *AccountRecord) (*LoginResult, error) {
	access, err := e.issuer.IssueAccess(account.AccountID, account.Identifier, account.Role)
	if err != nil {
		e.log().Error("access token issuance failed", zap.Error(err))
		return nil, ErrLoginUnavailable
	}

	refreshToken, err := e.refreshStore.Issue(ctx, account.AccountID, e.config.Refresh.TTL)
	if err != nil {
		e.log().Error("refresh token issuance failed", zap.Error(err))
		return nil, ErrLoginUnavailable
	}

	return &LoginResult{
		AccountID:    account.AccountID,
		Role:         account.Role,
		AccessToken:  access,
		RefreshToken: refreshToken.Value,
	}, nil
}
