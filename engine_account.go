package authcore

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// New accounts start in PendingVerification when email verification is
// enabled; the returned verification code is for caller-side delivery and is
// never persisted or logged in plaintext.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return nil, ErrRegistrationDisabled
	}
	ip := clientIPFromContext(ctx)

	limited := !e.allow(ctx, registrationIDPrefix, req.Identifier,
		e.config.Registration.MaxAttempts, e.config.Registration.Window)
	if !limited && ip != "" {
		limited = !e.allow(ctx, registrationIPPrefix, ip,
			e.config.Registration.MaxAttempts, e.config.Registration.Window)
	}
	if limited {
		e.metricInc(MetricRegistrationRateLimited)
		e.emitAudit(ctx, auditEventRegistrationRateLimited, false, "", ErrRegistrationRateLimited, func() map[string]string {
			return map[string]string{"identifier": req.Identifier}
		})
		e.emitRateLimit(ctx, "registration", func() map[string]string {
			return map[string]string{"identifier": req.Identifier}
		})
		return nil, ErrRegistrationRateLimited
	}

	if req.Identifier == "" {
		return nil, ErrRegistrationInvalid
	}
	if len(req.Password) < e.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}

	role := req.Role
	if role == "" {
		role = e.config.Registration.DefaultRole
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.log().Error("password hash failed during registration", zap.Error(err))
		return nil, ErrRegistrationUnavailable
	}

	status := AccountActive
	if e.config.EmailVerification.Enabled {
		status = AccountPendingVerification
	}

	account, err := e.accounts.Create(ctx, CreateAccountInput{
		Identifier:   req.Identifier,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditEventRegistrationDuplicate, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{"identifier": req.Identifier}
			})
			return nil, ErrAccountExists
		}
		e.log().Error("account creation failed", zap.Error(err))
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", ErrRegistrationUnavailable, nil)
		return nil, ErrRegistrationUnavailable
	}

	result := &RegisterResult{
		AccountID: account.AccountID,
		Role:      account.Role,
	}

	if e.config.EmailVerification.Enabled {
		code, err := e.issueVerificationCode(ctx, account.AccountID)
		if err != nil {
			// The account exists but has no reachable code yet; the caller
			// can recover through RequestEmailVerification.
			e.log().Warn("verification code issuance failed after registration",
				zap.String("account_id", account.AccountID),
				zap.Error(err))
		} else {
			result.VerificationCode = code
		}
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, account.AccountID, nil, func() map[string]string {
		return map[string]string{"identifier": req.Identifier, "role": account.Role}
	})
	return result, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// A successful change revokes every refresh token for the account; active
// access tokens run out on their own expiry.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		e.log().Error("account lookup failed during password change", zap.Error(err))
		return ErrAccountUnavailable
	}

	ok, err := e.passwordHash.Verify(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, accountID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if len(newPassword) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}
	if newPassword == oldPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, accountID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.log().Error("password hash failed during password change", zap.Error(err))
		return ErrAccountUnavailable
	}
	if err := e.accounts.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		e.log().Error("password hash update failed", zap.Error(err))
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, ErrAccountUnavailable, nil)
		return ErrAccountUnavailable
	}

	if err := e.refreshStore.RevokeAllForAccount(ctx, accountID); err != nil {
		// The password is already changed; revocation failure is logged and
		// surfaced so the caller can retry the logout.
		e.log().Error("session revocation failed after password change",
			zap.String("account_id", accountID),
			zap.Error(err))
		return ErrRefreshUnavailable
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, accountID, nil, nil)
	return nil
}
