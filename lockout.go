package authcore

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Lockout state lives inside the account record and is persisted through the
// AccountProvider, so it survives engine restarts and is shared across
// replicas. Concurrent failures race on the read-modify-write; the account
// still locks within a bounded number of extra attempts, which is accepted.

func (e *Engine) isLockedOut(account *AccountRecord, now time.Time) bool {
	if !e.config.Lockout.Enabled {
		return false
	}
	until := account.Lockout.LockedUntil
	return until != nil && now.Before(*until)
}

// recordLoginFailure advances the failure counter and arms the lock when the
// threshold is reached. Persistence errors are logged and swallowed: the
// login already failed and the caller's denial must not change.
func (e *Engine) recordLoginFailure(ctx context.Context, account *AccountRecord, now time.Time) {
	if !e.config.Lockout.Enabled {
		return
	}

	state := account.Lockout
	state.FailedAttempts++
	state.LastFailedAt = &now
	if state.FailedAttempts >= e.config.Lockout.Threshold {
		until := now.Add(e.config.Lockout.Duration)
		state.LockedUntil = &until
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, account.AccountID, nil, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(state.FailedAttempts),
				"locked_until":    until.UTC().Format(time.RFC3339),
			}
		})
	}

	if err := e.accounts.UpdateLockout(ctx, account.AccountID, state); err != nil {
		e.log().Warn("lockout state update failed",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return
	}
	account.Lockout = state
}

// recordLoginSuccess clears the failure counter. A stale lock that has
// already expired is cleared on the same write.
func (e *Engine) recordLoginSuccess(ctx context.Context, account *AccountRecord) {
	if !e.config.Lockout.Enabled {
		return
	}
	if account.Lockout.FailedAttempts == 0 && account.Lockout.LockedUntil == nil {
		return
	}

	state := LockoutState{}
	if err := e.accounts.UpdateLockout(ctx, account.AccountID, state); err != nil {
		e.log().Warn("lockout state reset failed",
			zap.String("account_id", account.AccountID),
			zap.Error(err))
		return
	}
	account.Lockout = state
}
