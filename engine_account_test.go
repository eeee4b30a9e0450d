package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterDefaultsRole(t *testing.T) {
	env := newTestEngine(t, nil)

	result := registerPending(t, env, "user@example.com", "correct-horse-battery")
	if result.Role != "user" {
		t.Fatalf("expected default role, got %q", result.Role)
	}
	if got := env.accounts.get(t, result.AccountID).Status; got != AccountPendingVerification {
		t.Fatalf("expected pending account, got status %d", got)
	}
}

func TestRegisterExplicitRole(t *testing.T) {
	env := newTestEngine(t, nil)

	result, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: "admin@example.com",
		Password:   "correct-horse-battery",
		Role:       "admin",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Role != "admin" {
		t.Fatalf("expected explicit role, got %q", result.Role)
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	env := newTestEngine(t, nil)
	registerPending(t, env, "user@example.com", "correct-horse-battery")

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: "user@example.com",
		Password:   "different-password-1",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEngine(t, nil)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: "user@example.com",
		Password:   "short",
	})
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestRegisterRejectsEmptyIdentifier(t *testing.T) {
	env := newTestEngine(t, nil)

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Password: "correct-horse-battery",
	})
	if !errors.Is(err, ErrRegistrationInvalid) {
		t.Fatalf("expected ErrRegistrationInvalid, got %v", err)
	}
}

func TestRegisterDisabled(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.Registration.Enabled = false
	})

	_, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: "user@example.com",
		Password:   "correct-horse-battery",
	})
	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestRegisterRateLimitedByIP(t *testing.T) {
	env := newTestEngine(t, func(cfg *Config) {
		cfg.Registration.MaxAttempts = 2
		cfg.Registration.Window = time.Minute
	})

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	for i := 0; i < 2; i++ {
		if _, err := env.engine.Register(ctx, RegisterRequest{
			Identifier: "user" + string(rune('a'+i)) + "@example.com",
			Password:   "correct-horse-battery",
		}); err != nil {
			t.Fatalf("registration %d failed: %v", i+1, err)
		}
	}

	_, err := env.engine.Register(ctx, RegisterRequest{
		Identifier: "userc@example.com",
		Password:   "correct-horse-battery",
	})
	if !errors.Is(err, ErrRegistrationRateLimited) {
		t.Fatalf("expected ErrRegistrationRateLimited, got %v", err)
	}
}

func TestChangePasswordFlow(t *testing.T) {
	env := newTestEngine(t, nil)
	accountID := registerActive(t, env, "user@example.com", "correct-horse-battery")
	session := mustLogin(t, env, "user@example.com", "correct-horse-battery")

	ctx := context.Background()
	if err := env.engine.ChangePassword(ctx, accountID, "correct-horse-battery", "entirely-new-secret"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := env.engine.Login(ctx, "user@example.com", "correct-horse-battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}
	mustLogin(t, env, "user@example.com", "entirely-new-secret")

	// Sessions issued under the old password are revoked.
	if _, err := env.engine.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected pre-change session to be revoked, got %v", err)
	}
}

func TestChangePasswordRejectsWrongOld(t *testing.T) {
	env := newTestEngine(t, nil)
	accountID := registerActive(t, env, "user@example.com", "correct-horse-battery")

	err := env.engine.ChangePassword(context.Background(), accountID, "not-the-password", "entirely-new-secret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	env := newTestEngine(t, nil)
	accountID := registerActive(t, env, "user@example.com", "correct-horse-battery")

	err := env.engine.ChangePassword(context.Background(), accountID, "correct-horse-battery", "correct-horse-battery")
	if !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected ErrPasswordReuse, got %v", err)
	}
}

func TestChangePasswordEnforcesPolicy(t *testing.T) {
	env := newTestEngine(t, nil)
	accountID := registerActive(t, env, "user@example.com", "correct-horse-battery")

	err := env.engine.ChangePassword(context.Background(), accountID, "correct-horse-battery", "short")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestChangePasswordUnknownAccount(t *testing.T) {
	env := newTestEngine(t, nil)

	err := env.engine.ChangePassword(context.Background(), "acct-404", "correct-horse-battery", "entirely-new-secret")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
