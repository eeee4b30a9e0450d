package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/apexauth/authcore"
)

type staticAccounts struct {
	account authcore.AccountRecord
}

func (s *staticAccounts) GetByIdentifier(_ context.Context, identifier string) (authcore.AccountRecord, error) {
	if identifier != s.account.Identifier {
		return authcore.AccountRecord{}, authcore.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *staticAccounts) GetByID(_ context.Context, accountID string) (authcore.AccountRecord, error) {
	if accountID != s.account.AccountID {
		return authcore.AccountRecord{}, authcore.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *staticAccounts) Create(_ context.Context, in authcore.CreateAccountInput) (authcore.AccountRecord, error) {
	s.account = authcore.AccountRecord{
		AccountID:    "acct-1",
		Identifier:   in.Identifier,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       in.Status,
	}
	return s.account, nil
}

func (s *staticAccounts) UpdatePasswordHash(_ context.Context, _, hash string) error {
	s.account.PasswordHash = hash
	return nil
}

func (s *staticAccounts) UpdateStatus(_ context.Context, _ string, status authcore.AccountStatus) error {
	s.account.Status = status
	return nil
}

func (s *staticAccounts) UpdateLockout(_ context.Context, _ string, state authcore.LockoutState) error {
	s.account.Lockout = state
	return nil
}

func testEngine(t *testing.T) *authcore.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key generation failed: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("public key marshal failed: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	cfg := authcore.DefaultConfig()
	cfg.Keys.PrivateKey = privPEM
	cfg.Keys.PublicKey = pubPEM
	cfg.Keys.KeyID = "mw-test"
	cfg.EmailVerification.Enabled = false
	cfg.EmailVerification.RequireForLogin = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(&staticAccounts{}).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func loginToken(t *testing.T, engine *authcore.Engine, role string) string {
	t.Helper()

	ctx := context.Background()
	if _, err := engine.Register(ctx, authcore.RegisterRequest{
		Identifier: "user@example.com",
		Password:   "correct-horse-battery",
		Role:       role,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	result, err := engine.Login(ctx, "user@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result.AccessToken
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFromContext(r.Context()); !ok {
			t.Error("expected claims in request context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAccess(t *testing.T) {
	engine := testEngine(t)
	accessToken := loginToken(t, engine, "user")
	handler := RequireAccess(engine)(okHandler(t))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid token", header: "Bearer " + accessToken, want: http.StatusNoContent},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer garbage", want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	engine := testEngine(t)
	accessToken := loginToken(t, engine, "user")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	rec := httptest.NewRecorder()
	RequireRole(engine, "admin")(okHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	RequireRole(engine, "admin", "user")(okHandler(t)).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for allowed role, got %d", rec.Code)
	}
}
