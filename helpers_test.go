package authcore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memAccounts is an in-memory AccountProvider for engine tests.
type memAccounts struct {
	mu   sync.Mutex
	byID map[string]AccountRecord
	next int

	// failLookups makes every read return a transport-style error, to
	// exercise fail-closed paths.
	failLookups bool
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]AccountRecord{}}
}

var errProviderDown = &providerError{}

type providerError struct{}

func (*providerError) Error() string { return "provider down" }

func (m *memAccounts) GetByIdentifier(_ context.Context, identifier string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups {
		return AccountRecord{}, errProviderDown
	}
	for _, account := range m.byID {
		if account.Identifier == identifier {
			return account, nil
		}
	}
	return AccountRecord{}, ErrAccountNotFound
}

func (m *memAccounts) GetByID(_ context.Context, accountID string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookups {
		return AccountRecord{}, errProviderDown
	}
	account, ok := m.byID[accountID]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return account, nil
}

func (m *memAccounts) Create(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.byID {
		if account.Identifier == input.Identifier {
			return AccountRecord{}, ErrProviderDuplicateIdentifier
		}
	}
	m.next++
	account := AccountRecord{
		AccountID:    "acct-" + strconv.Itoa(m.next),
		Identifier:   input.Identifier,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Status:       input.Status,
	}
	m.byID[account.AccountID] = account
	return account, nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = newHash
	m.byID[accountID] = account
	return nil
}

func (m *memAccounts) UpdateStatus(_ context.Context, accountID string, status AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Status = status
	m.byID[accountID] = account
	return nil
}

func (m *memAccounts) UpdateLockout(_ context.Context, accountID string, state LockoutState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Lockout = state
	m.byID[accountID] = account
	return nil
}

func (m *memAccounts) get(t *testing.T, accountID string) AccountRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byID[accountID]
	if !ok {
		t.Fatalf("no account %q", accountID)
	}
	return account
}

func (m *memAccounts) setLockout(accountID string, state LockoutState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := m.byID[accountID]
	account.Lockout = state
	m.byID[accountID] = account
}

func testKeyPEMs(t *testing.T) ([]byte, []byte) {
	t.Helper()

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
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	return privPEM, pubPEM
}

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := defaultConfig()
	cfg.Keys.PrivateKey, cfg.Keys.PublicKey = testKeyPEMs(t)
	cfg.Keys.KeyID = "test-key-1"
	// Cheap argon2 parameters keep the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	return cfg
}

type testEnv struct {
	engine   *Engine
	accounts *memAccounts
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

func (env *testEnv) close() {
	env.engine.Close()
	_ = env.rdb.Close()
	env.mr.Close()
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	accounts := newMemAccounts()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(accounts).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	env := &testEnv{engine: engine, accounts: accounts, mr: mr, rdb: rdb}
	t.Cleanup(env.close)
	return env
}

// registerActive creates an active, verified account with the given
// credentials and returns its id.
func registerActive(t *testing.T, env *testEnv, identifier, password string) string {
	t.Helper()

	result, err := env.engine.Register(context.Background(), RegisterRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if env.engine.config.EmailVerification.Enabled {
		if result.VerificationCode == "" {
			t.Fatal("expected a verification code")
		}
		if err := env.engine.ConfirmEmailVerification(context.Background(), identifier, result.VerificationCode); err != nil {
			t.Fatalf("ConfirmEmailVerification failed: %v", err)
		}
	}
	return result.AccountID
}

func mustLogin(t *testing.T, env *testEnv, identifier, password string) *LoginResult {
	t.Helper()

	result, err := env.engine.Login(context.Background(), identifier, password)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result
}

func ptrTime(v time.Time) *time.Time { return &v }
