package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apexauth/authcore/internal"
)

func newTestCodeStore(t *testing.T) (*CodeStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewCodeStore(rdb, "evc"), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func saveCode(t *testing.T, store *CodeStore, accountID, secret string, ttl time.Duration) [32]byte {
	t.Helper()

	hash := internal.HashSecret(secret)
	record := &CodeRecord{
		SecretHash: hash,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := store.Save(context.Background(), accountID, record, ttl); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return hash
}

func TestCodeConsumeMatch(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	hash := saveCode(t, store, "acct-1", "483920", 10*time.Minute)

	record, err := store.Consume(context.Background(), "acct-1", hash, 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if record.SecretHash != hash {
		t.Fatal("consumed record hash mismatch")
	}

	// Used is one-way: the same code cannot be consumed twice.
	if _, err := store.Consume(context.Background(), "acct-1", hash, 3); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound on reuse, got %v", err)
	}
}

func TestCodeWrongGuessesThenCorrect(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	ctx := context.Background()
	hash := saveCode(t, store, "acct-1", "483920", 10*time.Minute)
	wrong := internal.HashSecret("000000")

	for i := 0; i < 2; i++ {
		if _, err := store.Consume(ctx, "acct-1", wrong, 3); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("guess %d: expected ErrCodeMismatch, got %v", i+1, err)
		}
	}

	// Two failures leave one attempt; the correct code still works.
	if _, err := store.Consume(ctx, "acct-1", hash, 3); err != nil {
		t.Fatalf("correct code after two misses failed: %v", err)
	}
}

func TestCodeAttemptCap(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	ctx := context.Background()
	hash := saveCode(t, store, "acct-1", "483920", 10*time.Minute)
	wrong := internal.HashSecret("000000")

	for i := 0; i < 2; i++ {
		if _, err := store.Consume(ctx, "acct-1", wrong, 3); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("guess %d: expected ErrCodeMismatch, got %v", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, "acct-1", wrong, 3); !errors.Is(err, ErrCodeAttemptsExceeded) {
		t.Fatalf("third miss should exceed the cap, got %v", err)
	}

	// The code is permanently invalid even though time remains.
	if _, err := store.Consume(ctx, "acct-1", hash, 3); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after cap, got %v", err)
	}
}

func TestCodeNoCapForHighEntropyTokens(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	ctx := context.Background()
	hash := saveCode(t, store, "acct-1", "opaque-reset-token", 10*time.Minute)
	wrong := internal.HashSecret("guess")

	for i := 0; i < 10; i++ {
		if _, err := store.Consume(ctx, "acct-1", wrong, 0); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("guess %d: expected ErrCodeMismatch, got %v", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, "acct-1", hash, 0); err != nil {
		t.Fatalf("correct token failed with cap disabled: %v", err)
	}
}

func TestCodeOverwriteMakesOldUnreachable(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	ctx := context.Background()
	oldHash := saveCode(t, store, "acct-1", "111111", 10*time.Minute)
	newHash := saveCode(t, store, "acct-1", "222222", 10*time.Minute)

	// The replaced code now counts as a wrong guess.
	if _, err := store.Consume(ctx, "acct-1", oldHash, 3); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch for replaced code, got %v", err)
	}
	if _, err := store.Consume(ctx, "acct-1", newHash, 3); err != nil {
		t.Fatalf("latest code failed: %v", err)
	}
}

func TestCodeExpiry(t *testing.T) {
	store, mr, done := newTestCodeStore(t)
	defer done()

	ctx := context.Background()
	hash := saveCode(t, store, "acct-1", "483920", time.Minute)

	mr.FastForward(2 * time.Minute)

	if _, err := store.Consume(ctx, "acct-1", hash, 3); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after expiry, got %v", err)
	}
}

func TestCodeMissingAccount(t *testing.T) {
	store, _, done := newTestCodeStore(t)
	defer done()

	hash := internal.HashSecret("483920")
	if _, err := store.Consume(context.Background(), "acct-missing", hash, 3); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

func TestCodeRedisDown(t *testing.T) {
	store, mr, done := newTestCodeStore(t)
	defer done()

	hash := saveCode(t, store, "acct-1", "483920", time.Minute)
	mr.Close()

	if _, err := store.Consume(context.Background(), "acct-1", hash, 3); !errors.Is(err, ErrCodeRedisUnavailable) {
		t.Fatalf("expected ErrCodeRedisUnavailable, got %v", err)
	}
}

func TestCodePrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	verification := NewCodeStore(rdb, "evc")
	reset := NewCodeStore(rdb, "prt")

	ctx := context.Background()
	hash := internal.HashSecret("483920")
	record := &CodeRecord{SecretHash: hash, ExpiresAt: time.Now().Add(time.Minute).Unix()}
	if err := verification.Save(ctx, "acct-1", record, time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A verification code is not visible through the reset prefix.
	if _, err := reset.Consume(ctx, "acct-1", hash, 0); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound across prefixes, got %v", err)
	}
	if _, err := verification.Consume(ctx, "acct-1", hash, 3); err != nil {
		t.Fatalf("Consume under owning prefix failed: %v", err)
	}
}
