package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/apexauth/authcore/keys"
)

func newTestProvider(t *testing.T, kid string) *keys.Provider {
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
		t.Fatalf("pkix marshal failed: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	provider, err := keys.Load(privPEM, pubPEM, kid)
	if err != nil {
		t.Fatalf("keys.Load failed: %v", err)
	}
	return provider
}

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()

	issuer, err := NewIssuer(Config{AccessTTL: ttl}, newTestProvider(t, "kid-a"))
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	return issuer
}

func TestIssueValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	signed, err := issuer.IssueAccess("acct-1", "a@x.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	claims, err := issuer.Validate(signed)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "acct-1" {
		t.Fatalf("unexpected user_id %q", claims.UserID)
	}
	if claims.Subject != "a@x.com" {
		t.Fatalf("unexpected sub %q", claims.Subject)
	}
	if claims.Role != "member" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("unexpected type %q", claims.TokenType)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		t.Fatal("expected future expiry")
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	issuerA := newTestIssuer(t, time.Hour)

	issuerB, err := NewIssuer(Config{AccessTTL: time.Hour}, newTestProvider(t, "kid-a"))
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	signed, err := issuerA.IssueAccess("acct-1", "a@x.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	// Same kid, unrelated key pair: signature must not verify.
	if _, err := issuerB.Validate(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateRejectsUnknownKid(t *testing.T) {
	issuerA := newTestIssuer(t, time.Hour)
	issuerB, err := NewIssuer(Config{AccessTTL: time.Hour}, newTestProvider(t, "kid-b"))
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	signed, err := issuerA.IssueAccess("acct-1", "a@x.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	if _, err := issuerB.Validate(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateAcceptsHistoricalKid(t *testing.T) {
	old := newTestProvider(t, "kid-old")
	oldIssuer, err := NewIssuer(Config{AccessTTL: time.Hour}, old)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	signed, err := oldIssuer.IssueAccess("acct-1", "a@x.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	current, err := NewIssuer(Config{AccessTTL: time.Hour}, newTestProvider(t, "kid-new"), old)
	if err != nil {
		t.Fatalf("NewIssuer with historical key failed: %v", err)
	}

	claims, err := current.Validate(signed)
	if err != nil {
		t.Fatalf("Validate with historical kid failed: %v", err)
	}
	if claims.UserID != "acct-1" {
		t.Fatalf("unexpected user_id %q", claims.UserID)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t, time.Millisecond)

	signed, err := issuer.IssueAccess("acct-1", "a@x.com", "member")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := issuer.Validate(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for expired token, got %v", err)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	for _, bad := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := issuer.Validate(bad); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", bad, err)
		}
	}
}

func TestNewIssuerConfigErrors(t *testing.T) {
	provider := newTestProvider(t, "kid-a")

	if _, err := NewIssuer(Config{AccessTTL: time.Hour}, nil); !errors.Is(err, ErrNilProvider) {
		t.Fatalf("expected ErrNilProvider, got %v", err)
	}
	if _, err := NewIssuer(Config{}, provider); !errors.Is(err, ErrBadTTL) {
		t.Fatalf("expected ErrBadTTL, got %v", err)
	}
	if _, err := NewIssuer(Config{AccessTTL: time.Hour}, provider, newTestProvider(t, "kid-a")); err == nil {
		t.Fatal("expected duplicate kid error")
	}
}
