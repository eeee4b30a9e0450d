package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPrivateKey indicates the private key material was empty or unparseable.
	ErrNoPrivateKey = errors.New("keys: private key material missing or invalid")
	// ErrNoPublicKey indicates the public key material was empty or unparseable.
	ErrNoPublicKey = errors.New("keys: public key material missing or invalid")
	// ErrKeyPairMismatch indicates the public key is not the counterpart of the private key.
	ErrKeyPairMismatch = errors.New("keys: public key does not match private key")
	// ErrEmptyKeyID indicates no key identifier was supplied.
	ErrEmptyKeyID = errors.New("keys: key id required")
)

// pairProbe is signed at load time to prove the configured public key
// verifies what the private key signs.
var pairProbe = []byte("authcore key pair probe v1")

// Provider holds a validated RSA key pair and its stable identifier.
// Providers are immutable after Load and safe for concurrent use.
type Provider struct {
	signingKey      *rsa.PrivateKey
	verificationKey *rsa.PublicKey
	keyID           string
}

// Load parses, normalizes, and validates an RSA key pair. The private key may
// be PKCS#1 or PKCS#8, the public key PKIX or PKCS#1; both accept raw PEM,
// PEM with literal `\n` sequences, or headerless base64 DER. Load fails if the
// pair does not validate, so a Provider can never serve unusable keys.
func Load(privateKeyMaterial, publicKeyMaterial []byte, keyID string) (*Provider, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, ErrEmptyKeyID
	}

	priv, err := parsePrivateKey(privateKeyMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPrivateKey, err)
	}
	pub, err := parsePublicKey(publicKeyMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPublicKey, err)
	}

	if err := probePair(priv, pub); err != nil {
		return nil, err
	}

	return &Provider{
		signingKey:      priv,
		verificationKey: pub,
		keyID:           keyID,
	}, nil
}

// SigningKey returns the private signing key.
func (p *Provider) SigningKey() *rsa.PrivateKey {
	return p.signingKey
}

// VerificationKey returns the public verification key.
func (p *Provider) VerificationKey() *rsa.PublicKey {
	return p.verificationKey
}

// KeyID returns the stable identifier attached to issued tokens as the
// `kid` header.
func (p *Provider) KeyID() string {
	return p.keyID
}

func probePair(priv *rsa.PrivateKey, pub *rsa.PublicKey) error {
	digest := sha256.Sum256(pairProbe)

	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("%w: probe signing failed: %v", ErrKeyPairMismatch, err)
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrKeyPairMismatch
	}
	return nil
}

func parsePrivateKey(material []byte) (*rsa.PrivateKey, error) {
	der, err := normalizeToDER(material, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.New("not a PKCS#1 or PKCS#8 private key")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("PKCS#8 key is not RSA")
	}
	return key, nil
}

func parsePublicKey(material []byte) (*rsa.PublicKey, error) {
	der, err := normalizeToDER(material, "PUBLIC KEY")
	if err != nil {
		return nil, err
	}

	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("PKIX key is not RSA")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, errors.New("not a PKIX or PKCS#1 public key")
	}
	return key, nil
}

// normalizeToDER reduces the three accepted encodings to raw DER bytes.
// The blockHint only labels the synthetic PEM block built for armorless input;
// decoding does not depend on the original block type.
func normalizeToDER(material []byte, blockHint string) ([]byte, error) {
	text := strings.TrimSpace(string(material))
	if text == "" {
		return nil, errors.New("empty key material")
	}

	// Configuration systems flatten newlines to the two-character escape.
	text = strings.ReplaceAll(text, `\n`, "\n")

	if strings.Contains(text, "-----BEGIN") {
		block, _ := pem.Decode([]byte(text))
		if block == nil {
			return nil, errors.New("malformed PEM block")
		}
		return block.Bytes, nil
	}

	// Headerless input: base64 DER, possibly wrapped across lines.
	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, text)

	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("headerless %s material is not base64: %v", strings.ToLower(blockHint), err)
	}
	return der, nil
}
