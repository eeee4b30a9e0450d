package token

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/apexauth/authcore/keys"
)

// TypeAccess is the claim value carried by every token this issuer mints.
const TypeAccess = "access"

var (
	// ErrInvalid is the uniform verdict for any token that fails validation.
	ErrInvalid = errors.New("token: invalid")
	// ErrNilProvider indicates the issuer was constructed without key material.
	ErrNilProvider = errors.New("token: key provider required")
	// ErrBadTTL indicates a non-positive access token lifetime.
	ErrBadTTL = errors.New("token: access ttl must be > 0")
)

// Config holds issuer tuning parameters.
type Config struct {
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// AccessClaims is the claim set carried by issued access tokens.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies RS256 access tokens. The signing provider supplies
// the active key; verifyKeys may additionally hold historical public keys so
// tokens signed before a key change still verify by their kid.
type Issuer struct {
	config     Config
	provider   *keys.Provider
	verifyKeys map[string]*rsa.PublicKey
}

// NewIssuer validates the configuration and binds the issuer to its key
// provider. Extra providers contribute verification-only keys.
func NewIssuer(cfg Config, provider *keys.Provider, historical ...*keys.Provider) (*Issuer, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if cfg.AccessTTL <= 0 {
		return nil, ErrBadTTL
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}

	verifyKeys := map[string]*rsa.PublicKey{
		provider.KeyID(): provider.VerificationKey(),
	}
	for _, p := range historical {
		if p == nil {
			continue
		}
		if _, exists := verifyKeys[p.KeyID()]; exists {
			return nil, errors.New("token: duplicate kid in verify key set")
		}
		verifyKeys[p.KeyID()] = p.VerificationKey()
	}

	return &Issuer{
		config:     cfg,
		provider:   provider,
		verifyKeys: verifyKeys,
	}, nil
}

// IssueAccess signs a new access token for the account. The subject is the
// account's external identifier; accountID and role travel as private claims.
func (i *Issuer) IssueAccess(accountID, subject, role string) (string, error) {
	now := time.Now()

	claims := AccessClaims{
		UserID:    accountID,
		Role:      role,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.AccessTTL)),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.provider.KeyID()

	return tok.SignedString(i.provider.SigningKey())
}

// Validate verifies signature, expiry, and token type. Every failure maps to
// [ErrInvalid]; the wrapped cause is for internal logging only.
func (i *Issuer) Validate(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := i.verifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}

	claims, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrInvalid
	}

	return claims, nil
}

// KeyID returns the kid the issuer currently signs with.
func (i *Issuer) KeyID() string {
	return i.provider.KeyID()
}
