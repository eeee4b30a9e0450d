package keys

import (
	"encoding/base64"
	"math/big"
)

// JWK is one published verification key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the key-set document served unauthenticated so external services
// can verify issued access tokens without the signing secret.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS returns the provider's public key as a single-entry RS256 key set.
func (p *Provider) JWKS() JWKS {
	pub := p.verificationKey

	return JWKS{
		Keys: []JWK{
			{
				Kty: "RSA",
				Use: "sig",
				Alg: "RS256",
				Kid: p.keyID,
				N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
}
