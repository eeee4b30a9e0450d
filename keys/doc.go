// Package keys loads and validates the RSA key material used to sign and verify
// access tokens.
//
// # Input tolerance
//
// Key material arrives through process configuration, which flattens PEM in
// predictable ways. [Load] accepts PKCS#1 or PKCS#8 private keys and PKIX or
// PKCS#1 public keys, in any of three encodings of the same bytes: raw PEM,
// PEM with literal `\n` escape sequences instead of newlines, and headerless
// base64 DER with no PEM armor. All three normalize to the same [Provider].
//
// # Pair validation
//
// A [Provider] never loads an unusable pair: Load signs a fixed probe with the
// private key and verifies it with the public key, so a mismatched pair fails
// at startup instead of at request time.
//
// # What this package must NOT do
//
//   - Perform runtime key rotation — a Provider is immutable after Load.
//   - Import any other authcore package.
//   - Log or export private key material.
package keys
