// Package token issues and verifies signed access tokens over validated RSA
// key material from the keys package.
//
// # Uniform denial
//
// [Issuer.Validate] collapses every failure — bad signature, expiry, malformed
// input, unknown kid, wrong token type — into the single sentinel [ErrInvalid].
// Callers handling untrusted input must not be able to distinguish why a token
// was rejected; only internal logs may carry the reason.
//
// # Architecture boundaries
//
// This package owns claim construction and signature verification. Refresh
// tokens, rate limiting, and account state are the Engine's concern — an access
// token is self-contained and never persisted.
//
// # What this package must NOT do
//
//   - Perform any store I/O.
//   - Import the root authcore package.
//   - Return distinct error values for distinct validation failures.
package token
