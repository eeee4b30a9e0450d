// Package authcore provides the credential and token lifecycle engine for an
// authentication service: JWT access tokens over RSA key material, rotating
// opaque refresh tokens, account lockout, single-use verification and reset
// codes, and Redis-backed fixed-window rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// errors, and value types (LoginResult, MetricsSnapshot, AuditEvent). Key
// material lives in the keys package, token issuance in token, and the
// refresh-store contract in refresh. Coordination primitives (rate limiting,
// Redis record stores) live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or record encodings in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Distinguish unknown accounts from bad passwords or locked accounts in
//     any error returned to a caller.
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies the token signature and claims
// without any store round-trip. Login, Refresh, and code flows are allowed a
// bounded number of Redis round-trips per call.
package authcore
