// Package stores contains the Redis-backed persistence for refresh tokens and
// single-use codes.
//
// # Records
//
// Both stores keep compact binary records with a leading version byte.
// Refresh rotation is a Lua compare-and-swap on the revoked flag so exactly
// one of N concurrent presenters of the same token wins. Code consumption is
// a WATCH/MULTI transaction so attempt counting and the single-use flip are
// atomic per account key.
//
// # What this package must NOT do
//
//   - Decide fail-open/fail-closed policy (the Engine owns that).
//   - Log or return plaintext secrets — records hold SHA-256 hashes only.
//   - Be imported outside the authcore module.
package stores
