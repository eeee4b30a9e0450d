// Package refresh defines the contract for persisted, rotating refresh tokens.
//
// # Token format
//
// Opaque base64url values carrying at least 256 bits of entropy. Stores never
// retain the plaintext value — lookups key on its SHA-256 hash.
//
// # State machine
//
// issued → active → {rotated-out, explicitly-revoked, expired}. All terminal
// states deny authorization equally; they stay distinct in store errors so the
// Engine can audit them separately. revoked is a one-way transition.
//
// # Architecture boundaries
//
// This package owns the [Store] interface, the [Token] value type, and the
// shared sentinel errors. Implementations live in internal/stores (Redis) and
// store/postgres (pgx). Fail-closed policy on store failure is enforced by the
// Engine.
//
// # What this package must NOT do
//
//   - Perform any I/O.
//   - Import the root authcore package or any store implementation.
package refresh
