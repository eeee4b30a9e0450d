// Package middleware exposes HTTP middleware adapters built on top of
// authcore.Engine access token validation.
//
// # Guards
//
//   - [RequireAccess] rejects requests without a valid bearer token.
//   - [RequireRole] additionally checks the token's role claim.
//
// Each guard reads the Authorization header, calls Engine.ValidateAccess, and
// injects validated claims into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself and every decision beyond
// pass/reject is delegated to Engine.ValidateAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Write response bodies beyond the generic unauthorized/forbidden text.
package middleware
