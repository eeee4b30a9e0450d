// Package internal contains helper utilities that are intentionally private to
// authcore, including secure random code generation.
//
// # Sub-packages
//
//   - rate — fixed-window Redis rate limit primitive (fail-open by policy)
//   - stores — Redis-backed refresh token and single-use code stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
