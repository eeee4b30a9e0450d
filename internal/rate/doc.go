// Package rate provides the fixed-window Redis counter primitive behind every
// request-rate decision in authcore.
//
// # Window semantics
//
// Fixed windows, not sliding: INCR, then EXPIRE NX. The TTL is attached when
// the key is created and never refreshed by later increments, so a window
// always closes windowSeconds after its first hit. EXPIRE NX runs on every
// increment, which also repairs a counter whose create-then-expire sequence
// was interrupted — no key can survive without a TTL.
//
// # Failure policy
//
// Rate limiting is a denial-of-service mitigation, not a security boundary:
// any Redis error makes [Limiter.Allow] report the request as allowed. Callers
// that need fail-closed behavior are in the wrong package.
//
// # What this package must NOT do
//
//   - Implement per-flow policy (key prefixes and limits belong to the Engine).
//   - Be imported outside the authcore module.
package rate
