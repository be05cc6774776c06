// Package auth is the public surface of the bearer-token verification
// engine. It authenticates requests against an external identity provider
// and normalizes the outcome into an AuthorizationContext, or rejects the
// request with a member of a small error taxonomy.
//
// Two verification strategies exist and are chosen by token shape:
//
//   - Signed identity tokens (three dot-separated segments) are verified by
//     delegating signature, issuer, audience and expiry checks to the
//     configured IdentityProvider. If that path fails, the same raw token is
//     retried once through the opaque access-token path, because some
//     providers mint access tokens that happen to look like JWTs.
//   - Opaque access tokens (recognized by a provider-reserved prefix) are
//     validated by asking the provider's profile endpoint whether the token
//     is good, using the returned profile as the identity.
//
// Every successful verification converges to the same AuthorizationContext
// shape, keeping downstream consumers strategy-agnostic. Every failure path
// resolves to an absent context plus an error reachable with errors.Is; no
// partial or ambiguous contexts are ever produced.
//
// The engine is stateless between calls. The only process-wide state is the
// VerificationConfig, which is read-only after construction. Provider calls
// honor the caller's context for timeout and cancellation and are never
// retried by the engine; retry policy belongs to the caller.
//
// The package also hosts the two auxiliary validators invoked by the
// surrounding protocol layer rather than by the engine itself:
// ValidateResource (RFC 8707 style origin equality) and ValidateAudience
// (a deliberately permissive audience pre-check). PKCE verification lives in
// the sibling pkce package.
package auth
