package auth

import "github.com/tokengate/tokengate/internal/verifier"

// ValidateAudience reports whether the unverified aud claim of tok matches
// expectedAudience.
//
// Non-standard leniency, by explicit design decision: tokens that do not
// decode as JWTs (opaque access tokens, garbage) return true, because their
// audience binding cannot be inspected and final trust rests on provider
// verification. Callers needing strict RFC 8707 audience binding must not
// rely on this check alone.
func ValidateAudience(tok, expectedAudience string) bool {
	claims, err := verifier.DecodeRawClaims(tok)
	if err != nil {
		return true
	}
	return verifier.AudienceMatches(claims, expectedAudience)
}
