package auth

import "errors"

// defaultOpaquePrefixes lists the token prefixes the provider reserves for
// opaque access tokens. Google issues access tokens beginning "ya29.".
var defaultOpaquePrefixes = []string{"ya29."}

// defaultGrantedScopes is the fixed capability set granted to every verified
// principal. Verification grants a uniform internal contract; provider scope
// is never consulted.
var defaultGrantedScopes = []string{"api:read", "api:invoke"}

// VerificationConfig is the immutable process-wide configuration of the
// verification engine. Construct it once at startup, call Validate, and pass
// it explicitly into NewVerifier. The engine never reads ambient global or
// environment state.
//
// A zero value is invalid; ClientID is required.
type VerificationConfig struct {
	// ClientID is the OAuth client identifier of this application. Signed
	// identity tokens are verified against it as the expected audience.
	ClientID string

	// ExpectedAudience is the serving origin used by the non-authoritative
	// audience pre-check on decoded (unverified) claims. A mismatch is
	// logged, never rejected: some issuers omit application audiences, so
	// final trust rests solely on provider verification. Optional.
	ExpectedAudience string

	// GrantedScopes is the fixed scope set stamped onto every successful
	// AuthorizationContext. Defaults to {"api:read", "api:invoke"}.
	GrantedScopes []string

	// OpaqueTokenPrefixes are the literal prefixes that classify a
	// credential as an opaque access token. Defaults to {"ya29."}.
	OpaqueTokenPrefixes []string

	// DevBypassToken, when non-empty, lets a credential equal to it (in
	// constant time) produce a synthetic context without any provider call.
	// Development builds only; zero value disables the path.
	DevBypassToken string

	// SkipAuth short-circuits verification entirely, synthesizing a context
	// for every request. Development builds only; zero value disables.
	SkipAuth bool
}

// Normalize fills defaults in place. Safe to call more than once.
func (c *VerificationConfig) Normalize() {
	if len(c.GrantedScopes) == 0 {
		c.GrantedScopes = append([]string(nil), defaultGrantedScopes...)
	}
	if len(c.OpaqueTokenPrefixes) == 0 {
		c.OpaqueTokenPrefixes = append([]string(nil), defaultOpaquePrefixes...)
	}
}

// Validate returns an error if required invariants are not met.
func (c VerificationConfig) Validate() error {
	if c.ClientID == "" && !c.SkipAuth {
		return errors.New("auth: client ID required")
	}
	for _, s := range c.GrantedScopes {
		if s == "" {
			return errors.New("auth: empty granted scope entry")
		}
	}
	for _, p := range c.OpaqueTokenPrefixes {
		if p == "" {
			return errors.New("auth: empty opaque token prefix")
		}
	}
	return nil
}

// Copy returns a deep copy safe for mutation by the caller.
func (c VerificationConfig) Copy() VerificationConfig {
	dup := c
	dup.GrantedScopes = append([]string(nil), c.GrantedScopes...)
	dup.OpaqueTokenPrefixes = append([]string(nil), c.OpaqueTokenPrefixes...)
	return dup
}
