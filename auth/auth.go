package auth

import (
	"context"
	"time"
)

// TokenKind tags which verification strategy established an identity.
type TokenKind string

const (
	// TokenKindIdentity marks identities established by verifying a signed
	// identity token against the provider's keys.
	TokenKindIdentity TokenKind = "id_token"
	// TokenKindAccess marks identities established by a successful profile
	// lookup with an opaque access token.
	TokenKindAccess TokenKind = "access_token"
	// TokenKindBypass marks identities synthesized by the development bypass
	// paths of VerificationConfig. Never produced with a zero-valued config.
	TokenKindBypass TokenKind = "dev_bypass"
)

// VerifiedIdentity is what an IdentityProvider asserts about a principal
// after a successful verification call. It carries only provider-attested
// attributes; authorization data (scopes) is layered on by the engine.
type VerifiedIdentity struct {
	// Subject is the provider-assigned stable user identifier. Required.
	Subject string

	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Locale        string
	// HostedDomain is the organizational domain asserted by the provider
	// (Google's "hd" claim), empty for consumer accounts.
	HostedDomain string

	// ExpiresAt is the token expiry when the provider can determine it.
	// Zero for opaque tokens: the profile endpoint confirms validity but
	// exposes no introspection data.
	ExpiresAt time.Time
}

// IdentityProvider is the external dependency the engine verifies against.
// Implementations must be safe for concurrent use and must honor ctx for
// timeout and cancellation on every call.
//
// Both methods return a nil identity together with an error from the package
// taxonomy (ErrVerificationFailed, ErrProviderUnavailable, RejectedError,
// ErrMalformedProviderResponse) on failure.
type IdentityProvider interface {
	// Name identifies the provider in profiles and logs, e.g. "google".
	Name() string

	// VerifySignedToken validates a signed identity token: signature,
	// issuer, expiry, and audience (the supplied OAuth client ID).
	VerifySignedToken(ctx context.Context, rawToken, clientID string) (*VerifiedIdentity, error)

	// FetchProfile validates an opaque access token by calling the
	// provider's profile endpoint with it as a bearer credential.
	FetchProfile(ctx context.Context, accessToken string) (*VerifiedIdentity, error)
}

// Profile carries the descriptive attributes of an AuthorizationContext.
type Profile struct {
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	Name          string    `json:"name,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	Locale        string    `json:"locale,omitempty"`
	HostedDomain  string    `json:"hd,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	TokenKind     TokenKind `json:"token_kind,omitempty"`
	// Audience records the audience value the verification was performed
	// against (the OAuth client ID for signed tokens).
	Audience string `json:"audience,omitempty"`
}

// AuthorizationContext is the engine's output: a normalized identity and
// authorization record for one verified request. It is immutable by
// convention, owned by the caller, and discarded when the request completes.
//
// A context is only ever produced after at least one verification strategy
// succeeded against the provider; decoding raw claims alone never suffices.
type AuthorizationContext struct {
	// Token is the original bearer credential, treated as an opaque string.
	Token string

	// Scopes is the fixed capability set granted to any verified principal.
	// It is a static contract of this system, deliberately independent of
	// provider-reported scope.
	Scopes []string

	// SubjectID is the provider-assigned stable user identifier.
	SubjectID string

	// ExpiresAt is the verified token expiry, or zero when the engine
	// cannot determine it (always the case on the opaque path).
	ExpiresAt time.Time

	Profile Profile
}

// HasExpiry reports whether the engine could determine a token expiry.
func (c *AuthorizationContext) HasExpiry() bool { return !c.ExpiresAt.IsZero() }

// HasScope reports whether the granted scope set includes s.
func (c *AuthorizationContext) HasScope(s string) bool {
	for _, have := range c.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// newAuthorizationContext converges a verified identity from either strategy
// into the single output shape. Pure; no side effects.
func newAuthorizationContext(token string, scopes []string, kind TokenKind, audience, provider string, id *VerifiedIdentity) *AuthorizationContext {
	return &AuthorizationContext{
		Token:     token,
		Scopes:    append([]string(nil), scopes...),
		SubjectID: id.Subject,
		ExpiresAt: id.ExpiresAt,
		Profile: Profile{
			Email:         id.Email,
			EmailVerified: id.EmailVerified,
			Name:          id.Name,
			Picture:       id.Picture,
			Locale:        id.Locale,
			HostedDomain:  id.HostedDomain,
			Provider:      provider,
			TokenKind:     kind,
			Audience:      audience,
		},
	}
}
