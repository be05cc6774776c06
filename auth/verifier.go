package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tokengate/tokengate/internal/verifier"
)

// Option configures optional aspects of a Verifier.
type Option func(*verifierOptions)

type verifierOptions struct {
	logger *slog.Logger
}

// WithLogger sets the structured logger used for verification events.
// Logging is a side effect only; no decision consults it. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *verifierOptions) { o.logger = l }
}

// Verifier is the verification engine facade. Construct once at startup and
// share freely: it is stateless across calls and safe for concurrent use.
type Verifier struct {
	eng      *verifier.Engine
	cfg      VerificationConfig
	provider IdentityProvider
}

// NewVerifier builds a Verifier from an explicit configuration and a
// constructor-injected provider. The config is copied and normalized; the
// engine never reads ambient global or environment state.
func NewVerifier(cfg VerificationConfig, p IdentityProvider, opts ...Option) (*Verifier, error) {
	if p == nil && !cfg.SkipAuth {
		return nil, errors.New("auth: identity provider required")
	}
	cc := cfg.Copy()
	cc.Normalize()
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	var o verifierOptions
	for _, opt := range opts {
		opt(&o)
	}
	eng := verifier.New(verifier.Config{
		ClientID:         cc.ClientID,
		ExpectedAudience: cc.ExpectedAudience,
		OpaquePrefixes:   cc.OpaqueTokenPrefixes,
		DevBypassToken:   cc.DevBypassToken,
		SkipAuth:         cc.SkipAuth,
	}, providerAdapter{p: p}, o.logger)
	return &Verifier{eng: eng, cfg: cc, provider: p}, nil
}

// VerifyRequest extracts a bearer credential from the request headers and
// verifies it. An absent credential yields (nil, ErrNoCredential) with zero
// provider calls; the caller's policy maps that to a protocol-level
// challenge.
func (v *Verifier) VerifyRequest(ctx context.Context, h http.Header) (*AuthorizationContext, error) {
	return v.outcome(v.eng.VerifyHeader(ctx, h))
}

// VerifyToken verifies an already-extracted bearer credential.
func (v *Verifier) VerifyToken(ctx context.Context, tok string) (*AuthorizationContext, error) {
	return v.outcome(v.eng.VerifyToken(ctx, tok))
}

// Config returns a copy of the effective configuration.
func (v *Verifier) Config() VerificationConfig { return v.cfg.Copy() }

// outcome maps engine results onto the public contract: a context on
// success, a taxonomy error otherwise, never both.
func (v *Verifier) outcome(out *verifier.Outcome, err error) (*AuthorizationContext, error) {
	if err != nil {
		switch {
		case errors.Is(err, verifier.ErrNoCredential):
			return nil, ErrNoCredential
		case errors.Is(err, verifier.ErrUnrecognizedFormat):
			return nil, ErrUnrecognizedTokenFormat
		}
		// Provider errors already carry taxonomy sentinels.
		return nil, err
	}
	kind := TokenKindBypass
	provider := "dev-bypass"
	switch out.Kind {
	case verifier.KindIdentityToken:
		kind = TokenKindIdentity
		provider = v.provider.Name()
	case verifier.KindAccessToken:
		kind = TokenKindAccess
		provider = v.provider.Name()
	}
	id := &VerifiedIdentity{
		Subject:       out.Identity.Subject,
		Email:         out.Identity.Email,
		EmailVerified: out.Identity.EmailVerified,
		Name:          out.Identity.Name,
		Picture:       out.Identity.Picture,
		Locale:        out.Identity.Locale,
		HostedDomain:  out.Identity.HostedDomain,
		ExpiresAt:     out.Identity.ExpiresAt,
	}
	return newAuthorizationContext(out.Token, v.cfg.GrantedScopes, kind, out.Audience, provider, id), nil
}

// providerAdapter bridges the public IdentityProvider onto the engine's
// internal contract.
type providerAdapter struct{ p IdentityProvider }

func (a providerAdapter) Name() string {
	if a.p == nil {
		return ""
	}
	return a.p.Name()
}

func (a providerAdapter) VerifySignedToken(ctx context.Context, rawToken, clientID string) (*verifier.Identity, error) {
	id, err := a.p.VerifySignedToken(ctx, rawToken, clientID)
	if err != nil {
		return nil, err
	}
	return toEngineIdentity(id), nil
}

func (a providerAdapter) FetchProfile(ctx context.Context, accessToken string) (*verifier.Identity, error) {
	id, err := a.p.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return toEngineIdentity(id), nil
}

func toEngineIdentity(id *VerifiedIdentity) *verifier.Identity {
	return &verifier.Identity{
		Subject:       id.Subject,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Name,
		Picture:       id.Picture,
		Locale:        id.Locale,
		HostedDomain:  id.HostedDomain,
		ExpiresAt:     id.ExpiresAt,
	}
}
