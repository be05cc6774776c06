// Package verifier implements the token verification engine: header
// extraction, shape classification, the ordered verification strategies, and
// the non-authoritative claim pre-checks. The public auth package wraps it.
package verifier

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrNoCredential is returned when no header carried a bearer credential.
var ErrNoCredential = errors.New("no bearer credential found")

// ErrUnrecognizedFormat is returned for credentials matching no known token
// shape. No provider call is made.
var ErrUnrecognizedFormat = errors.New("unrecognized token format")

// Identity is a provider-attested principal. ExpiresAt is zero when the
// provider cannot determine the token's expiry (the opaque path).
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Locale        string
	HostedDomain  string
	ExpiresAt     time.Time
}

// Provider is the engine's view of the external identity provider. Both
// calls must honor ctx and return an error on any verification failure.
type Provider interface {
	Name() string
	VerifySignedToken(ctx context.Context, rawToken, clientID string) (*Identity, error)
	FetchProfile(ctx context.Context, accessToken string) (*Identity, error)
}

// Kind tags which strategy established an Outcome.
type Kind int

const (
	KindIdentityToken Kind = iota
	KindAccessToken
	KindBypass
)

// Config mirrors the engine-relevant subset of the public
// VerificationConfig. All fields are read-only after construction.
type Config struct {
	ClientID         string
	ExpectedAudience string
	OpaquePrefixes   []string
	DevBypassToken   string
	SkipAuth         bool
}

// Outcome is a successful verification: the attested identity, the strategy
// that produced it, and the audience the verification was performed against.
type Outcome struct {
	Token    string
	Identity *Identity
	Kind     Kind
	Audience string
}

// Engine runs the verification flow. Stateless across calls; safe for
// concurrent use.
type Engine struct {
	cfg      Config
	provider Provider
	log      *slog.Logger
}

func New(cfg Config, p Provider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, provider: p, log: log}
}

// VerifyHeader extracts a bearer credential from the request headers and
// verifies it. Absent credentials return ErrNoCredential without any
// provider call.
func (e *Engine) VerifyHeader(ctx context.Context, h http.Header) (*Outcome, error) {
	if e.cfg.SkipAuth {
		return e.bypass(""), nil
	}
	tok, ok := ExtractBearer(h)
	if !ok {
		e.log.DebugContext(ctx, "auth.check.missing")
		return nil, ErrNoCredential
	}
	return e.VerifyToken(ctx, tok)
}

// VerifyToken classifies tok and runs the strategies for its shape in order,
// short-circuiting on the first success. For signed identity tokens the
// access-token strategy runs as a fallback exactly once, because some
// providers issue access tokens with three dot-separated segments.
func (e *Engine) VerifyToken(ctx context.Context, tok string) (*Outcome, error) {
	if e.cfg.SkipAuth {
		return e.bypass(tok), nil
	}
	if e.cfg.DevBypassToken != "" &&
		subtle.ConstantTimeCompare([]byte(tok), []byte(e.cfg.DevBypassToken)) == 1 {
		e.log.WarnContext(ctx, "auth.verify.dev_bypass")
		return e.bypass(tok), nil
	}

	shape := ClassifyToken(tok, e.cfg.OpaquePrefixes)
	if shape == ShapeUnrecognized {
		e.log.InfoContext(ctx, "auth.verify.unrecognized")
		return nil, ErrUnrecognizedFormat
	}

	if shape == ShapeSignedIdentity {
		e.precheckAudience(ctx, tok)
	}

	var errs []error
	for _, s := range e.strategiesFor(shape) {
		id, err := s.verify(ctx, tok)
		if err != nil {
			e.log.InfoContext(ctx, "auth.verify.strategy_failed",
				slog.String("strategy", s.name),
				slog.String("err", err.Error()))
			errs = append(errs, err)
			continue
		}
		e.log.DebugContext(ctx, "auth.verify.ok",
			slog.String("strategy", s.name),
			slog.String("sub", id.Subject))
		return &Outcome{Token: tok, Identity: id, Kind: s.kind, Audience: s.audience}, nil
	}
	return nil, fmt.Errorf("all verification strategies failed: %w", errors.Join(errs...))
}

type strategy struct {
	name     string
	kind     Kind
	audience string
	verify   func(ctx context.Context, tok string) (*Identity, error)
}

// strategiesFor returns the ordered strategy list for a token shape. The
// signed path carries the opaque fallback as its second entry.
func (e *Engine) strategiesFor(shape Shape) []strategy {
	signed := strategy{
		name:     "signed_identity",
		kind:     KindIdentityToken,
		audience: e.cfg.ClientID,
		verify: func(ctx context.Context, tok string) (*Identity, error) {
			return e.provider.VerifySignedToken(ctx, tok, e.cfg.ClientID)
		},
	}
	opaque := strategy{
		name:   "opaque_access",
		kind:   KindAccessToken,
		verify: e.provider.FetchProfile,
	}
	switch shape {
	case ShapeSignedIdentity:
		return []strategy{signed, opaque}
	case ShapeOpaqueAccess:
		return []strategy{opaque}
	}
	return nil
}

// precheckAudience decodes the unverified claims and logs an audience
// mismatch. Deliberately permissive: some identity-token issuers omit
// application-specific audiences, so trust is established only by the
// provider verification that follows. Decode failure degrades silently to
// "no pre-check available".
func (e *Engine) precheckAudience(ctx context.Context, tok string) {
	if e.cfg.ExpectedAudience == "" {
		return
	}
	claims, err := DecodeRawClaims(tok)
	if err != nil {
		e.log.DebugContext(ctx, "auth.precheck.decode_failed", slog.String("err", err.Error()))
		return
	}
	if !AudienceMatches(claims, e.cfg.ExpectedAudience) {
		e.log.WarnContext(ctx, "auth.precheck.audience_mismatch",
			slog.String("expected", e.cfg.ExpectedAudience))
	}
}

// bypass synthesizes an identity for the development-only override paths.
func (e *Engine) bypass(tok string) *Outcome {
	return &Outcome{
		Token:    tok,
		Identity: &Identity{Subject: "dev", Name: "Development Bypass"},
		Kind:     KindBypass,
	}
}
