// Package jwksprovider implements auth.IdentityProvider without OIDC
// discovery: signed identity tokens are verified against a statically
// configured issuer and key set (a remote JWKS URL or a local JWKS file),
// and opaque access tokens are validated against an explicitly configured
// userinfo endpoint.
//
// This is the provider to reach for when the issuer publishes no discovery
// document, or in air-gapped deployments where keys are distributed as
// files.
package jwksprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tokengate/tokengate/auth"
)

const maxProfileBody = 1 << 20

// Config controls validation. Exactly one of JWKSURL and JWKSFile must be
// set. UserInfoEndpoint is required only if opaque access tokens (or the
// signed-token fallback) should be honored.
type Config struct {
	Issuer           string
	JWKSURL          string
	JWKSFile         string
	UserInfoEndpoint string
	AllowedAlgs      []string      // default: ["RS256"]
	Leeway           time.Duration // clock skew tolerance, default 60s
	Name             string        // provider name in profiles, default "jwks"
	HTTPClient       *http.Client
}

// Provider verifies tokens against a static key set. Safe for concurrent
// use. Call Close when a JWKS file watcher was started.
type Provider struct {
	cfg        Config
	keyfunc    jwt.Keyfunc
	httpClient *http.Client
	closer     io.Closer
}

var _ auth.IdentityProvider = (*Provider)(nil)

// New builds a Provider. For JWKSURL the key set auto-refreshes over HTTP;
// for JWKSFile the keys are reloaded whenever the file changes on disk.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwksprovider: issuer is required")
	}
	if (cfg.JWKSURL == "") == (cfg.JWKSFile == "") {
		return nil, errors.New("jwksprovider: exactly one of JWKSURL and JWKSFile is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 60 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "jwks"
	}
	p := &Provider{cfg: cfg, httpClient: cfg.HTTPClient}
	if p.httpClient == nil {
		p.httpClient = http.DefaultClient
	}

	var base jwt.Keyfunc
	switch {
	case cfg.JWKSURL != "":
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("jwksprovider: jwks init failed: %w", err)
		}
		base = kf.Keyfunc
	default:
		fk, err := newFileKeys(cfg.JWKSFile)
		if err != nil {
			return nil, err
		}
		base = fk.keyfunc
		p.closer = fk
	}

	p.keyfunc = func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		allowed := false
		for _, a := range cfg.AllowedAlgs {
			if alg == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("disallowed alg: %s", alg)
		}
		return base(t)
	}
	return p, nil
}

// Close releases the JWKS file watcher, if any.
func (p *Provider) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Provider) Name() string { return p.cfg.Name }

// VerifySignedToken validates signature, issuer, expiry, and audience
// (clientID) against the configured key set.
func (p *Provider) VerifySignedToken(ctx context.Context, rawToken, clientID string) (*auth.VerifiedIdentity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(p.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(clientID),
		jwt.WithLeeway(p.cfg.Leeway),
	)
	parsed, err := parser.Parse(rawToken, p.keyfunc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", auth.ErrVerificationFailed, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", auth.ErrMalformedProviderResponse)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", auth.ErrVerificationFailed)
	}
	id := &auth.VerifiedIdentity{Subject: sub}
	id.Email, _ = claims["email"].(string)
	id.EmailVerified, _ = claims["email_verified"].(bool)
	id.Name, _ = claims["name"].(string)
	id.Picture, _ = claims["picture"].(string)
	id.Locale, _ = claims["locale"].(string)
	id.HostedDomain, _ = claims["hd"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

// FetchProfile validates an opaque token against the configured userinfo
// endpoint. Without one this strategy always fails: the provider cannot
// establish trust in an opaque credential.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*auth.VerifiedIdentity, error) {
	if p.cfg.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("%w: no userinfo endpoint configured for opaque tokens", auth.ErrVerificationFailed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", auth.ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo call: %v", auth.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBody))
		return nil, &auth.RejectedError{Status: resp.StatusCode}
	}

	var payload struct {
		Sub           string `json:"sub"`
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Locale        string `json:"locale"`
		HostedDomain  string `json:"hd"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: userinfo payload: %v", auth.ErrMalformedProviderResponse, err)
	}
	sub := payload.Sub
	if sub == "" {
		sub = payload.ID
	}
	if sub == "" {
		return nil, fmt.Errorf("%w: userinfo payload missing subject", auth.ErrMalformedProviderResponse)
	}
	return &auth.VerifiedIdentity{
		Subject:       sub,
		Email:         payload.Email,
		EmailVerified: payload.EmailVerified,
		Name:          payload.Name,
		Picture:       payload.Picture,
		Locale:        payload.Locale,
		HostedDomain:  payload.HostedDomain,
	}, nil
}
