// Package oidcprovider implements auth.IdentityProvider on top of OpenID
// Connect discovery. Signed identity tokens are verified with the issuer's
// published keys; opaque access tokens are validated by calling the
// discovered userinfo endpoint with the token as a bearer credential.
package oidcprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/tokengate/tokengate/auth"
)

// GoogleIssuer is the issuer URL for Google's OpenID Connect provider.
const GoogleIssuer = "https://accounts.google.com"

// maxProfileBody bounds how much of a userinfo response we are willing to
// read. Real payloads are well under 4 KiB.
const maxProfileBody = 1 << 20

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for discovery and userinfo calls.
// Defaults to http.DefaultClient; supply a client with a Timeout in
// production.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithUserInfoEndpoint overrides the discovered userinfo endpoint.
func WithUserInfoEndpoint(u string) Option {
	return func(p *Provider) { p.userInfoEndpoint = u }
}

// WithName overrides the provider name recorded into profiles.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// Provider is a discovery-backed identity provider. Safe for concurrent use;
// construct once at startup.
type Provider struct {
	name             string
	issuer           string
	provider         *oidc.Provider
	userInfoEndpoint string
	httpClient       *http.Client
}

var _ auth.IdentityProvider = (*Provider)(nil)

// New performs OIDC discovery against issuer and returns a provider. The
// discovery document must carry a userinfo_endpoint, since opaque token
// validation depends on it.
func New(ctx context.Context, issuer string, opts ...Option) (*Provider, error) {
	if issuer == "" {
		return nil, errors.New("oidcprovider: issuer is required")
	}
	p := &Provider{name: "oidc", issuer: issuer, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}

	ctx = oidc.ClientContext(ctx, p.httpClient)
	discovered, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidcprovider: discovery failed: %w", err)
	}
	p.provider = discovered

	if p.userInfoEndpoint == "" {
		var meta struct {
			UserInfo string `json:"userinfo_endpoint"`
		}
		if err := discovered.Claims(&meta); err != nil {
			return nil, fmt.Errorf("oidcprovider: invalid discovery metadata: %w", err)
		}
		if meta.UserInfo == "" {
			return nil, errors.New("oidcprovider: discovery lacks userinfo_endpoint")
		}
		p.userInfoEndpoint = meta.UserInfo
	}
	return p, nil
}

// NewGoogle is New against Google's issuer with the provider name "google".
func NewGoogle(ctx context.Context, opts ...Option) (*Provider, error) {
	return New(ctx, GoogleIssuer, append([]Option{WithName("google")}, opts...)...)
}

func (p *Provider) Name() string { return p.name }

// idTokenClaims is the subset of identity-token claims the engine consumes.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	HostedDomain  string `json:"hd"`
}

// VerifySignedToken delegates signature, issuer, expiry, and audience
// validation to the issuer's verification routine, with clientID as the
// expected audience.
func (p *Provider) VerifySignedToken(ctx context.Context, rawToken, clientID string) (*auth.VerifiedIdentity, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)
	idToken, err := p.provider.Verifier(&oidc.Config{ClientID: clientID}).Verify(ctx, rawToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", auth.ErrVerificationFailed, err)
	}
	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: id token claims: %v", auth.ErrMalformedProviderResponse, err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: id token missing sub", auth.ErrMalformedProviderResponse)
	}
	return &auth.VerifiedIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Locale:        claims.Locale,
		HostedDomain:  claims.HostedDomain,
		ExpiresAt:     idToken.Expiry,
	}, nil
}

// profilePayload tolerates both the OIDC userinfo shape (sub/email_verified)
// and Google's v2 profile shape (id/verified_email).
type profilePayload struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
	HostedDomain  string `json:"hd"`
}

// FetchProfile validates an opaque access token by calling the userinfo
// endpoint with it. A non-success status is a rejection carrying the
// provider's status code; no expiry is determined on this path.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*auth.VerifiedIdentity, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), ts)
	client.Timeout = p.httpClient.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build userinfo request: %v", auth.ErrProviderUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo call: %v", auth.ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBody))
		return nil, &auth.RejectedError{Status: resp.StatusCode}
	}

	var payload profilePayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: userinfo payload: %v", auth.ErrMalformedProviderResponse, err)
	}
	subject := payload.Sub
	if subject == "" {
		subject = payload.ID
	}
	if subject == "" {
		return nil, fmt.Errorf("%w: userinfo payload missing subject", auth.ErrMalformedProviderResponse)
	}
	return &auth.VerifiedIdentity{
		Subject:       subject,
		Email:         payload.Email,
		EmailVerified: payload.EmailVerified || payload.VerifiedEmail,
		Name:          payload.Name,
		Picture:       payload.Picture,
		Locale:        payload.Locale,
		HostedDomain:  payload.HostedDomain,
		// ExpiresAt stays zero: the userinfo flow confirms validity but the
		// provider exposes no introspection data for opaque tokens.
	}, nil
}
