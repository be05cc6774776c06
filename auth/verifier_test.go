package auth_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/tokengate/tokengate/auth"
	"github.com/tokengate/tokengate/auth/authtest"
)

func newVerifier(t *testing.T, p auth.IdentityProvider, mutate func(*auth.VerificationConfig)) *auth.Verifier {
	t.Helper()
	cfg := auth.VerificationConfig{ClientID: "client-123"}
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := auth.NewVerifier(cfg, p)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifyRequestNoCredential(t *testing.T) {
	p := &authtest.FakeProvider{}
	v := newVerifier(t, p, nil)

	ac, err := v.VerifyRequest(context.Background(), http.Header{})
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
	if ac != nil {
		t.Fatal("context must be absent")
	}
	if p.SignedCalls()+p.ProfileCalls() != 0 {
		t.Error("absent credential must not reach the provider")
	}
}

func TestVerifyTokenUnrecognizedFormat(t *testing.T) {
	v := newVerifier(t, &authtest.FakeProvider{}, nil)

	_, err := v.VerifyToken(context.Background(), "definitely-not-a-token")
	if !errors.Is(err, auth.ErrUnrecognizedTokenFormat) {
		t.Fatalf("err = %v, want ErrUnrecognizedTokenFormat", err)
	}
}

func TestVerifyTokenOpaqueSuccess(t *testing.T) {
	p := &authtest.FakeProvider{
		ProviderName:    "google",
		ProfileIdentity: &auth.VerifiedIdentity{Subject: "123", Email: "a@b.com", EmailVerified: true},
	}
	v := newVerifier(t, p, nil)

	ac, err := v.VerifyToken(context.Background(), "ya29.sampletoken")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if ac.SubjectID != "123" {
		t.Errorf("SubjectID = %q, want 123", ac.SubjectID)
	}
	if ac.Profile.Email != "a@b.com" {
		t.Errorf("Profile.Email = %q, want a@b.com", ac.Profile.Email)
	}
	if ac.HasExpiry() {
		t.Error("opaque tokens must not carry an expiry")
	}
	if ac.Token != "ya29.sampletoken" {
		t.Errorf("Token = %q; original credential must be preserved", ac.Token)
	}
	if ac.Profile.TokenKind != auth.TokenKindAccess || ac.Profile.Provider != "google" {
		t.Errorf("profile tags = %q/%q", ac.Profile.TokenKind, ac.Profile.Provider)
	}
	// The fixed scope contract, independent of anything the provider said.
	want := []string{"api:read", "api:invoke"}
	if !reflect.DeepEqual(ac.Scopes, want) {
		t.Errorf("Scopes = %v, want %v", ac.Scopes, want)
	}
}

func TestVerifyTokenOpaqueRejected(t *testing.T) {
	p := &authtest.FakeProvider{ProfileErr: &auth.RejectedError{Status: http.StatusUnauthorized}}
	v := newVerifier(t, p, nil)

	ac, err := v.VerifyToken(context.Background(), "ya29.badtoken")
	if ac != nil {
		t.Fatal("context must be absent")
	}
	if !errors.Is(err, auth.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
	var rej *auth.RejectedError
	if !errors.As(err, &rej) || rej.Status != http.StatusUnauthorized {
		t.Errorf("rejection must carry the provider status, got %v", err)
	}
}

func TestVerifyTokenSignedWithFallback(t *testing.T) {
	p := &authtest.FakeProvider{
		SignedErr:       auth.ErrVerificationFailed,
		ProfileIdentity: &auth.VerifiedIdentity{Subject: "u-9", Email: "e@f.com"},
	}
	v := newVerifier(t, p, nil)

	ac, err := v.VerifyToken(context.Background(), "h.p.s")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if p.SignedCalls() != 1 || p.ProfileCalls() != 1 {
		t.Errorf("calls = %d/%d, want exactly one of each", p.SignedCalls(), p.ProfileCalls())
	}
	if ac.Profile.TokenKind != auth.TokenKindAccess {
		t.Errorf("TokenKind = %q, want access after fallback", ac.Profile.TokenKind)
	}
}

func TestVerifyTokenSignedSuccess(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	p := &authtest.FakeProvider{
		SignedIdentity: &auth.VerifiedIdentity{
			Subject:       "u-1",
			Email:         "a@b.com",
			EmailVerified: true,
			Name:          "Ada",
			HostedDomain:  "example.com",
			ExpiresAt:     exp,
		},
	}
	v := newVerifier(t, p, nil)

	ac, err := v.VerifyToken(context.Background(), "h.p.s")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !ac.HasExpiry() || !ac.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", ac.ExpiresAt, exp)
	}
	if ac.Profile.TokenKind != auth.TokenKindIdentity {
		t.Errorf("TokenKind = %q, want identity", ac.Profile.TokenKind)
	}
	if ac.Profile.Audience != "client-123" {
		t.Errorf("Audience = %q, want the verifying client ID", ac.Profile.Audience)
	}
	if p.LastClientID() != "client-123" {
		t.Errorf("provider saw client ID %q", p.LastClientID())
	}
	if p.ProfileCalls() != 0 {
		t.Error("no fallback on success")
	}
}

func TestVerifyTokenIdempotent(t *testing.T) {
	p := &authtest.FakeProvider{
		ProfileIdentity: &auth.VerifiedIdentity{Subject: "123", Email: "a@b.com"},
	}
	v := newVerifier(t, p, nil)

	first, err := v.VerifyToken(context.Background(), "ya29.sampletoken")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := v.VerifyToken(context.Background(), "ya29.sampletoken")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("contexts differ:\n%+v\n%+v", first, second)
	}
}

func TestVerifierConfigValidation(t *testing.T) {
	if _, err := auth.NewVerifier(auth.VerificationConfig{}, &authtest.FakeProvider{}); err == nil {
		t.Error("missing client ID must fail construction")
	}
	if _, err := auth.NewVerifier(auth.VerificationConfig{ClientID: "c"}, nil); err == nil {
		t.Error("missing provider must fail construction")
	}
	// Skip-auth mode needs neither.
	if _, err := auth.NewVerifier(auth.VerificationConfig{SkipAuth: true}, nil); err != nil {
		t.Errorf("skip-auth construction failed: %v", err)
	}
}

func TestCustomScopesAndPrefixes(t *testing.T) {
	p := &authtest.FakeProvider{
		ProfileIdentity: &auth.VerifiedIdentity{Subject: "s"},
	}
	v := newVerifier(t, p, func(c *auth.VerificationConfig) {
		c.GrantedScopes = []string{"thing:admin"}
		c.OpaqueTokenPrefixes = []string{"tok_"}
	})

	ac, err := v.VerifyToken(context.Background(), "tok_abc")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !ac.HasScope("thing:admin") || ac.HasScope("api:read") {
		t.Errorf("Scopes = %v", ac.Scopes)
	}

	if _, err := v.VerifyToken(context.Background(), "ya29.sampletoken"); !errors.Is(err, auth.ErrUnrecognizedTokenFormat) {
		t.Errorf("default prefix must be replaced, err = %v", err)
	}
}

func TestDevBypass(t *testing.T) {
	p := &authtest.FakeProvider{}
	v := newVerifier(t, p, func(c *auth.VerificationConfig) {
		c.DevBypassToken = "local-dev-secret"
	})

	h := http.Header{}
	h.Set("Authorization", "Bearer local-dev-secret")
	ac, err := v.VerifyRequest(context.Background(), h)
	if err != nil {
		t.Fatalf("VerifyRequest: %v", err)
	}
	if ac.Profile.TokenKind != auth.TokenKindBypass {
		t.Errorf("TokenKind = %q, want bypass", ac.Profile.TokenKind)
	}
	if p.SignedCalls()+p.ProfileCalls() != 0 {
		t.Error("bypass must not reach the provider")
	}
}
