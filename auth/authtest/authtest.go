// Package authtest provides an in-memory IdentityProvider double for tests
// and development wiring. It records call counts so tests can assert on the
// engine's strategy dispatch (e.g. that the opaque fallback ran exactly
// once, or that an absent credential triggered no provider call).
package authtest

import (
	"context"
	"sync"

	"github.com/tokengate/tokengate/auth"
)

// FakeProvider implements auth.IdentityProvider from canned results. The
// zero value fails every call; set the identity/err pairs as needed. Safe
// for concurrent use.
type FakeProvider struct {
	// ProviderName defaults to "fake".
	ProviderName string

	// SignedIdentity/SignedErr script VerifySignedToken. When both are nil
	// the call fails with auth.ErrVerificationFailed.
	SignedIdentity *auth.VerifiedIdentity
	SignedErr      error

	// ProfileIdentity/ProfileErr script FetchProfile. When both are nil the
	// call fails with a 401 RejectedError.
	ProfileIdentity *auth.VerifiedIdentity
	ProfileErr      error

	mu           sync.Mutex
	signedCalls  int
	profileCalls int
	lastToken    string
	lastClientID string
}

var _ auth.IdentityProvider = (*FakeProvider)(nil)

func (f *FakeProvider) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *FakeProvider) VerifySignedToken(_ context.Context, rawToken, clientID string) (*auth.VerifiedIdentity, error) {
	f.mu.Lock()
	f.signedCalls++
	f.lastToken = rawToken
	f.lastClientID = clientID
	f.mu.Unlock()

	if f.SignedErr != nil {
		return nil, f.SignedErr
	}
	if f.SignedIdentity == nil {
		return nil, auth.ErrVerificationFailed
	}
	id := *f.SignedIdentity
	return &id, nil
}

func (f *FakeProvider) FetchProfile(_ context.Context, accessToken string) (*auth.VerifiedIdentity, error) {
	f.mu.Lock()
	f.profileCalls++
	f.lastToken = accessToken
	f.mu.Unlock()

	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	if f.ProfileIdentity == nil {
		return nil, &auth.RejectedError{Status: 401}
	}
	id := *f.ProfileIdentity
	return &id, nil
}

// SignedCalls reports how many times VerifySignedToken was invoked.
func (f *FakeProvider) SignedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedCalls
}

// ProfileCalls reports how many times FetchProfile was invoked.
func (f *FakeProvider) ProfileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls
}

// LastClientID reports the client ID passed to the most recent
// VerifySignedToken call.
func (f *FakeProvider) LastClientID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastClientID
}
