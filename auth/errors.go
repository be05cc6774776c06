package auth

import (
	"errors"
	"fmt"
)

// The error taxonomy. Every failed verification resolves to an absent
// AuthorizationContext plus exactly one of these, reachable via errors.Is.

// ErrNoCredential signals that no header carried a bearer credential. This
// is the "unauthenticated" outcome, not a fault: the caller's policy decides
// how to respond (typically a 401-equivalent challenge).
var ErrNoCredential = errors.New("auth: no bearer credential found")

// ErrUnrecognizedTokenFormat signals a credential that is neither a signed
// identity token nor a known opaque access token. Rejected locally; no
// provider call is made.
var ErrUnrecognizedTokenFormat = errors.New("auth: unrecognized token format")

// ErrVerificationFailed signals that the provider's signature/claim
// verification of a signed identity token did not succeed. Within the
// engine it triggers the one permitted access-token fallback; it is only
// surfaced when the fallback also fails.
var ErrVerificationFailed = errors.New("auth: signature or claim verification failed")

// ErrProviderUnavailable signals a network-level failure (including timeout
// or cancellation) talking to the identity provider.
var ErrProviderUnavailable = errors.New("auth: identity provider unavailable")

// ErrProviderRejected signals a non-success status from the provider's
// profile endpoint. Use errors.As with *RejectedError to recover the status.
var ErrProviderRejected = errors.New("auth: provider rejected token")

// ErrMalformedProviderResponse signals that the provider answered with a
// payload the engine could not parse.
var ErrMalformedProviderResponse = errors.New("auth: malformed provider response")

// RejectedError carries the provider's HTTP status for diagnostics. It
// matches ErrProviderRejected under errors.Is.
type RejectedError struct {
	// Status is the HTTP status code returned by the profile endpoint.
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("auth: provider rejected token (status %d)", e.Status)
}

func (e *RejectedError) Is(target error) bool { return target == ErrProviderRejected }
