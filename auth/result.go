package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthenticationChallenge describes the HTTP response a transport should
// send for a failed or absent verification: a status code plus a
// WWW-Authenticate header value per RFC 6750.
type AuthenticationChallenge struct {
	Status          int
	WWWAuthenticate string
}

// NewAuthenticationRequired builds the challenge for a request that carried
// no credentials. RFC 6750 section 3.1: when no authentication information
// is present the resource server SHOULD NOT include an error code.
func NewAuthenticationRequired(realm, resourceMetadataURL string) *AuthenticationChallenge {
	return &AuthenticationChallenge{
		Status:          http.StatusUnauthorized,
		WWWAuthenticate: buildBearerChallenge(realm, resourceMetadataURL, nil),
	}
}

// NewInvalidTokenChallenge builds the challenge for a credential that failed
// verification.
func NewInvalidTokenChallenge(realm, resourceMetadataURL, description string) *AuthenticationChallenge {
	return &AuthenticationChallenge{
		Status: http.StatusUnauthorized,
		WWWAuthenticate: buildBearerChallenge(realm, resourceMetadataURL, map[string]string{
			"error":             "invalid_token",
			"error_description": description,
		}),
	}
}

// ChallengeForError maps a taxonomy error from Verifier onto the challenge
// the transport should emit. Provider outages map to 503 rather than
// blaming the client's credential.
func ChallengeForError(realm, resourceMetadataURL string, err error) *AuthenticationChallenge {
	switch {
	case errors.Is(err, ErrNoCredential):
		return NewAuthenticationRequired(realm, resourceMetadataURL)
	case errors.Is(err, ErrProviderUnavailable):
		return &AuthenticationChallenge{Status: http.StatusServiceUnavailable}
	case errors.Is(err, ErrUnrecognizedTokenFormat):
		return &AuthenticationChallenge{
			Status: http.StatusUnauthorized,
			WWWAuthenticate: buildBearerChallenge(realm, resourceMetadataURL, map[string]string{
				"error":             "invalid_token",
				"error_description": "unrecognized token format",
			}),
		}
	default:
		return &AuthenticationChallenge{
			Status: http.StatusUnauthorized,
			WWWAuthenticate: buildBearerChallenge(realm, resourceMetadataURL, map[string]string{
				"error":             "invalid_token",
				"error_description": "token verification failed",
			}),
		}
	}
}

// buildBearerChallenge builds a Bearer challenge header value:
//
//	Bearer realm="<realm>", resource_metadata="<url>", error="...", error_description="..."
//
// Realm and resource_metadata are omitted when empty. Parameter order is
// fixed (error before error_description) so tests and log greps stay stable.
func buildBearerChallenge(realm, resourceMetadata string, params map[string]string) string {
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	pieces := make([]string, 0, 2+len(params))
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	if v, ok := params["error"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error="%s"`, esc(v)))
	}
	if v, ok := params["error_description"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error_description="%s"`, esc(v)))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
