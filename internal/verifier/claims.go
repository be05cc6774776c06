package verifier

import (
	"github.com/golang-jwt/jwt/v5"
)

// DecodeRawClaims decodes the payload segment of a signed token WITHOUT
// verifying any signature. The result is diagnostic material for pre-checks
// only and must never substitute for provider verification. Errors indicate
// a malformed segment; callers degrade to "no pre-check available" rather
// than rejecting.
func DecodeRawClaims(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// AudienceMatches reports whether the decoded aud claim (string or set of
// strings) contains want. A missing or malformed claim does not match.
func AudienceMatches(claims jwt.MapClaims, want string) bool {
	switch v := claims["aud"].(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == want {
				return true
			}
		}
	}
	return false
}
