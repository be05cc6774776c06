// Package pkce implements the S256 code challenge method of RFC 7636 (Proof
// Key for Code Exchange). Pure and deterministic; no I/O.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// ChallengeS256 derives the S256 code challenge for a verifier:
// base64url (no padding) of the verifier's SHA-256 digest.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyS256 reports whether challenge was derived from verifier with the
// S256 method. The comparison is constant-time. Any verifier, including the
// empty string, is hashed and compared; shape policy (RFC 7636 length and
// alphabet rules) belongs to the authorization layer, not the equality check.
func VerifyS256(challenge, verifier string) bool {
	computed := ChallengeS256(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// GenerateVerifier returns a fresh high-entropy code verifier (43 base64url
// characters from 32 random bytes, per RFC 7636 section 4.1).
func GenerateVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
