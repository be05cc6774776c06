package auth

import (
	"net/url"
	"strings"
)

// ValidateResource reports whether a declared resource parameter (RFC 8707)
// targets this server: the resource URI and the server's base URL must share
// an identical origin (scheme, host, and port). Any malformed URI in either
// argument fails the check.
func ValidateResource(resource, serverBaseURL string) bool {
	r, ok := parseOrigin(resource)
	if !ok {
		return false
	}
	s, ok := parseOrigin(serverBaseURL)
	if !ok {
		return false
	}
	return r == s
}

// parseOrigin reduces a URI to its scheme://host[:port] origin. Default
// ports are made explicit so "https://a.example" and "https://a.example:443"
// compare equal.
func parseOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	if port == "" {
		return scheme + "://" + host, true
	}
	return scheme + "://" + host + ":" + port, true
}
