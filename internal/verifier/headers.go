package verifier

import (
	"net/http"
	"strings"
)

// bearerHeaderNames is the fixed, ordered set of header names scanned for a
// bearer credential. The canonical Authorization header always wins; the
// aliases exist for clients that cannot set it (some proxies strip it).
var bearerHeaderNames = []string{
	"Authorization",
	"Bearer",
	"X-Auth-Token",
	"X-Authorization",
}

const bearerPrefix = "Bearer "

// ExtractBearer scans the request headers for a bearer credential,
// case-insensitively stripping a "Bearer " prefix from the value. The first
// header carrying a non-empty credential wins. A false return means the
// request is unauthenticated, which is the caller's policy to handle, not an
// error.
func ExtractBearer(h http.Header) (string, bool) {
	for _, name := range bearerHeaderNames {
		// Header.Get canonicalizes the name, so lookups are already
		// case-insensitive with respect to what the client sent.
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if len(v) > len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
			v = strings.TrimSpace(v[len(bearerPrefix):])
		}
		if v != "" {
			return v, true
		}
	}
	return "", false
}
