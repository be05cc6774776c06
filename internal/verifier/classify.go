package verifier

import "strings"

// Shape is the structural classification of a credential, used to pick a
// verification strategy. Derived per call, never stored.
type Shape int

const (
	// ShapeUnrecognized means the credential matches no known token format
	// and is rejected locally without a provider call.
	ShapeUnrecognized Shape = iota
	// ShapeSignedIdentity means the credential has the three-segment form
	// of a signed identity token.
	ShapeSignedIdentity
	// ShapeOpaqueAccess means the credential carries a prefix the provider
	// reserves for opaque access tokens.
	ShapeOpaqueAccess
)

func (s Shape) String() string {
	switch s {
	case ShapeSignedIdentity:
		return "signed_identity"
	case ShapeOpaqueAccess:
		return "opaque_access"
	default:
		return "unrecognized"
	}
}

// ClassifyToken inspects the shape of a non-empty credential. Exactly three
// non-empty dot-separated segments classify as a signed identity token;
// otherwise a reserved opaque prefix classifies as an opaque access token.
func ClassifyToken(tok string, opaquePrefixes []string) Shape {
	parts := strings.Split(tok, ".")
	if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		return ShapeSignedIdentity
	}
	for _, p := range opaquePrefixes {
		if strings.HasPrefix(tok, p) {
			return ShapeOpaqueAccess
		}
	}
	return ShapeUnrecognized
}
