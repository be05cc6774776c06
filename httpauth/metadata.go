package httpauth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tokengate/tokengate/internal/wellknown"
)

// MetadataPath is where a protected resource publishes its metadata
// document per RFC 9728.
const MetadataPath = "/.well-known/oauth-protected-resource"

// Metadata describes this protected resource for client bootstrapping.
type Metadata struct {
	// Resource is the canonical URL of the protected resource.
	Resource string
	// AuthorizationServers lists the issuers whose tokens are accepted.
	AuthorizationServers []string
	// Scopes advertises the scope strings clients may request. Typically
	// the fixed granted set of the verifier.
	Scopes []string
	// Name is an optional human-readable resource name.
	Name string
	// Documentation is an optional URL of developer documentation.
	Documentation string
}

// NewMetadataHandler serves the protected resource metadata document.
// Register it at MetadataPath. Cross-origin reads are allowed: the document
// is public by design.
func NewMetadataHandler(md Metadata) http.Handler {
	doc := wellknown.ProtectedResourceMetadata{
		Resource:               md.Resource,
		AuthorizationServers:   append([]string(nil), md.AuthorizationServers...),
		ScopesSupported:        append([]string(nil), md.Scopes...),
		BearerMethodsSupported: []string{"authorization_header"},
		ResourceName:           md.Name,
		ResourceDocumentation:  md.Documentation,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET, OPTIONS")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode protected resource metadata: %v", err), http.StatusInternalServerError)
		}
	})
}
