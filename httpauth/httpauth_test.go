package httpauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tokengate/tokengate/auth"
	"github.com/tokengate/tokengate/auth/authtest"
)

func newTestVerifier(t *testing.T, p auth.IdentityProvider) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.VerificationConfig{ClientID: "client-123"}, p)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := AuthorizationFromContext(r.Context())
		if !ok {
			t.Error("handler reached without authorization context")
			http.Error(w, "no context", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("hello " + ac.SubjectID))
	})
}

func TestRequireAuthSuccess(t *testing.T) {
	p := &authtest.FakeProvider{
		ProfileIdentity: &auth.VerifiedIdentity{Subject: "123", Email: "a@b.com"},
	}
	h := RequireAuth(newTestVerifier(t, p), WithRealm("api"))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set("Authorization", "Bearer ya29.sampletoken")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "hello 123" {
		t.Errorf("body = %q", got)
	}
}

func TestRequireAuthMissingCredential(t *testing.T) {
	p := &authtest.FakeProvider{}
	h := RequireAuth(newTestVerifier(t, p),
		WithRealm("api"),
		WithResourceMetadataURL("https://api.example.com"+MetadataPath),
	)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	challenge := rec.Header().Get("WWW-Authenticate")
	if !strings.HasPrefix(challenge, "Bearer") {
		t.Errorf("challenge = %q", challenge)
	}
	if strings.Contains(challenge, "error=") {
		t.Errorf("bare challenge must carry no error code: %q", challenge)
	}
	if !strings.Contains(challenge, MetadataPath) {
		t.Errorf("challenge should advertise resource metadata: %q", challenge)
	}
	if p.SignedCalls()+p.ProfileCalls() != 0 {
		t.Error("no provider call for an unauthenticated request")
	}
}

func TestRequireAuthRejectedToken(t *testing.T) {
	p := &authtest.FakeProvider{ProfileErr: &auth.RejectedError{Status: http.StatusUnauthorized}}
	h := RequireAuth(newTestVerifier(t, p), WithRealm("api"))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set("Authorization", "Bearer ya29.badtoken")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Errorf("challenge = %q", rec.Header().Get("WWW-Authenticate"))
	}

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != http.StatusUnauthorized || body.Error.Message == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestRequireAuthProviderOutage(t *testing.T) {
	p := &authtest.FakeProvider{ProfileErr: auth.ErrProviderUnavailable}
	h := RequireAuth(newTestVerifier(t, p))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set("Authorization", "Bearer ya29.tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRequireAuthPlainTextBody(t *testing.T) {
	p := &authtest.FakeProvider{}
	h := RequireAuth(newTestVerifier(t, p))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/things", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAuthorizationFromContextAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := AuthorizationFromContext(req.Context()); ok {
		t.Error("expected absent context")
	}
}

func TestMetadataHandler(t *testing.T) {
	h := NewMetadataHandler(Metadata{
		Resource:             "https://api.example.com",
		AuthorizationServers: []string{"https://accounts.google.com"},
		Scopes:               []string{"api:read", "api:invoke"},
		Name:                 "example API",
	})

	t.Run("GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetadataPath, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("metadata must be CORS-readable")
		}
		var doc map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if doc["resource"] != "https://api.example.com" {
			t.Errorf("resource = %v", doc["resource"])
		}
		if _, ok := doc["authorization_servers"]; !ok {
			t.Error("authorization_servers missing")
		}
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, MetadataPath, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("POST rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MetadataPath, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
