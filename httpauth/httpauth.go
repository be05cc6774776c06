// Package httpauth adapts the verification engine to net/http. It is the
// transport-side collaborator the engine itself stays agnostic of: it
// extracts nothing and decides nothing about tokens, it only maps the
// engine's single output contract (context or absent) onto HTTP responses
// and request contexts.
package httpauth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/tokengate/tokengate/auth"
	"github.com/tokengate/tokengate/internal/logctx"
)

const wwwAuthenticateHeader = "WWW-Authenticate"

var (
	jsonMediaType   = contenttype.NewMediaType("application/json")
	plainMediaType  = contenttype.NewMediaType("text/plain")
	errorMediaTypes = []contenttype.MediaType{jsonMediaType, plainMediaType}
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	realm               string
	resourceMetadataURL string
	logger              *slog.Logger
}

// WithRealm sets the realm attribute of emitted Bearer challenges.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = realm }
}

// WithResourceMetadataURL advertises the protected resource metadata
// document in Bearer challenges (RFC 9728 section 5.1).
func WithResourceMetadataURL(u string) Option {
	return func(c *config) { c.resourceMetadataURL = u }
}

// WithLogger sets the logger for request-level auth events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// RequireAuth returns middleware that verifies each request's bearer
// credential and either injects the AuthorizationContext into the request
// context or answers with the appropriate challenge. Handlers behind it can
// rely on AuthorizationFromContext succeeding.
func RequireAuth(v *auth.Verifier, opts ...Option) func(http.Handler) http.Handler {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
				RequestID:  uuid.NewString(),
				Method:     r.Method,
				UserAgent:  r.UserAgent(),
				RemoteAddr: r.RemoteAddr,
				Path:       r.URL.Path,
			})

			authCtx, err := v.VerifyRequest(ctx, r.Header)
			if err != nil {
				ch := auth.ChallengeForError(cfg.realm, cfg.resourceMetadataURL, err)
				cfg.logger.InfoContext(ctx, "httpauth.rejected",
					slog.Int("status", ch.Status),
					slog.String("err", err.Error()))
				if ch.WWWAuthenticate != "" {
					w.Header().Set(wwwAuthenticateHeader, ch.WWWAuthenticate)
				}
				writeError(w, r, ch.Status, challengeMessage(err))
				return
			}

			ctx = logctx.WithAuthData(ctx, &logctx.AuthData{
				SubjectID: authCtx.SubjectID,
				Provider:  authCtx.Profile.Provider,
				TokenKind: string(authCtx.Profile.TokenKind),
			})
			ctx = ContextWithAuthorization(ctx, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// challengeMessage maps a taxonomy error onto the short client-facing body.
// Kept deliberately vague for invalid credentials to avoid oracle behavior.
func challengeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrNoCredential):
		return "authentication required"
	case errors.Is(err, auth.ErrProviderUnavailable):
		return "identity provider unavailable"
	default:
		return "invalid or expired credentials"
	}
}

// writeError emits the rejection body in the client's preferred shape. The
// JSON shape mirrors {"error":{"code":<status>,"message":"<reason>"}}.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, errorMediaTypes)
	if err == nil && accepted.Matches(jsonMediaType) {
		w.Header().Set("Content-Type", jsonMediaType.String())
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}

type authContextKey struct{}

// ContextWithAuthorization attaches a verified AuthorizationContext to ctx.
func ContextWithAuthorization(ctx context.Context, ac *auth.AuthorizationContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthorizationFromContext recovers the AuthorizationContext injected by
// RequireAuth. The boolean is false for requests that did not pass through
// the middleware.
func AuthorizationFromContext(ctx context.Context) (*auth.AuthorizationContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*auth.AuthorizationContext)
	return ac, ok
}
