package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vincentventalon/docuprocess/pkg/auth"
	"github.com/vincentventalon/docuprocess/pkg/contextkeys"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// Request headers recognized by the authentication gate.
const (
	HeaderAPIKey = "x-api-key"
	HeaderTeamID = "x-team-id"
)

// Authenticate resolves the caller's identity from either a bearer token or
// an API key. Bearer tokens win when both are present. Requests without a
// valid credential get 401 with a WWW-Authenticate challenge.
func Authenticate(resolver *auth.Resolver, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var principal *auth.Principal
			var err error

			if token := bearerToken(r); token != "" {
				principal, err = resolver.ResolveBearer(ctx, token, r.Header.Get(HeaderTeamID))
			} else if key := r.Header.Get(HeaderAPIKey); key != "" {
				principal, err = resolver.ResolveAPIKey(ctx, key)
			} else {
				writeUnauthorized(w, "Missing authentication. Provide either a bearer token (Authorization: Bearer <token>) or API key (x-api-key: <key>)")
				return
			}

			if err != nil {
				logger.WithError(err).Debugf("authentication failed")
				writeUnauthorized(w, "Invalid authentication. Provide either a valid bearer token (Authorization: Bearer <token>) or API key (x-api-key: <key>)")
				return
			}

			ctx = contextkeys.WithPrincipal(ctx, principal)
			ctx = observability.WithSubjectID(ctx, principal.UserID)
			if principal.Team.HasTeam() {
				ctx = observability.WithTeamID(ctx, principal.Team.TeamID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTeam rejects authenticated requests whose principal has no
// resolved team. Must run after Authenticate.
func RequireTeam() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				writeUnauthorized(w, "Missing authentication")
				return
			}
			if !principal.Team.HasTeam() {
				httputil.WriteForbidden(w, "No team context. User must be a member of a team.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal returns the authenticated principal, or nil when the request
// did not pass through Authenticate.
func GetPrincipal(ctx context.Context) *auth.Principal {
	principal, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
	return principal
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteUnauthorized(w, message)
}
