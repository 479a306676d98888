package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// SessionChecker reports whether a session is still active. Deleting a
// session row revokes every token that carries its id.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// AuthnMiddleware verifies the bearer token and rejects tokens whose session
// has been invalidated.
func AuthnMiddleware(v jwtx.Verifier, sessions SessionChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", slog.Any("error", err))
				return
			}

			active, err := sessions.SessionActive(ctx, claims.SID)
			if err != nil {
				log.Error("session lookup failed", slog.Any("error", err))
				WriteError(w, http.StatusInternalServerError, "server_error", "Failed to check session")
				return
			}
			if !active {
				writeBearerError(w, "session revoked")
				return
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = slogx.WithAttrs(ctx, slog.String("user_id", claims.Subject), slog.String("tenant_id", claims.TenantID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
