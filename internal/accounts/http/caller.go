package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// InternalAPIKeyHeader carries the shared key of service-to-service calls.
const InternalAPIKeyHeader = "X-Internal-Api-Key"

// callerFrom builds the Caller from the claims AuthnMiddleware verified.
func callerFrom(r *http.Request) (domain.Caller, bool) {
	c, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return domain.Caller{}, false
	}
	return domain.Caller{
		UserID:              c.Subject,
		TenantID:            c.TenantID,
		SessionID:           c.SID,
		AccountPortalAccess: c.AccountPortalAccess,
		PlatformAccess:      c.PlatformAccess,
	}, true
}

// mustCaller writes a 401 and returns false when the request is anonymous.
func mustCaller(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := callerFrom(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing session")
	}
	return caller, ok
}

// requireUser admits callers whose stored user passes allow.
func requireUser(accounts *service.AccountService, desc string, allow func(domain.User) bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := mustCaller(w, r)
			if !ok {
				return
			}

			u, found, err := accounts.Find(r.Context(), caller.TenantID, caller.UserID)
			if err != nil {
				slogx.FromContext(r.Context()).Error("caller lookup failed", slog.Any("error", err))
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to load caller")
				return
			}
			if !found || !allow(u) {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", desc)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireGlobalAdmin(accounts *service.AccountService) httpx.Middleware {
	return requireUser(accounts, "Global admin required", domain.User.IsGlobalAdmin)
}

func requireGlobalBuilder(accounts *service.AccountService) httpx.Middleware {
	return requireUser(accounts, "Builder access required", func(u domain.User) bool {
		return u.IsGlobalBuilder() || u.IsGlobalAdmin()
	})
}

// requireInternalKey guards service-to-service endpoints. With no key
// configured the endpoint reports itself as disabled.
func requireInternalKey(key string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "Endpoint is not enabled")
				return
			}
			got := r.Header.Get(InternalAPIKeyHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid internal API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
