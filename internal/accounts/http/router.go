package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/httpx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/otelx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"

	_ "github.com/aussiebroadwan/accounts/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	// InternalAPIKey guards the service-to-service endpoints. Empty disables
	// them.
	InternalAPIKey string

	AccountService    *service.AccountService
	InviteService     *service.InviteService
	DatasourceService *service.DatasourceService
	SessionService    *service.SessionService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Tracing wraps logging so request logs carry the trace id.
	r.middlewares = []httpx.Middleware{
		otelx.HTTPMiddleware("accounts", map[string]struct{}{"/livez": {}, "/readyz": {}}),
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSelf()
	r.registerInvites()
	r.registerTenants()
	r.registerDatasources()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Global Accounts API
//	@version		0.1.0
//	@description	Lifecycle of global user accounts: admin setup, user administration, self-service, invitations and the datasource action menu.
//	@description
//	@description				Access tokens are EdDSA-signed JWTs bound to a server-side session and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/accounts
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.verifier, r.SessionService)
}

func (r *Router) registerAuth() {
	// POST /v1/auth/login - strict rate limit by IP (credential guessing)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{SessionService: r.SessionService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{SessionService: r.SessionService},
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{AccountService: r.AccountService}
	admin := requireGlobalAdmin(r.AccountService)

	// Admin writes - moderate rate limit by user
	adminWrite := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			r.authn(),
			admin,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	// Reads are open to any signed-in user of the tenant
	read := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		)
	}

	r.Mux.Handle("POST /v1/users", adminWrite(h.HandleSave))
	r.Mux.Handle("DELETE /v1/users/{id}", adminWrite(h.HandleDelete))
	r.Mux.Handle("DELETE /v1/users/roles/{appId}", adminWrite(h.HandleRemoveAppRole))
	r.Mux.Handle("GET /v1/users", read(h.HandleFetch))
	r.Mux.Handle("GET /v1/users/{id}", read(h.HandleFind))

	// POST /v1/users/init - internal key, very strict rate limit by IP (one-time setup)
	initHandler := &InitAdminHandler{AccountService: r.AccountService}
	r.Mux.Handle("POST /v1/users/init",
		httpx.Chain(initHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
			requireInternalKey(r.InternalAPIKey),
		),
	)
}

func (r *Router) registerSelf() {
	h := &SelfHandler{AccountService: r.AccountService}

	r.Mux.Handle("GET /v1/self",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/self",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerInvites() {
	// POST /v1/users/invite - moderate rate limit by user (admin operation)
	r.Mux.Handle("POST /v1/users/invite",
		httpx.Chain(&InviteSendHandler{InviteService: r.InviteService},
			r.authn(),
			requireGlobalAdmin(r.AccountService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// POST /v1/users/invite/accept - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/users/invite/accept",
		httpx.Chain(&InviteAcceptHandler{InviteService: r.InviteService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTenants() {
	r.Mux.Handle("GET /v1/tenants/users/{id}",
		httpx.Chain(&TenantUserHandler{AccountService: r.AccountService},
			httpx.RateLimitByIP(httpx.LenientLimit),
			requireInternalKey(r.InternalAPIKey),
		),
	)
}

func (r *Router) registerDatasources() {
	h := &DatasourcesHandler{DatasourceService: r.DatasourceService}
	builder := requireGlobalBuilder(r.AccountService)

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			r.authn(),
			builder,
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("GET /v1/datasources", secured(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/datasources", secured(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("PUT /v1/datasources/{id}", secured(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/datasources/{id}/delete", secured(h.HandleDelete, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/datasources/{id}/tables", secured(h.HandleCreateTable, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/datasources/{id}/queries", secured(h.HandleCreateQuery, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
