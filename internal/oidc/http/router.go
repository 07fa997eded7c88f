package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/service"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/httpx"
	"github.com/openpass-dev/openpass/pkg/jwtx"
	"github.com/openpass-dev/openpass/pkg/slogx"

	_ "github.com/openpass-dev/openpass/api/openpass" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     *jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	claims *claims.Registry
	pkce   *pkce.Registry

	AuthorizeService *service.AuthorizeService
	TokenService     *service.TokenService
	UserinfoService  *service.UserinfoService
	BootstrapService *service.BootstrapService
	MFAService       *service.MFAService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier *jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	claimsRegistry *claims.Registry,
	pkceRegistry *pkce.Registry,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		claims:       claimsRegistry,
		pkce:         pkceRegistry,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerWellKnown()
	r.registerUserinfo()
	r.registerMFA()
	r.registerSystem()
	r.registerBootstrap()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			OpenPass OpenID Connect Provider API
//	@version		0.1.0
//	@description	OpenID Connect extension of the OAuth2 authorization code flow:
//	@description	encrypted single-use authorization codes with PKCE, scope-filtered
//	@description	identity claims, and signed id_tokens bound to their access token.
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
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		Verifier:         r.verifier,
		Logger:           r.logger,
	}

	// GET /authorize mostly echoes the login challenge
	r.Mux.Handle("GET /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize carries credentials, keyed by IP plus username to
	// slow down brute force
	r.Mux.Handle("POST /v1/oauth2/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/oauth2/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	discovery := DiscoveryHandler(r.issuer, r.claims, r.pkce)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(discovery,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUserinfo() {
	h := &UserinfoHandler{UserinfoService: r.UserinfoService}

	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope("openid"),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
	r.Mux.Handle("POST /v1/userinfo", secured)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	enroll := httpx.Chain(http.HandlerFunc(h.HandleEnroll),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	activate := httpx.Chain(http.HandlerFunc(h.HandleActivate),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)
	disable := httpx.Chain(http.HandlerFunc(h.HandleDisable),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	r.Mux.Handle("POST /v1/mfa/totp/enroll", enroll)
	r.Mux.Handle("POST /v1/mfa/totp/activate", activate)
	r.Mux.Handle("DELETE /v1/mfa/totp", disable)
}

func (r *Router) registerSystem() {
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

func (r *Router) registerBootstrap() {
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}
