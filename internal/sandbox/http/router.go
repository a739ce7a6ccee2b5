package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/portal/internal/sandbox/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	AccountService  *service.AccountService
	SessionService  *service.SessionService
	StepUpService   *service.StepUpService
	OrderService    *service.OrderService
	TransferService *service.TransferService
	WebhookService  *service.WebhookService

	RequireStepUp bool
	SecureCookies bool

	// LoginLimit guards credential endpoints, keyed by IP and email.
	LoginLimit httpx.RateLimitConfig
	// ResourceLimit guards authenticated endpoints, keyed by user.
	ResourceLimit httpx.RateLimitConfig
}

func NewRouter(verifier jwtx.Verifier, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		verifier:      verifier,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		LoginLimit:    httpx.StrictLimit,
		ResourceLimit: httpx.ModerateLimit,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerOrders()
	r.registerTransfers()
	r.registerWebhooks()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Portal Sandbox API
//	@version		0.1.0
//	@description	Local stand-in for the merchant portal backend: cookie refresh, email 2FA, users, orders, withdrawals and webhooks.
//	@description
//	@description				Access tokens are EdDSA-signed JWTs sent as bearer tokens.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/portal
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

// secured wraps h with bearer authentication and a per-user limit.
func (r *Router) secured(h http.HandlerFunc, extra ...httpx.Middleware) http.Handler {
	mws := []httpx.Middleware{
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByUser(r.ResourceLimit),
	}
	return httpx.Chain(h, append(mws, extra...)...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Accounts:      r.AccountService,
		Sessions:      r.SessionService,
		StepUp:        r.StepUpService,
		RequireStepUp: r.RequireStepUp,
		SecureCookies: r.SecureCookies,
	}

	// Credential checks - strict limit by IP + email
	r.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.LoginLimit, "email"),
		),
	)
	r.Mux.Handle("POST /api/auth/login/2fa/start",
		httpx.Chain(http.HandlerFunc(h.HandleStart2FA),
			httpx.RateLimitByIPAndJSONField(r.LoginLimit, "email"),
		),
	)

	// Code guessing - strict limit by IP + challenge
	r.Mux.Handle("POST /api/auth/login/2fa/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm2FA),
			httpx.RateLimitByIPAndJSONField(r.LoginLimit, "challengeId"),
		),
	)

	// Cookie-only endpoints - moderate limit by IP
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.ResourceLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.ResourceLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Accounts: r.AccountService}

	// Public account endpoints - strict limit by IP
	public := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIP(r.LoginLimit))
	}
	r.Mux.Handle("POST /api/usuarios/cadastro-inicial", public(h.HandleRegister))
	r.Mux.Handle("POST /api/usuarios/esqueci-senha", public(h.HandleForgotPassword))
	r.Mux.Handle("POST /api/usuarios/resetar-senha", public(h.HandleResetPassword))
	r.Mux.Handle("GET /api/usuarios/resetar-senha/validar", public(h.HandleValidateResetToken))

	r.Mux.Handle("GET /api/usuarios", r.secured(h.HandleList, httpx.RequireAdmin))
	r.Mux.Handle("GET /api/usuarios/{id}", r.secured(h.HandleGet))
	r.Mux.Handle("PUT /api/usuarios/{id}", r.secured(h.HandleUpdate))
	r.Mux.Handle("PUT /api/usuarios/{id}/completar-cadastro", r.secured(h.HandleComplete))
}

func (r *Router) registerOrders() {
	h := &OrdersHandler{Orders: r.OrderService}

	r.Mux.Handle("GET /api/pedidos", r.secured(h.HandleList))
	r.Mux.Handle("POST /api/pedidos", r.secured(h.HandleCreate))
	r.Mux.Handle("GET /api/pedidos/{id}", r.secured(h.HandleGet))
	r.Mux.Handle("PUT /api/pedidos/{id}/status", r.secured(h.HandleUpdateStatus))
}

func (r *Router) registerTransfers() {
	h := &TransfersHandler{Transfers: r.TransferService, Accounts: r.AccountService}

	r.Mux.Handle("GET /api/transferencias", r.secured(h.HandleList))
	r.Mux.Handle("POST /api/transferencias", r.secured(h.HandleCreate))
	r.Mux.Handle("GET /api/transferencias/{id}", r.secured(h.HandleGet))
	r.Mux.Handle("PUT /api/transferencias/{id}/status", r.secured(h.HandleUpdateStatus))
}

func (r *Router) registerWebhooks() {
	h := &WebhooksHandler{Webhooks: r.WebhookService}

	r.Mux.Handle("GET /api/webhooks", r.secured(h.HandleList))
	r.Mux.Handle("POST /api/webhooks", r.secured(h.HandleCreate))
	r.Mux.Handle("GET /api/webhooks/{id}", r.secured(h.HandleGet))
	r.Mux.Handle("PUT /api/webhooks/{id}", r.secured(h.HandleUpdate))
	r.Mux.Handle("DELETE /api/webhooks/{id}", r.secured(h.HandleDelete))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
}
