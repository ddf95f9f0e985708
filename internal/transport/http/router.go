package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/go-api-auth/internal/application/auth"
	"github.com/go-api-auth/internal/application/credential"
	"github.com/go-api-auth/internal/application/flow"
	"github.com/go-api-auth/internal/application/user"
	"github.com/go-api-auth/internal/application/verification"
	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/code"
	"github.com/go-api-auth/internal/transport/http/delivery"
	"github.com/go-api-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-api-auth/internal/transport/http/middleware"
)

// route is one row of the routing table.
type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
	gate    bool                            // requires a valid access credential
	owner   appmiddleware.AuthorizationCheck // extra check after the gate
	limited bool                            // per-IP rate limit
}

// Router is the application handler. Close releases the rate limiter.
type Router struct {
	http.Handler
	limiter *appmiddleware.RateLimiter
}

func (rt *Router) Close() { rt.limiter.Close() }

// NewRouter wires the services on top of deps and builds the route table.
func NewRouter(cfg *config.Config, deps *Deps) *Router {
	gen := deps.Codes
	if gen == nil {
		gen = code.NewGenerator()
	}
	issuer := credential.NewIssuer(deps.JWTProvider, deps.Store)
	authSvc := auth.NewService(auth.ServiceDeps{
		Users:         deps.Users,
		Codes:         verification.NewLedger(deps.Store, gen, cfg.Flows.Code),
		Registrations: flow.NewManager[domain.RegistrationState](deps.Store, flow.RegistrationPrefix),
		Logins:        flow.NewManager[domain.LoginState](deps.Store, flow.LoginPrefix),
		Credentials:   issuer,
		Mail:          deps.Mail,
		Flows:         cfg.Flows,
		BcryptCost:    deps.BcryptCost,
	})
	userSvc := user.NewService(deps.Users)

	strategy := delivery.NewStrategy(cfg)
	authH := handler.NewAuthHandler(authSvc, strategy)
	userH := handler.NewUserHandler(userSvc)
	healthH := handler.NewHealthHandler(deps.Store)

	routes := []route{
		{method: http.MethodPost, pattern: "/registration", handler: authH.RegisterEmail, limited: true},
		{method: http.MethodPost, pattern: "/registration/verification", handler: authH.RegisterVerify, limited: true},
		{method: http.MethodPost, pattern: "/registration/password-set", handler: authH.RegisterPassword, limited: true},
		{method: http.MethodPost, pattern: "/login", handler: authH.Login, limited: true},
		{method: http.MethodPost, pattern: "/login/verification", handler: authH.LoginVerify, limited: true},
		{method: http.MethodPost, pattern: "/logout", handler: authH.Logout},
		{method: http.MethodPost, pattern: "/token/refresh", handler: authH.Refresh},
		{method: http.MethodGet, pattern: "/is-authenticated", handler: authH.CheckAuth, gate: true},
		{method: http.MethodGet, pattern: "/users/{id}", handler: userH.Get},
		{method: http.MethodPut, pattern: "/users/{id}", handler: userH.Update, gate: true, owner: appmiddleware.IsOwner("id")},
		{method: http.MethodGet, pattern: "/health-check/{action}", handler: healthH.Check},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.ClientTypeHeader, cfg.RefreshTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.ClientContext(strategy))

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	gate := appmiddleware.Auth(issuer, strategy)

	r.Route("/v1", func(r chi.Router) {
		for _, rt := range routes {
			var mws []func(http.Handler) http.Handler
			if rt.limited {
				mws = append(mws, limiter.Limit)
			}
			if rt.gate {
				mws = append(mws, gate)
			}
			if rt.owner != nil {
				mws = append(mws, appmiddleware.Authorize(rt.owner))
			}
			r.With(mws...).Method(rt.method, rt.pattern, rt.handler)
		}
	})

	return &Router{Handler: r, limiter: limiter}
}
