package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/metrics"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/pkg/httpx"
	"github.com/aussiebroadwan/rollcall/pkg/slogx"

	_ "github.com/aussiebroadwan/rollcall/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterOptions carries the dependencies shared by the handlers.
type RouterOptions struct {
	Auth    *service.AuthService
	Gate    *service.Gate
	Metrics *metrics.Metrics // optional
	Ready   Pinger

	BuildVersion string
	CORSOrigins  []string
	Logger       *slog.Logger
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	auth         *service.AuthService
	gate         *service.Gate
	metrics      *metrics.Metrics
	ready        Pinger
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		auth:         opts.Auth,
		gate:         opts.Gate,
		metrics:      opts.Metrics,
		ready:        opts.Ready,
		buildVersion: opts.BuildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}
	if r.ready == nil && opts.Auth != nil {
		r.ready = opts.Auth.Store
	}

	// Instrument goes last so it wraps the mux directly and sees the
	// matched route pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.CORSMiddleware(httpx.CORSConfig{AllowedOrigins: opts.CORSOrigins}),
	}
	if r.metrics != nil {
		r.middlewares = append(r.middlewares, r.metrics.Instrument)
	}

	return r
}

// ApplyRoutes registers every endpoint on the mux.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccess()
	r.registerSystem()

	r.Mux.Handle("GET /swagger/", httpSwagger.Handler())

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Rollcall Authentication API
//	@version		0.1.0
//	@description	Staff identity, token and role service for the rollcall attendance and payroll system.
//	@description
//	@description				Access and refresh tokens are HS256 JWTs. Access tokens live five minutes and refresh tokens seven days.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/rollcall
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
	h := r.handler
	if h == nil {
		h = httpx.Chain(r.Mux, r.middlewares...)
	}
	h.ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware[domain.Identity](bearerAuthenticator{r.auth})
}

// bearerAuthenticator tags token rejections for the authn middleware so
// store failures are answered with a 500 instead of a challenge.
type bearerAuthenticator struct {
	auth *service.AuthService
}

func (b bearerAuthenticator) Authenticate(ctx context.Context, raw string) (domain.Identity, error) {
	id, err := b.auth.Authenticate(ctx, raw)
	if errors.Is(err, service.ErrUnauthenticated) {
		return id, fmt.Errorf("%w: %w", httpx.ErrUnauthenticated, err)
	}
	return id, err
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.auth}

	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Limited per IP and username so one address can't spray passwords
	// across accounts faster than the strict profile allows.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/profile",
		httpx.Chain(http.HandlerFunc(h.HandleProfile),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccess() {
	probes := []struct {
		path    string
		handler http.Handler
		allowed []string
	}{
		{"GET /v1/access/admin", adminGreeting(), []string{domain.RoleAdmin}},
		{"GET /v1/access/manager", managerGreeting(), []string{domain.RoleManager, domain.RoleAdmin}},
		{"GET /v1/access/hr", hrGreeting(), []string{domain.RoleHR, domain.RoleManager, domain.RoleAdmin}},
		{"GET /v1/access/employee", employeeGreeting(), []string{domain.RoleEmployee}},
	}

	for _, p := range probes {
		r.Mux.Handle(p.path,
			httpx.Chain(p.handler,
				r.authn(),
				httpx.RateLimitByUser(httpx.LenientLimit),
				requireRoles(r.gate, p.allowed...),
			),
		)
	}

	r.Mux.Handle("POST /v1/authorize",
		httpx.Chain(&AuthorizeHandler{Gate: r.gate},
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.ready),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}
