/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the mobile/web frontend
  5. RateLimit:  Token bucket per client IP (auth and API routes)
  6. Auth:       Bearer token on /api/planes and /auth/profile

ROUTE GROUPS:
  /healthz          Liveness
  /auth/*           Register, login (public) and profile (token)
  /api/destinos     Catalog (public)
  /api/planes/*     Plans of the token's user

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options tunes the router. Zero values select the defaults.
type Options struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	// DisableRequestLog silences middleware.Logger, e.g. in tests.
	DisableRequestLog bool
}

var defaultOrigins = []string{"http://localhost:8081", "http://localhost:19006", "http://localhost:5173"}

const (
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = defaultOrigins
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = DefaultRateLimitRPS
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = DefaultRateLimitBurst
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if !opts.DisableRequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	limiter := NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	authed := Authenticate(h.Tokens)

	// Auth routes
	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.Limit)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authed).Patch("/profile", h.UpdateProfile)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Limit)

		r.Get("/destinos", h.ListDestinations)

		r.Route("/planes", func(r chi.Router) {
			r.Use(authed)
			r.Get("/", h.ListPlans)
			r.Post("/", h.CreatePlan)
			r.Put("/{id}", h.UpdatePlan)
			r.Delete("/{id}", h.DeletePlan)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Ruta no encontrada", nil)
	})

	return r
}
