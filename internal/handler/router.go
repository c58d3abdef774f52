package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Router assembles the middleware chain and route table.
type Router struct {
	mw      *Middleware
	auth    *AuthHandler
	threads *ThreadHandler
	admin   *AdminHandler
	metrics http.Handler
	health  func() error
	logger  zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Middleware     *Middleware
	AuthHandler    *AuthHandler
	ThreadHandler  *ThreadHandler
	AdminHandler   *AdminHandler
	MetricsHandler http.Handler
	HealthCheck    func() error
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		mw:      cfg.Middleware,
		auth:    cfg.AuthHandler,
		threads: cfg.ThreadHandler,
		admin:   cfg.AdminHandler,
		metrics: cfg.MetricsHandler,
		health:  cfg.HealthCheck,
		logger:  cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler. The ordering matters: panic
// recovery wraps everything, then logging and metrics observe every
// request, then the IP gate refuses banned addresses on every surface
// (operational endpoints included) before rate limiting and session
// resolution run for the API.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(rt.mw.Recoverer)
	r.Use(rt.mw.RequestLogger)
	r.Use(rt.mw.Metrics)
	r.Use(rt.mw.IPGate)

	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.mw.GlobalRateLimit)
		r.Use(rt.mw.SessionLoader)

		rt.auth.RegisterRoutes(r)
		rt.threads.RegisterRoutes(r)
		rt.admin.RegisterRoutes(r)
	})

	return r
}

// handleHealth reports process and database health.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		if err := rt.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
