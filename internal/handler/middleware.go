package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/metrics"
	"github.com/palisade-forum/palisade/internal/ratelimit"
	"github.com/palisade-forum/palisade/internal/service"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeySession
)

// userFrom returns the authenticated user attached to the request, or nil.
func userFrom(r *http.Request) *domain.User {
	user, _ := r.Context().Value(ctxKeyUser).(*domain.User)
	return user
}

// sessionFrom returns the session attached to the request, or nil.
func sessionFrom(r *http.Request) *domain.Session {
	session, _ := r.Context().Value(ctxKeySession).(*domain.Session)
	return session
}

// Middleware bundles the security middleware chain: panic recovery,
// request logging, metrics, the IP gate, rate limiting and session
// resolution.
type Middleware struct {
	sessions *service.SessionService
	users    *service.UserService
	bans     *service.IPBanService
	events   *service.EventService
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	globalLimiter *ratelimit.Limiter
	authLimiter   *ratelimit.Limiter

	cookieName string
	trustProxy bool
}

// MiddlewareConfig contains configuration for the middleware chain.
type MiddlewareConfig struct {
	Sessions      *service.SessionService
	Users         *service.UserService
	Bans          *service.IPBanService
	Events        *service.EventService
	Metrics       *metrics.Metrics
	GlobalLimiter *ratelimit.Limiter
	AuthLimiter   *ratelimit.Limiter
	CookieName    string
	TrustProxy    bool
	Logger        zerolog.Logger
}

// NewMiddleware creates the middleware chain.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	return &Middleware{
		sessions:      cfg.Sessions,
		users:         cfg.Users,
		bans:          cfg.Bans,
		events:        cfg.Events,
		metrics:       cfg.Metrics,
		globalLimiter: cfg.GlobalLimiter,
		authLimiter:   cfg.AuthLimiter,
		cookieName:    cfg.CookieName,
		trustProxy:    cfg.TrustProxy,
		logger:        cfg.Logger.With().Str("component", "middleware").Logger(),
	}
}

// clientIP extracts the client address, honoring X-Forwarded-For only
// when the deployment says the proxy header can be trusted.
func (m *Middleware) clientIP(r *http.Request) string {
	if m.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// meta builds the audit context for the request.
func (m *Middleware) meta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        m.clientIP(r),
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
	}
}

// Recoverer converts panics into 500 responses and critical audit events.
func (m *Middleware) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")

				event := m.meta(r).Event(domain.EventServerError, domain.SeverityCritical)
				event.Details = map[string]any{"panic": true}
				m.events.Record(r.Context(), event)

				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per completed request.
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		m.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", m.clientIP(r)).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Metrics observes request counts and latency per chi route pattern.
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.metrics.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}

// IPGate rejects requests from banned addresses before anything else
// touches them. The rejection itself is a critical audit event.
func (m *Middleware) IPGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.clientIP(r)

		banned, err := m.bans.CheckBanned(r.Context(), ip)
		if err != nil {
			writeError(w, err)
			return
		}
		if banned {
			m.bans.RecordBlocked(r.Context(), m.meta(r))
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "access denied"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GlobalRateLimit applies the per-IP request budget to every route.
func (m *Middleware) GlobalRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.globalLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip := m.clientIP(r)

		if !m.globalLimiter.Allow(ip) {
			if m.metrics != nil {
				m.metrics.RateLimitHits.WithLabelValues("global").Inc()
			}
			m.events.Record(r.Context(), m.meta(r).Event(domain.EventRateLimitExceeded, domain.SeverityMedium))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthRateLimit applies the tighter per-IP budget to credential endpoints.
// Successful attempts are refunded so only failures burn the budget.
func (m *Middleware) AuthRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip := m.clientIP(r)

		if !m.authLimiter.Allow(ip) {
			if m.metrics != nil {
				m.metrics.RateLimitHits.WithLabelValues("auth").Inc()
			}
			m.events.Record(r.Context(), m.meta(r).Event(domain.EventAuthRateLimit, domain.SeverityHigh))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many attempts, try again later"})
			return
		}

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if ww.Status() < http.StatusBadRequest {
			m.authLimiter.Forgive(ip)
		}
	})
}

// SessionLoader resolves the session cookie into a user on the request
// context. Banned accounts lose their session on the spot.
func (m *Middleware) SessionLoader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.sessions.Get(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), session.UserID)
		if err != nil {
			// Account deleted since login; the session is dead weight.
			m.sessions.Destroy(session.Token)
			next.ServeHTTP(w, r)
			return
		}

		// The ban flag is re-checked on every request, not just at login.
		if user.IsBanned {
			m.sessions.Destroy(session.Token)

			event := m.meta(r).Event(domain.EventBannedUserAttempt, domain.SeverityHigh)
			event.UserID = &user.ID
			event.Username = user.Username
			m.events.Record(r.Context(), event)

			writeJSON(w, http.StatusForbidden, errorResponse{Error: "account banned"})
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		ctx = context.WithValue(ctx, ctxKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r) == nil {
			m.events.Record(r.Context(), m.meta(r).Event(domain.EventUnauthorizedAccess, domain.SeverityMedium))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin requests. Attempts are high-severity
// audit events since probing admin endpoints is rarely innocent.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r)
		if user == nil {
			m.events.Record(r.Context(), m.meta(r).Event(domain.EventUnauthorizedAccess, domain.SeverityMedium))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		if !user.IsAdmin {
			event := m.meta(r).Event(domain.EventAdminAccessDenied, domain.SeverityHigh)
			event.UserID = &user.ID
			event.Username = user.Username
			m.events.Record(r.Context(), event)
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
