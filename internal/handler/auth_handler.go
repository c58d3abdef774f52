package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/service"
)

// AuthHandler serves registration, login and account endpoints.
type AuthHandler struct {
	users    *service.UserService
	sessions *service.SessionService
	events   *service.EventService
	mw       *Middleware
	logger   zerolog.Logger

	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration
}

// AuthHandlerConfig contains configuration for the auth handler.
type AuthHandlerConfig struct {
	Users        *service.UserService
	Sessions     *service.SessionService
	Events       *service.EventService
	Middleware   *Middleware
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	Logger       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		users:        cfg.Users,
		sessions:     cfg.Sessions,
		events:       cfg.Events,
		mw:           cfg.Middleware,
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
		sessionTTL:   cfg.SessionTTL,
		logger:       cfg.Logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers auth routes. Credential endpoints sit behind
// the tighter auth rate limiter.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.AuthRateLimit)
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
	})

	r.Get("/auth/verify/{token}", h.handleVerifyEmail)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAuth)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)
		r.Post("/auth/password", h.handleChangePassword)
	})
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AccessKey string `json:"access_key"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		AccessKey: req.AccessKey,
		Meta:      h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.Authenticate(r.Context(), service.AuthenticateInput{
		Username: req.Username,
		Password: req.Password,
		Meta:     h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	session := h.sessions.Create(user.ID)
	h.setSessionCookie(w, session.Token, int(h.sessionTTL/time.Second))

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if session := sessionFrom(r); session != nil {
		h.sessions.Destroy(session.Token)
	}
	h.setSessionCookie(w, "", -1)

	event := h.mw.meta(r).Event(domain.EventLogout, domain.SeverityLow)
	event.UserID = &user.ID
	event.Username = user.Username
	h.events.Record(r.Context(), event)

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r))
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.users.VerifyEmail(r.Context(), token, h.mw.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user := userFrom(r)
	err := h.users.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:      user.ID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		Meta:        h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setSessionCookie writes or clears the session cookie.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}
