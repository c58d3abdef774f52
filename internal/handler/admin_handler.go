package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
	"github.com/palisade-forum/palisade/internal/service"
)

// AdminHandler serves the admin console API: user management, registration
// keys, content moderation, IP bans and the audit log.
type AdminHandler struct {
	users   *service.UserService
	keys    *service.AccessKeyService
	threads *service.ThreadService
	bans    *service.IPBanService
	events  *service.EventService
	stats   *service.StatsService
	mw      *Middleware
	logger  zerolog.Logger
}

// AdminHandlerConfig contains configuration for the admin handler.
type AdminHandlerConfig struct {
	Users      *service.UserService
	Keys       *service.AccessKeyService
	Threads    *service.ThreadService
	Bans       *service.IPBanService
	Events     *service.EventService
	Stats      *service.StatsService
	Middleware *Middleware
	Logger     zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		users:   cfg.Users,
		keys:    cfg.Keys,
		threads: cfg.Threads,
		bans:    cfg.Bans,
		events:  cfg.Events,
		stats:   cfg.Stats,
		mw:      cfg.Middleware,
		logger:  cfg.Logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers admin routes. Everything here requires an
// admin session.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAdmin)

		r.Get("/admin/stats", h.handleStats)

		r.Get("/admin/users", h.handleListUsers)
		r.Post("/admin/users", h.handleCreateUser)
		r.Put("/admin/users/{id}/ban", h.handleSetBanned)
		r.Put("/admin/users/{id}/roles", h.handleSetRoles)
		r.Delete("/admin/users/{id}", h.handleDeleteUser)

		r.Get("/admin/keys", h.handleListKeys)
		r.Post("/admin/keys", h.handleGenerateKeys)
		r.Delete("/admin/keys/{id}", h.handleDeleteKey)

		r.Get("/admin/threads", h.handleListAllThreads)
		r.Delete("/admin/threads/{id}", h.handleDeleteThread)
		r.Delete("/admin/replies/{id}", h.handleDeleteReply)

		r.Get("/admin/ipbans", h.handleListIPBans)
		r.Post("/admin/ipbans", h.handleCreateIPBan)
		r.Delete("/admin/ipbans/{id}", h.handleDeleteIPBan)

		r.Get("/admin/siem", h.handleQueryEvents)
		r.Post("/admin/siem/purge", h.handlePurgeEvents)
	})
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// =============================================================================
// Stats
// =============================================================================

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// Users
// =============================================================================

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	result, err := h.users.ListUsers(r.Context(), repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createUserRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	IsAdmin          bool   `json:"is_admin"`
	HasPrivateAccess bool   `json:"has_private_access"`
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.CreateUser(r.Context(), service.CreateUserInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		IsAdmin:          req.IsAdmin,
		HasPrivateAccess: req.HasPrivateAccess,
		Actor:            userFrom(r),
		Meta:             h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type setBannedRequest struct {
	Banned bool `json:"banned"`
}

func (h *AdminHandler) handleSetBanned(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	var req setBannedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.SetBanned(r.Context(), userFrom(r), id, req.Banned, h.mw.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type setRolesRequest struct {
	IsAdmin          bool `json:"is_admin"`
	HasPrivateAccess bool `json:"has_private_access"`
}

func (h *AdminHandler) handleSetRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	var req setRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.SetRoles(r.Context(), userFrom(r), id, req.IsAdmin, req.HasPrivateAccess, h.mw.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	if err := h.users.DeleteUser(r.Context(), userFrom(r), id, h.mw.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Registration Keys
// =============================================================================

func (h *AdminHandler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if keys == nil {
		keys = []*domain.AccessKey{}
	}
	writeJSON(w, http.StatusOK, keys)
}

type generateKeysRequest struct {
	Count int `json:"count"`
}

func (h *AdminHandler) handleGenerateKeys(w http.ResponseWriter, r *http.Request) {
	var req generateKeysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	actor := userFrom(r)
	output, err := h.keys.Generate(r.Context(), service.GenerateInput{
		Count:     req.Count,
		CreatedBy: actor.ID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	event := h.mw.meta(r).Event(domain.EventKeysGenerated, domain.SeverityMedium)
	event.UserID = &actor.ID
	event.Username = actor.Username
	event.Details = map[string]any{"count": len(output.Keys)}
	h.events.Record(r.Context(), event)

	writeJSON(w, http.StatusCreated, output.Keys)
}

func (h *AdminHandler) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid key id"})
		return
	}

	if err := h.keys.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	actor := userFrom(r)
	event := h.mw.meta(r).Event(domain.EventKeyDeleted, domain.SeverityMedium)
	event.UserID = &actor.ID
	event.Username = actor.Username
	event.Details = map[string]any{"key_id": id}
	h.events.Record(r.Context(), event)

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Content Moderation
// =============================================================================

func (h *AdminHandler) handleListAllThreads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	threads, err := h.threads.ListAllThreads(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if threads == nil {
		threads = []*domain.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *AdminHandler) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid thread id"})
		return
	}

	if err := h.threads.DeleteThread(r.Context(), id, userFrom(r), h.mw.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleDeleteReply(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid reply id"})
		return
	}

	if err := h.threads.DeleteReply(r.Context(), id, userFrom(r), h.mw.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// IP Bans
// =============================================================================

func (h *AdminHandler) handleListIPBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.bans.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if bans == nil {
		bans = []*domain.IPBan{}
	}
	writeJSON(w, http.StatusOK, bans)
}

type createIPBanRequest struct {
	IP              string `json:"ip_address"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *AdminHandler) handleCreateIPBan(w http.ResponseWriter, r *http.Request) {
	var req createIPBanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ban, err := h.bans.Ban(r.Context(), service.BanInput{
		IP:       req.IP,
		Reason:   req.Reason,
		Duration: time.Duration(req.DurationMinutes) * time.Minute,
		Actor:    userFrom(r),
		Meta:     h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ban)
}

func (h *AdminHandler) handleDeleteIPBan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ban id"})
		return
	}

	if err := h.bans.Unban(r.Context(), id, userFrom(r), h.mw.meta(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Audit Log
// =============================================================================

func (h *AdminHandler) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	output, err := h.events.Query(r.Context(), service.QueryEventsInput{
		Severity: q.Get("severity"),
		Type:     q.Get("type"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if output.Events == nil {
		output.Events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, output)
}

func (h *AdminHandler) handlePurgeEvents(w http.ResponseWriter, r *http.Request) {
	removed, err := h.events.Purge(r.Context(), userFrom(r), h.mw.clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
