package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/service"
)

// ThreadHandler serves forum content endpoints.
type ThreadHandler struct {
	threads *service.ThreadService
	mw      *Middleware
	logger  zerolog.Logger
}

// NewThreadHandler creates a new ThreadHandler.
func NewThreadHandler(threads *service.ThreadService, mw *Middleware, logger zerolog.Logger) *ThreadHandler {
	return &ThreadHandler{
		threads: threads,
		mw:      mw,
		logger:  logger.With().Str("handler", "thread").Logger(),
	}
}

// RegisterRoutes registers thread routes. Reads allow anonymous viewers;
// writes require a session.
func (h *ThreadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/threads", h.handleList)
	r.Get("/threads/{id}", h.handleGet)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAuth)
		r.Post("/threads", h.handleCreate)
		r.Post("/threads/{id}/replies", h.handleCreateReply)
	})
}

func (h *ThreadHandler) handleList(w http.ResponseWriter, r *http.Request) {
	wantPrivate := r.URL.Query().Get("private") == "true"

	threads, err := h.threads.ListThreads(r.Context(), userFrom(r), wantPrivate, h.mw.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if threads == nil {
		threads = []*domain.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *ThreadHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid thread id"})
		return
	}

	page, err := h.threads.GetThread(r.Context(), id, userFrom(r), h.mw.meta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Replies == nil {
		page.Replies = []*domain.Reply{}
	}
	writeJSON(w, http.StatusOK, page)
}

type createThreadRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	IsPrivate bool   `json:"is_private"`
}

func (h *ThreadHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	thread, err := h.threads.CreateThread(r.Context(), service.CreateThreadInput{
		Title:     req.Title,
		Body:      req.Body,
		IsPrivate: req.IsPrivate,
		Author:    userFrom(r),
		Meta:      h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, thread)
}

type createReplyRequest struct {
	Text string `json:"text"`
}

func (h *ThreadHandler) handleCreateReply(w http.ResponseWriter, r *http.Request) {
	threadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid thread id"})
		return
	}

	var req createReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	reply, err := h.threads.CreateReply(r.Context(), service.CreateReplyInput{
		ThreadID: threadID,
		Text:     req.Text,
		Author:   userFrom(r),
		Meta:     h.mw.meta(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reply)
}
