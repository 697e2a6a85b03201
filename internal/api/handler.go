package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/llmchat/backend/internal/chat"
	"github.com/llmchat/backend/internal/models"
	"go.uber.org/zap"
)

// maxPageLimit bounds the limit query parameter on list endpoints.
const maxPageLimit = 100

// Responder streams an assistant reply for a chat's current history.
type Responder interface {
	StreamResponse(ctx context.Context, detail models.ChatDetail) <-chan models.ResponseEvent
}

type Handler struct {
	chats     *chat.Usecase
	responder Responder
	logger    *zap.Logger
}

func NewHandler(chats *chat.Usecase, responder Responder, logger *zap.Logger) *Handler {
	return &Handler{
		chats:     chats,
		responder: responder,
		logger:    logger,
	}
}

// Routes returns the full /chats surface.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats", h.ListChats)
	mux.HandleFunc("POST /chats", h.CreateChat)
	mux.HandleFunc("DELETE /chats", h.DeleteChats)
	mux.HandleFunc("GET /chats/{chat_id}", h.GetChatDetail)
	mux.HandleFunc("PATCH /chats/{chat_id}", h.UpdateChatTitle)
	mux.HandleFunc("DELETE /chats/{chat_id}", h.DeleteChat)
	mux.HandleFunc("POST /chats/{chat_id}/messages", h.PostMessage)
	return mux
}

type createChatRequest struct {
	UserID string  `json:"user_id"`
	Title  *string `json:"title"`
}

type updateChatRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

type postMessageRequest struct {
	UserID  string           `json:"user_id"`
	Role    string           `json:"role"`
	Content []models.Content `json:"content"`
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chats, err := h.chats.ListChats(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, chats)
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	created, err := h.chats.CreateChat(r.Context(), req.UserID, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.chats.DeleteChats(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.chats.DeleteChat(r.Context(), userID, r.PathValue("chat_id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateChatTitle(w http.ResponseWriter, r *http.Request) {
	var req updateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	updated, err := h.chats.UpdateChatTitle(r.Context(), req.UserID, r.PathValue("chat_id"), req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) GetChatDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUserID(w, r)
	if !ok {
		return
	}
	limit, offset, err := parsePagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	detail, err := h.chats.ChatDetail(r.Context(), userID, r.PathValue("chat_id"), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// PostMessage stores the inbound message and streams the assistant reply
// as newline-delimited JSON events, flushed as they arrive. A client
// disconnect cancels generation through the request context.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if len(req.Content) == 0 {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	for _, item := range req.Content {
		if item.Type != models.ContentTypeText {
			http.Error(w, fmt.Sprintf("unsupported content type %q", item.Type), http.StatusBadRequest)
			return
		}
	}

	role := models.RoleUser
	if req.Role != "" {
		parsed, err := models.ParseRole(req.Role)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		role = parsed
	}

	chatID := r.PathValue("chat_id")
	if _, err := h.chats.AddMessage(r.Context(), req.UserID, chatID, role, req.Content); err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.chats.ChatDetail(r.Context(), req.UserID, chatID, 0, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for ev := range h.responder.StreamResponse(r.Context(), detail) {
		if err := enc.Encode(ev); err != nil {
			h.logger.Warn("failed to write stream event", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handler) requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit, err = intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	if limit > maxPageLimit {
		return 0, 0, fmt.Errorf("limit must not exceed %d", maxPageLimit)
	}
	offset, err = intParam(r, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidPagination):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrChatNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrNotChatOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
