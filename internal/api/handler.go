package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/anikdas/chatloom/internal/chat"
	"github.com/anikdas/chatloom/internal/db"
)

type Handler struct {
	db       *db.Database
	pipeline *chat.Pipeline
	logger   *zap.Logger
}

func NewHandler(database *db.Database, pipeline *chat.Pipeline, logger *zap.Logger) *Handler {
	return &Handler{
		db:       database,
		pipeline: pipeline,
		logger:   logger,
	}
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type RenameConversationRequest struct {
	Title string `json:"title"`
}

type SendMessageRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId"`
}

// Routes registers all API routes on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("POST /api/conversations", h.CreateConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", h.RenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.DeleteConversation)
	mux.HandleFunc("GET /api/messages", h.ListMessages)
	mux.HandleFunc("POST /api/messages", h.SendMessage)
	mux.HandleFunc("OPTIONS /api/", h.preflight)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.db.ListConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}
	h.writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conversation, err := h.db.CreateConversation(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	h.logger.Info("created conversation", zap.String("id", conversation.ID))
	h.writeJSON(w, http.StatusOK, conversation)
}

func (h *Handler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req RenameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	conversation, err := h.db.RenameConversation(r.Context(), id, req.Title)
	if errors.Is(err, db.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to rename conversation", zap.Error(err), zap.String("id", id))
		h.writeError(w, http.StatusInternalServerError, "Failed to rename conversation")
		return
	}

	h.writeJSON(w, http.StatusOK, conversation)
}

// DeleteConversation cascades to the conversation's messages and is
// idempotent: deleting an unknown id succeeds.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.db.DeleteConversation(r.Context(), id); err != nil {
		h.logger.Error("failed to delete conversation", zap.Error(err), zap.String("id", id))
		h.writeError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		h.writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	messages, err := h.db.ListMessages(r.Context(), conversationID)
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err), zap.String("conversationId", conversationID))
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	h.writeJSON(w, http.StatusOK, messages)
}

// SendMessage runs the conversation pipeline and returns the full updated
// transcript for the conversation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	messages, err := h.pipeline.Send(r.Context(), req.ConversationID, req.Content)
	if err != nil {
		var invalid *chat.InvalidRequestError
		if errors.As(err, &invalid) {
			h.writeError(w, http.StatusBadRequest, invalid.Reason)
			return
		}
		h.logger.Error("failed to process message", zap.Error(err), zap.String("conversationId", req.ConversationID))
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	h.writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusNoContent)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
