package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/edubot/internal/models"
	"github.com/aigoflow/edubot/internal/services"
)

// ChatBackend is implemented by services.ChatService.
type ChatBackend interface {
	Answer(ctx context.Context, req services.ChatRequest, source string, workerID string) (*services.ChatResponse, error)
	GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error)
	GetEvents(ctx context.Context, limit int) ([]*models.Event, error)
}

type ChatHandler struct {
	chat ChatBackend
}

func NewChatHandler(chat ChatBackend) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/chat", h.handleChat)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/logs", h.handleLogs)
	mux.HandleFunc("/events", h.handleEvents)
}

func (h *ChatHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var query models.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req := services.ChatRequest{
		ReqID:    ulid.Make().String(),
		Question: query.Question,
		TraceID:  r.Header.Get("X-Trace-ID"),
	}

	resp, err := h.chat.Answer(r.Context(), req, "http.chat", "http-worker")
	if err != nil {
		slog.Error("Chat request failed", "req_id", req.ReqID, "error", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	slog.Debug("Chat request completed",
		"req_id", req.ReqID,
		"tokens_out", resp.TokensOut,
		"duration_ms", resp.DurationMs,
		"cached", resp.Cached)

	w.Header().Set("X-Request-ID", req.ReqID)
	writeJSON(w, http.StatusOK, models.Answer{Answer: resp.Answer})
}

func (h *ChatHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.chat.GetRequestLogs(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get logs: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

func (h *ChatHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.chat.GetEvents(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get events: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func queryLimit(r *http.Request) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 50
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
