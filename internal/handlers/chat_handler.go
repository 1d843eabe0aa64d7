package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"chatstream/internal/middleware"
	"chatstream/internal/observability"
	"chatstream/internal/services"
	"chatstream/internal/services/chat"
	"chatstream/internal/services/quota"
)

type ChatHandler struct {
	chatService      chat.ChatProvider
	streamingService chat.StreamProvider
	quotaService     *quota.Service
	logger           services.Logger
}

func NewChatHandler(cs chat.ChatProvider, ss chat.StreamProvider, qs *quota.Service, logger services.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:      cs,
		streamingService: ss,
		quotaService:     qs,
		logger:           logger,
	}
}

type streamChatRequest struct {
	ChatID  uint   `json:"chatId"`
	Message string `json:"message"`
}

// StreamChat handles POST /api/chat: it authenticates, enforces the daily
// quota, then streams the completion back chunk by chunk.
//
// Preconditions short-circuit in order: 401 (no user), 400 (missing
// fields), 429 (quota), 404 (chat not owned). Admission is checked before
// anything is written, so a rejected attempt persists nothing.
func (h *ChatHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req streamChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if req.ChatID == 0 || strings.TrimSpace(req.Message) == "" {
		writeError(w, "Missing chatId or message", http.StatusBadRequest)
		return
	}

	decision, err := h.quotaService.Admit(r.Context(), userID)
	if err != nil {
		h.logger.Error("quota admission failed", "error", err, "user_id", userID)
		writeError(w, "Could not check message quota", http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		observability.IncQuotaRejection()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":     "rate_limit_exceeded",
			"message":   fmt.Sprintf("Daily limit of %d messages reached. Your limit resets at midnight UTC.", decision.Limit),
			"limit":     decision.Limit,
			"remaining": 0,
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	flusher, canFlush := w.(http.Flusher)

	// The exchange runs on a context detached from the request: a client
	// that aborts mid-stream stops receiving bytes, but the provider call
	// runs to completion and the full assistant turn is still persisted.
	// The provider call carries its own timeout inside the service.
	streamCtx := context.WithoutCancel(r.Context())

	wroteAny := false
	clientGone := false
	err = h.streamingService.StreamExchange(streamCtx, userID, req.ChatID, req.Message, func(delta string) error {
		observability.IncStreamDelta()
		if clientGone {
			return nil
		}
		if _, werr := w.Write([]byte(delta)); werr != nil {
			// Keep consuming the provider stream so completion persistence
			// still happens; just stop forwarding.
			clientGone = true
			h.logger.Warn("client disconnected mid-stream", "user_id", userID, "chat_id", req.ChatID)
			return nil
		}
		wroteAny = true
		if canFlush {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		if wroteAny {
			// Headers are gone; nothing sensible to send. Log and stop.
			h.logger.Error("stream failed after partial response", "error", err, "chat_id", req.ChatID)
			return
		}
		if chat.IsNotFound(err) {
			writeError(w, "Chat not found", http.StatusNotFound)
			return
		}
		h.logger.Error("stream exchange failed", "error", err, "chat_id", req.ChatID)
		writeError(w, "Error processing chat: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetUserChats handles the request to retrieve all chat histories for a user.
func (h *ChatHandler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := h.chatService.GetUserChats(r.Context(), userID)
	if err != nil {
		writeError(w, "Could not retrieve chats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// CreateChat starts a fresh conversation for the user.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	created, err := h.chatService.CreateChat(r.Context(), userID)
	if err != nil {
		writeError(w, "Could not create chat", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetChatMessages handles the request to retrieve all messages for a specific chat.
func (h *ChatHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	messages, err := h.chatService.GetChatMessages(r.Context(), userID, chatID)
	if err != nil {
		if chat.IsNotFound(err) {
			writeError(w, "Chat not found", http.StatusNotFound)
			return
		}
		writeError(w, "Could not retrieve messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatID, err := chatIDFromPath(r)
	if err != nil {
		writeError(w, "Invalid chat ID", http.StatusBadRequest)
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), userID, chatID); err != nil {
		if chat.IsNotFound(err) {
			writeError(w, "Chat not found", http.StatusNotFound)
			return
		}
		writeError(w, "Could not delete chat", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func chatIDFromPath(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	chatID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil || chatID == 0 {
		return 0, fmt.Errorf("invalid chat id %q", vars["id"])
	}
	return uint(chatID), nil
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
