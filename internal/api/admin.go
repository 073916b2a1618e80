package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/etk18/portfolio/internal/assistant"
	"github.com/etk18/portfolio/internal/auth"
	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/llm"
	"github.com/go-chi/chi/v5"
)

// Authenticator issues and verifies admin tokens.
type Authenticator interface {
	Login(username, password string) (*auth.Token, error)
	Middleware(next http.Handler) http.Handler
}

// AdminChatter is the private admin assistant.
type AdminChatter interface {
	Chat(ctx context.Context, message string, history []domain.Turn) (string, error)
}

// ConversationLog reads and appends admin conversation rows.
type ConversationLog interface {
	InsertConversation(ctx context.Context, role domain.Role, content string) (*domain.ConversationRow, error)
	ListConversations(ctx context.Context, limit int) ([]domain.ConversationRow, error)
}

// AdminHandler serves the login endpoint and the bearer-protected admin API.
type AdminHandler struct {
	auth          Authenticator
	chat          AdminChatter
	conversations ConversationLog
	limit         func(http.Handler) http.Handler
}

// NewAdminHandler creates an admin handler. conversations may be nil, in
// which case the conversation endpoints answer with an empty fallback.
func NewAdminHandler(a Authenticator, chat AdminChatter, conversations ConversationLog, limit func(http.Handler) http.Handler) *AdminHandler {
	return &AdminHandler{auth: a, chat: chat, conversations: conversations, limit: limit}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	// Every verb reaches Login, which answers non-POST with 405.
	if h.limit != nil {
		r.With(h.limit).HandleFunc("/api/auth", h.Login)
	} else {
		r.HandleFunc("/api/auth", h.Login)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Post("/api/chat", h.Chat)
		r.Get("/api/conversations", h.ListConversations)
		r.Post("/api/conversations", h.SaveConversation)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges admin credentials for a token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, r)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}

	tok, err := h.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Warn("Admin login rejected", "remote_addr", r.RemoteAddr)
		JSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "Invalid credentials"})
		return
	}
	if err != nil {
		slog.Error("Admin login failed", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Internal server error"})
		return
	}

	slog.Info("Admin logged in", "expires_at", tok.ExpiresAt)
	JSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     tok.Value,
		Message:   "Authentication successful",
		ExpiresAt: tok.ExpiresAt,
	})
}

type adminChatRequest struct {
	Message             string        `json:"message"`
	ConversationHistory []domain.Turn `json:"conversationHistory"`
}

// Chat answers the admin and stores both turns.
func (h *AdminHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req adminChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chat.Chat(r.Context(), req.Message, req.ConversationHistory)
	switch {
	case errors.Is(err, assistant.ErrMessageRequired):
		Error(w, http.StatusBadRequest, "Message is required")
		return
	case errors.Is(err, llm.ErrNotConfigured):
		Error(w, http.StatusInternalServerError, "Groq API key not configured")
		return
	case err != nil:
		slog.Error("Admin chat error", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to process chat",
			"details": err.Error(),
		})
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "response": reply})
}

// ListConversations returns stored rows in ascending order. An optional
// ?limit=N keeps only the most recent N.
func (h *AdminHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	if h.conversations == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"conversations": []domain.ConversationRow{}, "fallback": true})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rows, err := h.conversations.ListConversations(r.Context(), limit)
	if err != nil {
		slog.Error("Conversations API error", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error", "details": err.Error()})
		return
	}
	if rows == nil {
		rows = []domain.ConversationRow{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"conversations": rows})
}

type saveConversationRequest struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// SaveConversation appends one row.
func (h *AdminHandler) SaveConversation(w http.ResponseWriter, r *http.Request) {
	var req saveConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || !req.Role.Valid() {
		Error(w, http.StatusBadRequest, "Role and content are required")
		return
	}
	if h.conversations == nil {
		JSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"fallback": true,
			"message":  "Database not configured, message not persisted",
		})
		return
	}

	row, err := h.conversations.InsertConversation(r.Context(), req.Role, req.Content)
	if err != nil {
		slog.Error("Conversations API error", "error", err)
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error", "details": err.Error()})
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": row})
}
