package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/etk18/portfolio/internal/chat"
	"github.com/etk18/portfolio/internal/gate"
	"github.com/etk18/portfolio/internal/identity"
	"github.com/go-chi/chi/v5"
)

// SessionSource hands out the chat session of a visitor tab.
type SessionSource interface {
	Get(visitorID, sessionID string) *chat.Session
}

// AssistantHandler serves the public gated assistant over HTTP.
type AssistantHandler struct {
	sessions    SessionSource
	suggestions []string
	limit       func(http.Handler) http.Handler
}

// NewAssistantHandler creates an assistant handler. limit, if non-nil, wraps
// the message endpoint.
func NewAssistantHandler(sessions SessionSource, suggestions []string, limit func(http.Handler) http.Handler) *AssistantHandler {
	return &AssistantHandler{sessions: sessions, suggestions: suggestions, limit: limit}
}

type submitRequest struct {
	Message string `json:"message"`
}

type passkeyRequest struct {
	Passkey string `json:"passkey"`
}

// RegisterRoutes registers assistant routes.
func (h *AssistantHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant", func(r chi.Router) {
		r.Get("/", h.State)
		r.Get("/suggestions", h.Suggestions)
		r.Post("/unlock", h.Unlock)
		r.Post("/reset", h.Reset)
		if h.limit != nil {
			r.With(h.limit).Post("/messages", h.Submit)
		} else {
			r.Post("/messages", h.Submit)
		}
	})
}

func (h *AssistantHandler) session(r *http.Request) *chat.Session {
	ctx := r.Context()
	return h.sessions.Get(identity.VisitorIDFromContext(ctx), identity.SessionIDFromContext(ctx))
}

// State returns the current session snapshot.
func (h *AssistantHandler) State(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session(r).State(r.Context())
	if err != nil {
		slog.Error("Failed to load assistant state", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load assistant state")
		return
	}
	JSON(w, http.StatusOK, snap)
}

// Suggestions returns the one-click starter questions.
func (h *AssistantHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"suggestions": h.suggestions})
}

// Submit sends one user message.
func (h *AssistantHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := h.session(r)
	out, err := sess.Submit(r.Context(), req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		slog.Error("Assistant submit failed",
			"visitor_id", sess.VisitorID(),
			"session_id", sess.SessionID(),
			"error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, submitStatus(w, out), out)
}

// submitStatus maps an outcome to its HTTP status, setting Retry-After for a
// cooldown.
func submitStatus(w http.ResponseWriter, out chat.Outcome) int {
	switch out.Status {
	case chat.StatusBusy:
		return http.StatusConflict
	case chat.StatusCoolingDown:
		w.Header().Set("Retry-After", strconv.Itoa(out.State.CooldownSeconds))
		return http.StatusTooManyRequests
	case chat.StatusPaywall:
		return http.StatusPaymentRequired
	default:
		return http.StatusOK
	}
}

// Unlock validates a premium passkey.
func (h *AssistantHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req passkeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.session(r).Unlock(r.Context(), req.Passkey)
	if errors.Is(err, gate.ErrInvalidPasskey) {
		JSON(w, http.StatusForbidden, map[string]interface{}{
			"error": chat.InvalidPasskeyMessage,
			"state": snap,
		})
		return
	}
	if err != nil {
		slog.Error("Assistant unlock failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to unlock")
		return
	}
	JSON(w, http.StatusOK, snap)
}

// Reset clears the transcript back to the greeting.
func (h *AssistantHandler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session(r).Reset(r.Context())
	if err != nil {
		slog.Error("Assistant reset failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to reset")
		return
	}
	JSON(w, http.StatusOK, snap)
}
