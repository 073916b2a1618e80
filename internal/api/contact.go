package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/etk18/portfolio/internal/contact"
	"github.com/go-chi/chi/v5"
)

// ContactSender forwards contact-form submissions.
type ContactSender interface {
	Send(ctx context.Context, s contact.Submission) error
}

// ContactHandler serves the contact form.
type ContactHandler struct {
	sender ContactSender
}

// NewContactHandler creates a contact handler.
func NewContactHandler(sender ContactSender) *ContactHandler {
	return &ContactHandler{sender: sender}
}

// RegisterRoutes registers the contact route.
func (h *ContactHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/contact", h.Submit)
}

// Submit forwards one submission.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub contact.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		JSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}

	err := h.sender.Send(r.Context(), sub)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, map[string]interface{}{"success": true})
	case errors.Is(err, contact.ErrInvalidSubmission):
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Please fill in every field with a valid email address.",
		})
	default:
		slog.Error("Contact submission failed", "error", err)
		JSON(w, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"error":   "Failed to send message. Please try again.",
		})
	}
}
