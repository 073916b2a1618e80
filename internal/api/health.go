package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo          Pinger
	conversations Pinger
	llmEnabled    bool
	timeout       time.Duration
}

// NewHealthHandler creates a health handler. conversations is checked only
// when it is a different store from repo.
func NewHealthHandler(repo, conversations Pinger, llmEnabled bool) *HealthHandler {
	if conversations == repo {
		conversations = nil
	}
	return &HealthHandler{
		repo:          repo,
		conversations: conversations,
		llmEnabled:    llmEnabled,
		timeout:       5 * time.Second,
	}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "dependency", "database", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.conversations != nil {
		if err := h.conversations.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", "conversations", "error", err)
			status["status"] = "degraded"
			checks["conversations"] = "unreachable"
		} else {
			checks["conversations"] = "ok"
		}
	}

	if h.llmEnabled {
		checks["llm"] = "configured"
	} else {
		checks["llm"] = "disabled"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the dependency health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
