package api

import (
	"net/http"

	"github.com/etk18/portfolio/internal/knowledge"
	"github.com/go-chi/chi/v5"
)

// PortfolioSource returns the current portfolio content.
type PortfolioSource interface {
	Portfolio() *knowledge.Portfolio
}

// PortfolioHandler serves the portfolio content the site renders.
type PortfolioHandler struct {
	source PortfolioSource
}

// NewPortfolioHandler creates a portfolio handler.
func NewPortfolioHandler(source PortfolioSource) *PortfolioHandler {
	return &PortfolioHandler{source: source}
}

// RegisterRoutes registers the portfolio route.
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/portfolio", h.Get)
}

// Get returns the portfolio as JSON.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=60")
	JSON(w, http.StatusOK, h.source.Portfolio())
}
