package api

import (
	"net/http"

	"github.com/etk18/portfolio/internal/identity"
	"github.com/etk18/portfolio/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes bundles everything NewRouter mounts. Nil handlers are skipped.
type Routes struct {
	AllowedOrigins []string
	IsDevelopment  bool
	Visitors       identity.VisitorStore

	Health    *HealthHandler
	Portfolio *PortfolioHandler
	Assistant *AssistantHandler
	ATS       *ATSHandler
	Contact   *ContactHandler
	Admin     *AdminHandler

	// Realtime serves GET /ws/assistant.
	Realtime http.Handler
	// SPA serves every path not matched above.
	SPA http.Handler
}

// NewRouter assembles the HTTP surface.
func NewRouter(rt Routes) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(rt.AllowedOrigins))

	r.MethodNotAllowed(MethodNotAllowed)

	if rt.Health != nil {
		rt.Health.RegisterHealth(r)
	}
	if rt.Portfolio != nil {
		rt.Portfolio.RegisterRoutes(r)
	}
	if rt.Contact != nil {
		rt.Contact.RegisterRoutes(r)
	}
	if rt.Admin != nil {
		rt.Admin.RegisterRoutes(r)
	}

	// Visitor-facing routes carry the anonymous identity.
	r.Group(func(r chi.Router) {
		if rt.Visitors != nil {
			r.Use(identity.Middleware(rt.Visitors, rt.IsDevelopment))
		}
		if rt.Assistant != nil {
			rt.Assistant.RegisterRoutes(r)
		}
		if rt.ATS != nil {
			rt.ATS.RegisterRoutes(r)
		}
		if rt.Realtime != nil {
			r.Get("/ws/assistant", rt.Realtime.ServeHTTP)
		}
	})

	r.Handle("/api/*", http.HandlerFunc(NotFound))
	if rt.SPA != nil {
		r.Handle("/*", rt.SPA)
	}
	return r
}

// VisitorKey rate-limits by anonymous visitor.
func VisitorKey(r *http.Request) string {
	return identity.VisitorIDFromContext(r.Context())
}

// IPKey rate-limits by client address.
func IPKey(r *http.Request) string {
	return identity.IPFromRequest(r)
}
