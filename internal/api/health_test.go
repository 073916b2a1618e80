package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/etk18/portfolio/internal/knowledge"
	"github.com/go-chi/chi/v5"
)

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func healthRouter(h *HealthHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterHealth(r)
	return r
}

func TestHealth(t *testing.T) {
	t.Parallel()
	repo := &fakePinger{}
	tests := []struct {
		name          string
		repo          Pinger
		conversations Pinger
		status        int
		checks        map[string]string
	}{
		{"shared store", repo, repo, http.StatusOK, map[string]string{"database": "ok", "llm": "disabled"}},
		{"postgres up", &fakePinger{}, &fakePinger{}, http.StatusOK, map[string]string{"conversations": "ok"}},
		{"postgres down", &fakePinger{}, &fakePinger{err: errors.New("refused")}, http.StatusOK, map[string]string{"conversations": "unreachable"}},
		{"sqlite down", &fakePinger{err: errors.New("locked")}, nil, http.StatusServiceUnavailable, map[string]string{"database": "unreachable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, healthRouter(NewHealthHandler(tt.repo, tt.conversations, false)), http.MethodGet, "/api/health", nil, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			checks, _ := decodeBody(t, rec)["checks"].(map[string]any)
			for k, want := range tt.checks {
				if checks[k] != want {
					t.Errorf("check %s = %v, want %s", k, checks[k], want)
				}
			}
			if tt.name == "shared store" {
				if _, ok := checks["conversations"]; ok {
					t.Error("shared store should not be checked twice")
				}
			}
		})
	}
}

func TestPortfolioHandler(t *testing.T) {
	t.Parallel()
	base, err := knowledge.NewBase("")
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	rec := serve(t, mount(NewPortfolioHandler(base)), http.MethodGet, "/api/portfolio", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Fatal("expected Cache-Control header")
	}
	if len(decodeBody(t, rec)) == 0 {
		t.Fatal("expected portfolio fields")
	}
}
