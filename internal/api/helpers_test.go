package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/identity"
	"github.com/go-chi/chi/v5"
)

const testVisitor = "anon_0123456789abcdef"

// withVisitor stands in for the identity middleware.
func withVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithVisitor(r.Context(), testVisitor, r.Header.Get(identity.SessionHeaderName))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type registrar interface {
	RegisterRoutes(r chi.Router)
}

func mount(h registrar) http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(MethodNotAllowed)
	r.Use(withVisitor)
	h.RegisterRoutes(r)
	return r
}

func serve(t *testing.T, h http.Handler, method, path string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &buf
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return got
}

type memUsage struct {
	mu     sync.Mutex
	states map[string]*domain.UsageState
}

func newMemUsage() *memUsage {
	return &memUsage{states: make(map[string]*domain.UsageState)}
}

func (m *memUsage) state(visitorID string, feature domain.Feature) *domain.UsageState {
	key := visitorID + "/" + string(feature)
	if s, ok := m.states[key]; ok {
		return s
	}
	s := &domain.UsageState{VisitorID: visitorID, Feature: feature}
	m.states[key] = s
	return s
}

func (m *memUsage) GetUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *m.state(visitorID, feature)
	return &s, nil
}

func (m *memUsage) IncrementUsage(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(visitorID, feature)
	s.QuestionCount++
	out := *s
	return &out, nil
}

func (m *memUsage) SetPremium(_ context.Context, visitorID string, feature domain.Feature) (*domain.UsageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state(visitorID, feature)
	s.Premium = true
	out := *s
	return &out, nil
}
