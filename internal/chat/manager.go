package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/etk18/portfolio/internal/gate"
)

const sweepInterval = 5 * time.Minute

// Manager owns the live sessions, one per visitor and tab.
type Manager struct {
	gate      *gate.Gate
	completer Completer
	cfg       Config

	mu     sync.RWMutex
	active map[string]map[string]*Session
}

// NewManager creates a session manager.
func NewManager(g *gate.Gate, completer Completer, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		gate:      g,
		completer: completer,
		cfg:       cfg,
		active:    make(map[string]map[string]*Session),
	}
}

// Get returns the session for visitorID/sessionID, creating it on first use.
func (m *Manager) Get(visitorID, sessionID string) *Session {
	m.mu.RLock()
	if sessions, ok := m.active[visitorID]; ok {
		if s, ok := sessions[sessionID]; ok {
			m.mu.RUnlock()
			return s
		}
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[visitorID]; !ok {
		m.active[visitorID] = make(map[string]*Session)
	}
	if s, ok := m.active[visitorID][sessionID]; ok {
		return s
	}
	s := NewSession(visitorID, sessionID, m.gate, m.completer, m.cfg)
	m.active[visitorID][sessionID] = s
	slog.Debug("Chat session created", "visitor_id", visitorID, "session_id", sessionID)
	return s
}

// Peek returns an existing session or nil.
func (m *Manager) Peek(visitorID, sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// Close drops every session of a visitor.
func (m *Manager) Close(visitorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, visitorID)
}

// Sweep removes sessions idle for longer than ttl and returns how many.
func (m *Manager) Sweep(ttl time.Duration) int {
	cutoff := m.cfg.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for vid, sessions := range m.active {
		for sid, s := range sessions {
			if s.LastActive().Before(cutoff) {
				delete(sessions, sid)
				removed++
			}
		}
		if len(sessions) == 0 {
			delete(m.active, vid)
		}
	}
	return removed
}

// StartSweeper periodically drops idle sessions until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := sweepInterval
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Chat session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := m.Sweep(ttl); n > 0 {
					slog.Info("Chat session sweeper removed idle sessions", "count", n)
				}
			case <-ctx.Done():
				slog.Info("Chat session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
