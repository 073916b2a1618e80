// Package realtime serves the assistant over a WebSocket so the site gets
// outcomes and cooldown ticks pushed instead of polling.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the live connection of each visitor tab.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the connection for a visitor tab, or nil.
func (m *Registry) GetActive(visitorID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds conn for a visitor tab. A previous connection for the same
// tab is closed with "session replaced".
func (m *Registry) Register(visitorID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]*websocket.Conn)
	}
	existing := m.active[visitorID][sessionID]
	m.active[visitorID][sessionID] = conn
	m.mu.Unlock()

	if existing != nil && existing != conn {
		// Close waits for the peer's close frame; do not hold up the new tab.
		go func() { _ = existing.Close(websocket.StatusNormalClosure, "session replaced") }()
	}
	slog.Info("Assistant socket registered", "visitor_id", visitorID, "session_id", sessionID)
}

// Unregister removes conn if it is still the registered one.
func (m *Registry) Unregister(visitorID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[visitorID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, visitorID)
			}
			slog.Info("Assistant socket unregistered", "visitor_id", visitorID, "session_id", sessionID)
		}
	}
}

// Count returns the number of live connections.
func (m *Registry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// CloseVisitor terminates every connection of a visitor.
func (m *Registry) CloseVisitor(visitorID string) {
	m.mu.Lock()
	sessions := m.active[visitorID]
	delete(m.active, visitorID)
	m.mu.Unlock()

	for sid, conn := range sessions {
		_ = conn.Close(websocket.StatusNormalClosure, "session closed")
		slog.Info("Assistant socket closed", "visitor_id", visitorID, "session_id", sid)
	}
}
