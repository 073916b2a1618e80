package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/etk18/portfolio/internal/chat"
	"github.com/etk18/portfolio/internal/gate"
	"github.com/etk18/portfolio/internal/identity"
)

// Frame types.
const (
	FrameSubmit   = "submit"
	FrameUnlock   = "unlock"
	FrameReset    = "reset"
	FramePing     = "ping"
	FramePong     = "pong"
	FrameState    = "state"
	FrameOutcome  = "outcome"
	FrameCooldown = "cooldown"
	FrameError    = "error"
)

// SessionSource hands out the chat session of a visitor tab.
type SessionSource interface {
	Get(visitorID, sessionID string) *chat.Session
}

// LastSeenUpdater records visitor activity.
type LastSeenUpdater interface {
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error
}

// clientFrame is what the browser sends.
type clientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ServerFrame is what the server pushes.
type ServerFrame struct {
	Type    string         `json:"type"`
	State   *chat.Snapshot `json:"state,omitempty"`
	Outcome *chat.Outcome  `json:"outcome,omitempty"`
	Seconds *int           `json:"seconds,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Handler upgrades /ws/assistant requests.
type Handler struct {
	sessions      SessionSource
	registry      *Registry
	visitors      LastSeenUpdater
	allowedOrigin string
	isDev         bool
	tick          time.Duration
}

// NewHandler creates a WebSocket handler. visitors may be nil.
func NewHandler(sessions SessionSource, registry *Registry, visitors LastSeenUpdater, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		registry:      registry,
		visitors:      visitors,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		tick:          time.Second,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if visitorID == "" {
		http.Error(w, "missing visitor identity", http.StatusUnauthorized)
		return
	}
	slog.Info("Assistant socket request", "visitor_id", visitorID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()

	h.registry.Register(visitorID, sessionID, ws)
	defer h.registry.Unregister(visitorID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{
		h:    h,
		ws:   ws,
		sess: h.sessions.Get(visitorID, sessionID),
	}
	c.sendState(ctx)
	c.readLoop(ctx)
	slog.Info("Assistant socket ended", "visitor_id", visitorID, "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// conn is one live socket bound to a chat session.
type conn struct {
	h       *Handler
	ws      *websocket.Conn
	sess    *chat.Session
	ticking atomic.Bool
}

func (c *conn) readLoop(ctx context.Context) {
	visitorID := c.sess.VisitorID()
	for {
		_, message, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "visitor_id", visitorID)
			} else if !errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket read ended", "error", err, "visitor_id", visitorID)
			}
			return
		}

		var msg clientFrame
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("invalid frame")
			continue
		}

		switch msg.Type {
		case FrameSubmit:
			// Submit blocks for the completion; keep reading so pings and
			// a second send (answered busy) are still served.
			go c.submit(ctx, msg.Content)
		case FrameUnlock:
			c.unlock(ctx, msg.Content)
		case FrameReset:
			if _, err := c.sess.Reset(ctx); err != nil {
				slog.Error("Assistant reset failed", "error", err, "visitor_id", visitorID)
				c.sendError("failed to reset")
				continue
			}
			c.sendState(ctx)
		case FramePing:
			c.write(ServerFrame{Type: FramePong})
		default:
			c.sendError("unknown frame type")
		}

		c.touch(visitorID)
	}
}

func (c *conn) submit(ctx context.Context, text string) {
	out, err := c.sess.Submit(ctx, text)
	if errors.Is(err, chat.ErrEmptyMessage) {
		c.sendError("message is required")
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Assistant submit failed", "error", err, "visitor_id", c.sess.VisitorID())
			c.sendError("failed to process message")
		}
		return
	}
	c.write(ServerFrame{Type: FrameOutcome, Outcome: &out})
	if out.State.CooldownSeconds > 0 {
		c.startCooldown(ctx)
	}
}

func (c *conn) unlock(ctx context.Context, passkey string) {
	snap, err := c.sess.Unlock(ctx, passkey)
	if errors.Is(err, gate.ErrInvalidPasskey) {
		c.write(ServerFrame{Type: FrameError, Error: chat.InvalidPasskeyMessage, State: &snap})
		return
	}
	if err != nil {
		slog.Error("Assistant unlock failed", "error", err, "visitor_id", c.sess.VisitorID())
		c.sendError("failed to unlock")
		return
	}
	c.write(ServerFrame{Type: FrameState, State: &snap})
}

// startCooldown pushes the remaining cooldown once per tick until it reaches
// zero. At most one ticker runs per connection.
func (c *conn) startCooldown(ctx context.Context) {
	if !c.ticking.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.ticking.Store(false)
		ticker := time.NewTicker(c.h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				secs := c.sess.CooldownSeconds()
				c.write(ServerFrame{Type: FrameCooldown, Seconds: &secs})
				if secs == 0 {
					return
				}
			}
		}
	}()
}

func (c *conn) sendState(ctx context.Context) {
	snap, err := c.sess.State(ctx)
	if err != nil {
		slog.Error("Failed to load assistant state", "error", err, "visitor_id", c.sess.VisitorID())
		c.sendError("failed to load state")
		return
	}
	c.write(ServerFrame{Type: FrameState, State: &snap})
}

func (c *conn) sendError(message string) {
	c.write(ServerFrame{Type: FrameError, Error: message})
}

func (c *conn) write(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Failed to encode frame", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err, "type", frame.Type)
	}
}

// touch updates the visitor's last-seen time asynchronously.
func (c *conn) touch(visitorID string) {
	if c.h.visitors == nil {
		return
	}
	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.h.visitors.UpdateLastSeen(updateCtx, visitorID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "error", err)
		}
	}()
}
