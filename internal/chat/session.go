// Package chat implements the gated assistant chat session: an ordered turn
// log guarded by a usage gate, a premium unlock and a cooldown between sends.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/gate"
)

const (
	// Greeting seeds every new or reset session.
	Greeting = "Hey! 👋 I'm Eesh's AI assistant. Ask me anything about his skills, projects, experience, or how to get in touch!"

	// FailureReply is appended when the completion call fails.
	FailureReply = "I'm having trouble connecting right now. Please try again! 🙏"

	// InvalidPasskeyMessage is shown for a rejected unlock attempt.
	InvalidPasskeyMessage = "Invalid passkey. Please try again or request access."
)

// ErrEmptyMessage is returned by Submit for blank input.
var ErrEmptyMessage = errors.New("message is required")

// Status describes what Submit did.
type Status string

const (
	StatusAnswered    Status = "answered"
	StatusFailed      Status = "failed"
	StatusBusy        Status = "busy"
	StatusCoolingDown Status = "cooling_down"
	StatusPaywall     Status = "paywall"
)

// Request is what a Completer receives for one user turn.
type Request struct {
	VisitorID string
	SessionID string
	// Turns is the visible transcript before the new message.
	Turns []domain.Turn
	// Exchanges holds only the answered user/assistant pairs, oldest first.
	Exchanges []domain.Turn
	Message   string
}

// Completer produces the assistant reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// TurnObserver is notified of every turn appended to a session.
type TurnObserver interface {
	ObserveTurn(visitorID, sessionID string, turn domain.Turn, meta map[string]any)
}

// Config tunes a Session.
type Config struct {
	Cooldown     time.Duration
	Timeout      time.Duration
	MaxExchanges int
	Observer     TurnObserver
	Now          func() time.Time
}

// DefaultConfig returns the stock cooldown, timeout and history size.
func DefaultConfig() Config {
	return Config{
		Cooldown:     5 * time.Second,
		Timeout:      30 * time.Second,
		MaxExchanges: 20,
	}
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	Turns           []domain.Turn `json:"turns"`
	QuestionCount   int           `json:"question_count"`
	Premium         bool          `json:"premium"`
	Remaining       int           `json:"remaining"`
	FreeLimit       int           `json:"free_limit"`
	CooldownSeconds int           `json:"cooldown_seconds"`
	Paywall         bool          `json:"paywall"`
	Busy            bool          `json:"busy"`
}

// Outcome is the result of Submit.
type Outcome struct {
	Status Status       `json:"status"`
	Reply  *domain.Turn `json:"reply,omitempty"`
	State  Snapshot     `json:"state"`
}

// Session is one visitor tab's conversation. It is safe for concurrent use;
// a send while another is outstanding is rejected, not queued.
type Session struct {
	visitorID string
	sessionID string
	gate      *gate.Gate
	completer Completer
	cfg       Config

	mu            sync.Mutex
	turns         []domain.Turn
	exchanges     []domain.Turn
	cooldownUntil time.Time
	paywall       bool
	inFlight      bool
	epoch         uint64
	lastActive    time.Time
}

// NewSession creates a session seeded with the greeting.
func NewSession(visitorID, sessionID string, g *gate.Gate, completer Completer, cfg Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxExchanges <= 0 {
		cfg.MaxExchanges = DefaultConfig().MaxExchanges
	}
	return &Session{
		visitorID:  visitorID,
		sessionID:  sessionID,
		gate:       g,
		completer:  completer,
		cfg:        cfg,
		turns:      []domain.Turn{{Role: domain.RoleAssistant, Content: Greeting}},
		lastActive: cfg.Now(),
	}
}

// Submit sends text as the next user turn.
//
// Preconditions are checked in order: no send in flight, cooldown elapsed,
// usage gate open. A failed precondition changes nothing except raising the
// paywall flag for a closed gate.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}

	s.mu.Lock()
	s.lastActive = s.cfg.Now()
	if s.inFlight {
		s.mu.Unlock()
		return s.outcome(ctx, StatusBusy, nil)
	}
	if s.cooldownRemainingLocked() > 0 {
		s.mu.Unlock()
		return s.outcome(ctx, StatusCoolingDown, nil)
	}
	s.inFlight = true
	epoch := s.epoch
	s.mu.Unlock()

	decision, err := s.gate.Check(ctx, s.visitorID)
	if err != nil {
		s.finish()
		return Outcome{}, fmt.Errorf("check usage gate: %w", err)
	}
	if !decision.Allowed {
		s.mu.Lock()
		s.inFlight = false
		s.paywall = true
		s.mu.Unlock()
		return s.outcome(ctx, StatusPaywall, nil)
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Content: text}
	s.mu.Lock()
	req := Request{
		VisitorID: s.visitorID,
		SessionID: s.sessionID,
		Turns:     cloneTurns(s.turns),
		Exchanges: cloneTurns(s.exchanges),
		Message:   text,
	}
	s.turns = append(s.turns, userTurn)
	s.mu.Unlock()
	s.observe(userTurn, nil)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	started := s.cfg.Now()
	reply, callErr := s.completer.Complete(callCtx, req)
	cancel()
	reply = strings.TrimSpace(reply)

	answered := callErr == nil && reply != ""
	replyTurn := domain.Turn{Role: domain.RoleAssistant, Content: reply}
	if !answered {
		if callErr == nil {
			callErr = errors.New("empty completion")
		}
		slog.Warn("Assistant completion failed",
			"visitor_id", s.visitorID,
			"session_id", s.sessionID,
			"error", callErr)
		replyTurn.Content = FailureReply
	}

	s.mu.Lock()
	s.inFlight = false
	stale := s.epoch != epoch
	if !stale {
		s.turns = append(s.turns, replyTurn)
		if answered {
			s.exchanges = append(s.exchanges, userTurn, replyTurn)
			if extra := len(s.exchanges) - s.cfg.MaxExchanges; extra > 0 {
				s.exchanges = append([]domain.Turn(nil), s.exchanges[extra:]...)
			}
		}
	}
	if answered {
		s.cooldownUntil = s.cfg.Now().Add(s.cfg.Cooldown)
	}
	s.mu.Unlock()

	meta := map[string]any{
		"latency_ms": s.cfg.Now().Sub(started).Milliseconds(),
		"answered":   answered,
		"stale":      stale,
	}
	if !answered {
		meta["error"] = callErr.Error()
	}
	s.observe(replyTurn, meta)

	if answered {
		// Quota is spent even if a reset discarded the reply.
		if _, err := s.gate.Consume(ctx, s.visitorID); err != nil {
			slog.Error("Failed to record assistant usage", "visitor_id", s.visitorID, "error", err)
		}
	}

	status := StatusAnswered
	if !answered {
		status = StatusFailed
	}
	var appended *domain.Turn
	if !stale {
		appended = &replyTurn
	}
	return s.outcome(ctx, status, appended)
}

// Unlock validates attempt and on success lifts the paywall for good.
func (s *Session) Unlock(ctx context.Context, attempt string) (Snapshot, error) {
	if _, err := s.gate.Unlock(ctx, s.visitorID, attempt); err != nil {
		if errors.Is(err, gate.ErrInvalidPasskey) {
			snap, snapErr := s.State(ctx)
			if snapErr != nil {
				return Snapshot{}, snapErr
			}
			return snap, err
		}
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.paywall = false
	s.lastActive = s.cfg.Now()
	s.mu.Unlock()
	return s.State(ctx)
}

// Reset restores the greeting-only transcript and clears the cooldown.
// Usage and premium state are untouched.
func (s *Session) Reset(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	s.turns = []domain.Turn{{Role: domain.RoleAssistant, Content: Greeting}}
	s.exchanges = nil
	s.cooldownUntil = time.Time{}
	s.paywall = false
	s.epoch++
	s.lastActive = s.cfg.Now()
	s.mu.Unlock()
	return s.State(ctx)
}

// State returns a snapshot including the persisted usage.
func (s *Session) State(ctx context.Context) (Snapshot, error) {
	usage, err := s.gate.State(ctx, s.visitorID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load usage: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Turns:           cloneTurns(s.turns),
		QuestionCount:   usage.QuestionCount,
		Premium:         usage.Premium,
		Remaining:       s.gate.Remaining(usage),
		FreeLimit:       s.gate.Limit(),
		CooldownSeconds: s.cooldownRemainingLocked(),
		Paywall:         s.paywall && !usage.Premium,
		Busy:            s.inFlight,
	}, nil
}

// CooldownSeconds returns whole seconds until the next send is allowed.
func (s *Session) CooldownSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldownRemainingLocked()
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// VisitorID returns the owning visitor.
func (s *Session) VisitorID() string { return s.visitorID }

// SessionID returns the tab session ID.
func (s *Session) SessionID() string { return s.sessionID }

func (s *Session) cooldownRemainingLocked() int {
	left := s.cooldownUntil.Sub(s.cfg.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func (s *Session) finish() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) outcome(ctx context.Context, status Status, reply *domain.Turn) (Outcome, error) {
	snap, err := s.State(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: status, Reply: reply, State: snap}, nil
}

func (s *Session) observe(turn domain.Turn, meta map[string]any) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTurn(s.visitorID, s.sessionID, turn, meta)
	}
}

func cloneTurns(turns []domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}
