package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/llm"
)

// AdminOptions are the sampling parameters of the admin assistant.
var AdminOptions = llm.Options{
	Temperature: 0.8,
	MaxTokens:   500,
}

// ErrMessageRequired is returned for a blank admin message.
var ErrMessageRequired = errors.New("message is required")

// ConversationSink stores admin conversation rows.
type ConversationSink interface {
	InsertConversation(ctx context.Context, role domain.Role, content string) (*domain.ConversationRow, error)
}

// Admin is the private assistant the site owner talks to. Every answered
// exchange is stored so the public assistant can draw on it.
type Admin struct {
	llm  llm.Completer
	sink ConversationSink
}

// NewAdmin wires the admin assistant. sink may be nil.
func NewAdmin(client llm.Completer, sink ConversationSink) *Admin {
	return &Admin{llm: client, sink: sink}
}

// Chat answers message given the caller's history and stores both turns.
// Storage failures are logged and do not fail the call.
func (a *Admin) Chat(ctx context.Context, message string, history []domain.Turn) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrMessageRequired
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: AdminSystemPrompt})
	for _, t := range history {
		if !t.Role.Valid() || t.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	reply, err := a.llm.Complete(ctx, messages, AdminOptions)
	if err != nil {
		return "", fmt.Errorf("admin assistant: %w", err)
	}

	a.save(ctx, domain.RoleUser, message)
	a.save(ctx, domain.RoleAssistant, reply)
	return reply, nil
}

func (a *Admin) save(ctx context.Context, role domain.Role, content string) {
	if a.sink == nil {
		return
	}
	if _, err := a.sink.InsertConversation(ctx, role, content); err != nil {
		slog.Warn("Failed to save admin conversation", "role", role, "error", err)
	}
}
