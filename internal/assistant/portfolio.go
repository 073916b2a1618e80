package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/etk18/portfolio/internal/chat"
	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/llm"
)

const (
	historyLimit       = 20
	reminderEvery      = 5
	adminContextLimit  = 30
	adminContextFetchT = 3 * time.Second
)

// PublicOptions are the sampling parameters of the portfolio assistant.
var PublicOptions = llm.Options{
	Temperature:      0.8,
	MaxTokens:        500,
	PresencePenalty:  0.3,
	FrequencyPenalty: 0.3,
}

// ContextSource supplies the rendered portfolio context.
type ContextSource interface {
	Context() string
}

// ConversationSource lists stored admin conversation rows.
type ConversationSource interface {
	ListConversations(ctx context.Context, limit int) ([]domain.ConversationRow, error)
}

// PortfolioCompleter answers visitor questions about the portfolio.
type PortfolioCompleter struct {
	llm           llm.Completer
	knowledge     ContextSource
	conversations ConversationSource
}

var _ chat.Completer = (*PortfolioCompleter)(nil)

// NewPortfolioCompleter wires the portfolio assistant. conversations may be nil.
func NewPortfolioCompleter(client llm.Completer, knowledge ContextSource, conversations ConversationSource) *PortfolioCompleter {
	return &PortfolioCompleter{llm: client, knowledge: knowledge, conversations: conversations}
}

// Complete implements chat.Completer.
func (p *PortfolioCompleter) Complete(ctx context.Context, req chat.Request) (string, error) {
	messages := p.BuildMessages(ctx, req)
	reply, err := p.llm.Complete(ctx, messages, PublicOptions)
	if err != nil {
		return "", fmt.Errorf("portfolio assistant: %w", err)
	}
	return reply, nil
}

// BuildMessages assembles the prompt: system preamble, full portfolio context
// on the first exchange, recent admin notes, a periodic context reminder, the
// capped history, then the new message.
func (p *PortfolioCompleter) BuildMessages(ctx context.Context, req chat.Request) []llm.Message {
	history := req.Exchanges
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	first := len(history) == 0
	portfolio := p.knowledge.Context()

	var system strings.Builder
	system.WriteString(SystemPrompt)
	if first {
		system.WriteString("\n\nPORTFOLIO CONTEXT:\n")
		system.WriteString(portfolio)
	}
	if notes := p.adminContext(ctx); notes != "" {
		system.WriteString("\n\nRECENT CONVERSATIONS WITH EESH (use this for additional context about what he's currently working on):\n")
		system.WriteString(notes)
	}

	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system.String()})
	if !first && len(history)%reminderEvery == 0 {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "Reminder of portfolio info:\n" + portfolio})
	}
	for _, t := range history {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
	return messages
}

// adminContext renders the latest admin notes, or "" when unavailable.
func (p *PortfolioCompleter) adminContext(ctx context.Context) string {
	if p.conversations == nil {
		return ""
	}
	fetchCtx, cancel := context.WithTimeout(ctx, adminContextFetchT)
	defer cancel()

	rows, err := p.conversations.ListConversations(fetchCtx, adminContextLimit)
	if err != nil {
		slog.Warn("Admin context not available", "error", err)
		return ""
	}
	return FormatAdminContext(rows)
}

// FormatAdminContext renders rows as "Eesh: ..." / "AI: ..." lines.
func FormatAdminContext(rows []domain.ConversationRow) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		speaker := "AI"
		if r.Role == domain.RoleUser {
			speaker = "Eesh"
		}
		lines = append(lines, speaker+": "+r.Content)
	}
	return strings.Join(lines, "\n")
}
