// Package llm wraps the OpenAI-compatible chat completions API (Groq by default).
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/etk18/portfolio/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("completion API key not configured")
	// ErrRateLimited maps an upstream 429 or quota error.
	ErrRateLimited = errors.New("completion API rate limited")
	// ErrEmptyCompletion is returned when the response carries no content.
	ErrEmptyCompletion = errors.New("no response generated")
)

// Message roles understood by the API.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// Options are per-call sampling parameters. A zero Model uses the client default.
type Options struct {
	Model            string
	Temperature      float32
	MaxTokens        int
	PresencePenalty  float32
	FrequencyPenalty float32
}

// Completer is implemented by Client and by test fakes.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Client calls the completion endpoint.
type Client struct {
	api   *openai.Client
	model string
	ready bool
}

// New builds a Client from configuration. A missing API key yields a client
// whose calls fail with ErrNotConfigured.
func New(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: cfg.Model,
		ready: cfg.APIKey != "",
	}
}

// Complete sends messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if !c.ready {
		return "", ErrNotConfigured
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	req := openai.ChatCompletionRequest{
		Model:            model,
		Messages:         make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxTokens,
		PresencePenalty:  opts.PresencePenalty,
		FrequencyPenalty: opts.FrequencyPenalty,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota" {
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
		return fmt.Errorf("completion API error (status %d): %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, reqErr.Err)
		}
		return fmt.Errorf("completion request failed (status %d): %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("completion request failed: %w", err)
}
