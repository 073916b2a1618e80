package ats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/gate"
)

// MinTextLength is the fewest extracted characters worth analyzing.
const MinTextLength = 50

var (
	// ErrLimitReached is returned when the free checks are used up.
	ErrLimitReached = errors.New("free check limit reached")
	// ErrInsufficientText is returned when extraction yields too little text.
	ErrInsufficientText = errors.New("not enough text extracted")
)

// Result is a successful check together with the updated usage.
type Result struct {
	Report *domain.ATSReport `json:"report"`
	Usage  Usage             `json:"usage"`
}

// Usage is the visitor-facing view of the check quota.
type Usage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Premium   bool `json:"premium"`
}

// Checker runs gated resume checks.
type Checker struct {
	gate      *gate.Gate
	extractor *Extractor
	analyzer  *Analyzer
}

// NewChecker wires a Checker.
func NewChecker(g *gate.Gate, extractor *Extractor, analyzer *Analyzer) *Checker {
	return &Checker{gate: g, extractor: extractor, analyzer: analyzer}
}

// Check extracts and analyzes one upload. Usage is consumed only after a
// successful analysis.
func (c *Checker) Check(ctx context.Context, visitorID, filename string, data []byte) (*Result, error) {
	decision, err := c.gate.Check(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrLimitReached
	}

	report, err := Analyze(ctx, c.extractor, c.analyzer, filename, data)
	if err != nil {
		return nil, err
	}

	state, err := c.gate.Consume(ctx, visitorID)
	if err != nil {
		// The analysis already succeeded; report it with the stale count.
		slog.Warn("Failed to record ATS usage", "visitor_id", visitorID, "error", err)
		state = decision.State
	}
	return &Result{Report: report, Usage: c.usage(state)}, nil
}

// Usage returns the current quota for visitorID.
func (c *Checker) Usage(ctx context.Context, visitorID string) (Usage, error) {
	state, err := c.gate.State(ctx, visitorID)
	if err != nil {
		return Usage{}, err
	}
	return c.usage(state), nil
}

// Unlock grants unlimited checks when passkey matches.
func (c *Checker) Unlock(ctx context.Context, visitorID, passkey string) (Usage, error) {
	state, err := c.gate.Unlock(ctx, visitorID, passkey)
	if err != nil {
		return Usage{}, err
	}
	return c.usage(state), nil
}

// Analyze extracts and analyzes a document without any gate.
func Analyze(ctx context.Context, extractor *Extractor, analyzer *Analyzer, filename string, data []byte) (*domain.ATSReport, error) {
	text, err := extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return nil, fmt.Errorf("%w: %d characters", ErrInsufficientText, n)
	}
	return analyzer.Analyze(ctx, text)
}

func (c *Checker) usage(state domain.UsageState) Usage {
	return Usage{
		Used:      state.QuestionCount,
		Limit:     c.gate.Limit(),
		Remaining: c.gate.Remaining(state),
		Premium:   state.Premium,
	}
}
