package ats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/etk18/portfolio/internal/domain"
	"github.com/etk18/portfolio/internal/llm"
)

// ErrParseReport is returned when the model reply is not a valid report.
var ErrParseReport = errors.New("failed to parse analysis results")

const analyzerSystemPrompt = "You are an expert ATS analyzer. Always respond with valid JSON only."

const analyzerPrompt = `You are an expert ATS (Applicant Tracking System) analyzer and career advisor.

Analyze this resume and provide:

1. **ATS_SCORE**: A number from 1-100 representing ATS compatibility
   - Consider: proper formatting, keyword density, section headers, quantifiable achievements, action verbs

2. **JOB_MATCHES**: Top 5 job roles/titles this resume is best suited for with match percentages

3. **STRENGTHS**: 3-4 key strengths identified in the resume

4. **IMPROVEMENTS**: 3-4 specific suggestions to improve ATS score

Respond ONLY in this exact JSON format:
{
    "atsScore": <number 1-100>,
    "jobMatches": [
        {"role": "<job title>", "match": <percentage 1-100>},
        ...
    ],
    "strengths": ["<strength 1>", "<strength 2>", ...],
    "improvements": ["<suggestion 1>", "<suggestion 2>", ...]
}

RESUME:
`

// AnalyzerOptions keep the scoring close to deterministic.
var AnalyzerOptions = llm.Options{
	Temperature: 0.3,
	MaxTokens:   1000,
}

// Analyzer scores resume text with the completion API.
type Analyzer struct {
	llm llm.Completer
}

// NewAnalyzer returns an Analyzer backed by client.
func NewAnalyzer(client llm.Completer) *Analyzer {
	return &Analyzer{llm: client}
}

// Analyze returns the report for resumeText.
func (a *Analyzer) Analyze(ctx context.Context, resumeText string) (*domain.ATSReport, error) {
	reply, err := a.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: analyzerSystemPrompt},
		{Role: llm.RoleUser, Content: analyzerPrompt + resumeText},
	}, AnalyzerOptions)
	if err != nil {
		return nil, fmt.Errorf("analyze resume: %w", err)
	}
	return ParseReport(reply)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseReport decodes a model reply, accepting a fenced code block.
// Scores are rounded and clamped to 0..100.
func ParseReport(reply string) (*domain.ATSReport, error) {
	body := reply
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		body = m[1]
	}
	var raw struct {
		ATSScore   float64 `json:"atsScore"`
		JobMatches []struct {
			Role  string  `json:"role"`
			Match float64 `json:"match"`
		} `json:"jobMatches"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseReport, err)
	}

	report := &domain.ATSReport{
		ATSScore:     clampPercent(raw.ATSScore),
		JobMatches:   make([]domain.JobMatch, 0, len(raw.JobMatches)),
		Strengths:    nonNil(raw.Strengths),
		Improvements: nonNil(raw.Improvements),
	}
	for _, m := range raw.JobMatches {
		report.JobMatches = append(report.JobMatches, domain.JobMatch{Role: m.Role, Match: clampPercent(m.Match)})
	}
	return report, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clampPercent(f float64) int {
	return min(max(int(math.Round(f)), 0), 100)
}
