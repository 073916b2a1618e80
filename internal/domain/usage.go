package domain

import "time"

// Feature names a gated capability with its own usage counter.
type Feature string

const (
	FeatureAssistant Feature = "assistant"
	FeatureATS       Feature = "ats"
)

// UsageState is the persisted usage counter and premium flag of one visitor
// for one feature. QuestionCount never decreases and Premium is never cleared
// by application flow.
type UsageState struct {
	VisitorID     string    `json:"visitor_id"`
	Feature       Feature   `json:"feature"`
	QuestionCount int       `json:"question_count"`
	Premium       bool      `json:"premium"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// JobMatch is a suggested role and its match percentage.
type JobMatch struct {
	Role  string `json:"role"`
	Match int    `json:"match"`
}

// ATSReport is the structured result of a resume analysis.
type ATSReport struct {
	ATSScore     int        `json:"atsScore"`
	JobMatches   []JobMatch `json:"jobMatches"`
	Strengths    []string   `json:"strengths"`
	Improvements []string   `json:"improvements"`
}
