package models

import "time"

// TestCase is one structured QA test case produced from a requirement.
type TestCase struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Preconditions []string `json:"preconditions,omitempty"`
	Steps         []string `json:"steps"`
	Expected      string   `json:"expected"`
	Priority      string   `json:"priority,omitempty"` // "high", "medium", "low"
}

// GenerationResult is the outcome of one generation. Derived state: it is
// cached in memory but never persisted to the database.
type GenerationResult struct {
	RequestID   string     `json:"request_id"`
	TestCases   []TestCase `json:"test_cases"`
	Model       string     `json:"model"`
	Cached      bool       `json:"cached"`
	GeneratedAt time.Time  `json:"generated_at"`
}
