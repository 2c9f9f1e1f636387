package models

import "time"

type Document struct {
	ID            string
	Title         string
	SourceType    string
	EffectiveDate string
	Jurisdiction  string
	Text          string
	CreatedAt     time.Time
}

type QueryRecord struct {
	ID         string
	QueryText  string
	Intents    []string
	AnswerText string
	Confidence float64
	Degraded   bool
	LatencyMS  int
	CreatedAt  time.Time
}

type QuerySource struct {
	ID       int
	QueryID  string
	Tool     string
	SourceID string
}

type Feedback struct {
	ID        int
	QueryID   string
	Helpful   bool
	Comment   string
	CreatedAt time.Time
}
