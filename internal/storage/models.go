package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Intent is a named category of user request. Tag is the join key used
// by patterns, responses and embeddings.
type Intent struct {
	Tag         string
	Description string
	CreatedAt   time.Time
}

// Pattern is one example utterance belonging to an intent.
type Pattern struct {
	ID        string
	IntentTag string
	Text      string
	CreatedAt time.Time
}

// Response is one canned answer for an intent. The chat service picks
// one at random when the intent matches.
type Response struct {
	ID        string
	IntentTag string
	Text      string
	CreatedAt time.Time
}

// Embedding is a cached semantic vector for a pattern text, tagged
// with the model that produced it.
type Embedding struct {
	ID          string
	IntentTag   string
	PatternText string
	Vector      []float32
	Model       string
	CreatedAt   time.Time
}

// ChatLog records one classify request and its outcome.
type ChatLog struct {
	ID         string
	Query      string
	Response   string
	IntentTag  string
	Matched    bool
	Method     string
	Confidence float64
	CreatedAt  time.Time
}

// Job is a row in the background job queue.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
