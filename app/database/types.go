package database

import (
	"time"
)

// Attempt is one finished poll of a source.
type Attempt struct {
	ID         string
	SourceID   string
	SourceURL  string
	Manual     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string // updated, unchanged, failed
	StatusCode int
	Articles   int
	Skipped    int
	Filtered   int
	ErrorKind  string
	Error      string
}

type OutcomeCount struct {
	SourceID  string
	Updated   int
	Unchanged int
	Failed    int
}
