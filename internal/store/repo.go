package store

import (
	"context"
	"time"
)

// Entry is one line of the append-only log journal.
type Entry struct {
	ID      int64
	Time    time.Time // UTC
	Level   string
	Logger  string
	Message string
	Fields  string // JSON object or empty
}

// Journal stores log entries for the log-tail command.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// Tail returns the newest n entries, oldest first.
	Tail(ctx context.Context, n int) ([]Entry, error)
	// Prune keeps only the newest keep entries and reports how many were removed.
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}
