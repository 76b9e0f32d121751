package repository

import (
	"context"
	"errors"

	"github.com/vivi-tora/mfc/internal/model"
)

// DefaultReadLimit is used when Read is called with a non-positive limit.
const DefaultReadLimit = 100

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("log store is closed")

// LogRepository is an append-only store of log entries.
type LogRepository interface {
	// Write appends one entry. The store assigns the timestamp; entries are
	// never rewritten once stored.
	Write(ctx context.Context, entry model.LogEntry) error

	// Read returns up to limit of the most recently written entries,
	// newest first.
	Read(ctx context.Context, limit int) ([]model.LogEntry, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close flushes and releases the backing storage.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultReadLimit
	}
	return limit
}

// newestFirst returns the last limit entries of a file-ordered slice in
// reverse order.
func newestFirst(entries []model.LogEntry, limit int) []model.LogEntry {
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]model.LogEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
