package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Store persists run reports.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores r, overwriting any report with the same ID.
	Save(r *Report) error

	// Load retrieves a report.
	// Returns ErrNotFound if no report has that ID.
	Load(id string) (*Report, error)

	// List returns metadata for every report, oldest first.
	// Returns an empty slice (not error) if the store is empty.
	List() ([]Info, error)

	// Delete removes a report.
	// Returns nil if the report doesn't exist.
	Delete(id string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides report metadata without the per-key detail.
type Info struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Callers   int
	Executed  int
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a report doesn't exist.
	ErrNotFound = errors.New("report not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("report store closed")

	// ErrInvalidReport indicates a nil report or one without an ID.
	ErrInvalidReport = errors.New("report must be non-nil and have an ID")
)

// Open returns the store named by target:
//   - "" or "memory": a new MemoryStore
//   - a path ending in .db, .sqlite or .sqlite3: a SQLiteStore
//   - a path ending in .bolt or .bbolt: a BoltStore
func Open(target string) (Store, error) {
	if target == "" || target == "memory" {
		return NewMemoryStore(), nil
	}

	switch strings.ToLower(filepath.Ext(target)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(target)
	case ".bolt", ".bbolt":
		return NewBoltStore(target)
	default:
		return nil, fmt.Errorf("unknown report store %q: want memory, *.db or *.bolt", target)
	}
}

func validate(r *Report) error {
	if r == nil || r.ID == "" {
		return ErrInvalidReport
	}
	return nil
}
