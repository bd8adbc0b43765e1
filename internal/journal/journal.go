// Package journal persists daemon events to a sqlite database so the
// CLI can show what happened while nobody was watching.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultLimit       = 50
)

// Entry is a single recorded daemon event.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	Dock      string    `json:"dock,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Entry kinds.
const (
	KindTrigger = "trigger"
	KindApply   = "apply"
	KindStartup = "startup"
	KindRescan  = "rescan"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		profile TEXT NOT NULL DEFAULT '',
		dock TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC)`,
}

// Journal wraps the event database.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at the given path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts an event. The ID and timestamp are assigned here when
// the entry does not carry them.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal: not open")
	}
	if entry.Kind == "" {
		return fmt.Errorf("journal: entry kind is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (id, timestamp, kind, outcome, profile, dock, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Kind,
		entry.Outcome,
		entry.Profile,
		entry.Dock,
		entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("journal: record event: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first. A limit of zero
// or less falls back to the default.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal: not open")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, timestamp, kind, outcome, profile, dock, detail
		 FROM events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.Kind, &entry.Outcome, &entry.Profile, &entry.Dock, &entry.Detail); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("journal: parse timestamp %q: %w", ts, err)
		}
		entry.Timestamp = parsed
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate events: %w", err)
	}

	return entries, nil
}

// Prune removes entries older than the cutoff and returns how many were
// deleted.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	if j == nil || j.db == nil {
		return 0, fmt.Errorf("journal: not open")
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM events WHERE timestamp < ?`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("journal: prune events: %w", err)
	}
	return res.RowsAffected()
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout.Milliseconds())),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("journal: apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: apply schema: %w", err)
		}
	}
	return nil
}
