// Package journal keeps a local, append-only log of every submission attempt
// and its outcome. It exists for manual reconciliation after network outages
// and for the debug shell; it is not a retry queue, since failed submissions
// are never replayed automatically.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Entry struct {
	ID            int64
	FingerprintID int
	EventID       string
	Type          string
	Outcome       string
	Code          int
	SubmittedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	// the journal is written by a single loop
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(`
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fingerprint_id INTEGER NOT NULL,
  event_id TEXT NOT NULL,
  type TEXT NOT NULL,
  outcome TEXT NOT NULL,
  code INTEGER NOT NULL DEFAULT 0,
  submitted_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_submitted_at ON submissions(submitted_at_ms);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO submissions(fingerprint_id, event_id, type, outcome, code, submitted_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, entry.FingerprintID, entry.EventID, entry.Type, entry.Outcome, entry.Code, entry.SubmittedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, fingerprint_id, event_id, type, outcome, code, submitted_at_ms
FROM submissions ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var submittedMs int64
		if err = rows.Scan(&entry.ID, &entry.FingerprintID, &entry.EventID, &entry.Type, &entry.Outcome, &entry.Code, &submittedMs); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		entry.SubmittedAt = time.UnixMilli(submittedMs).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run keeps the store open for the life of the context, closing it on
// shutdown. This lets the store be managed like any other task.
func (s *Store) Run(ctx context.Context) error {
	<-ctx.Done()
	return s.Close()
}
