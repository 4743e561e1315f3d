// Package journal keeps a SQLite history of context changes.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/satindergrewal/moodscore/internal/track"
)

// ErrClosed is returned when writing to a closed journal.
var ErrClosed = errors.New("journal closed")

const schema = `
CREATE TABLE IF NOT EXISTS context_changes (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	id       TEXT NOT NULL UNIQUE,
	previous TEXT NOT NULL,
	next     TEXT NOT NULL,
	at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_context_changes_at ON context_changes(at);
`

// Entry is one recorded change.
type Entry struct {
	ID       string
	Previous track.Context
	Next     track.Context
	At       time.Time
}

// Journal is a SQLite-backed change history.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. The path can be ":memory:".
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores e. A missing ID or timestamp is filled in.
func (j *Journal) Record(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()

	_, err := j.db.Exec(
		`INSERT INTO context_changes (id, previous, next, at) VALUES (?, ?, ?, ?)`,
		e.ID, string(e.Previous), string(e.Next), e.At,
	)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) {
			return e, ErrClosed
		}
		return e, fmt.Errorf("failed to record change: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT id, previous, next, at FROM context_changes ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var prev, next string
		if err := rows.Scan(&e.ID, &prev, &next, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Previous, e.Next = track.Context(prev), track.Context(next)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of recorded changes.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM context_changes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal rows: %w", err)
	}
	return n, nil
}
