// Package history records lookups and downloads in a SQLite database.
package history

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

// Kind is the operation an entry records.
type Kind string

const (
	KindInfo     Kind = "info"
	KindResolve  Kind = "resolve"
	KindURL      Kind = "url"
	KindDownload Kind = "download"
)

// Entry is one recorded operation.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	VideoID   string    `json:"videoId"`
	Title     string    `json:"title,omitempty"`
	Itag      int       `json:"itag,omitempty"`
	Status    string    `json:"status"` // "ok" or "error"
	Error     string    `json:"error,omitempty"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" keeps
// everything in process.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			video_id TEXT NOT NULL,
			title TEXT,
			itag INTEGER DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT,
			size_bytes INTEGER DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at DESC);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return &Store{db: db}, nil
}

// Record saves e, filling ID, Status and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = "ok"
		if e.Error != "" {
			e.Status = "error"
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO history
		(id, kind, video_id, title, itag, status, error_message, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		string(e.Kind),
		e.VideoID,
		e.Title,
		e.Itag,
		e.Status,
		e.Error,
		e.SizeBytes,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record history: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, video_id, COALESCE(title, ''), itag, status, COALESCE(error_message, ''), size_bytes, created_at
		FROM history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var created int64
		if err := rows.Scan(&e.ID, &kind, &e.VideoID, &e.Title, &e.Itag, &e.Status, &e.Error, &e.SizeBytes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
