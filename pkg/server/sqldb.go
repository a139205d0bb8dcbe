package server

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLStore manages the SQLite connection backing the scrollback audit log.
type SQLStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// OpenSQLStore opens a SQLite database, setting WAL mode and a busy
// timeout for concurrent readers.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return &SQLStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the database.
func (s *SQLStore) Path() string { return s.path }

// InitScrollbackTables creates the scrollback schema.
func (s *SQLStore) InitScrollbackTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scrollback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			target TEXT NOT NULL,
			source TEXT,
			kind TEXT NOT NULL,
			text TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scrollback_ts ON scrollback(ts);
		CREATE INDEX IF NOT EXISTS idx_scrollback_target ON scrollback(target);
	`)
	return err
}

// InsertScrollback appends one delivered message.
func (s *SQLStore) InsertScrollback(target, source, kind, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"INSERT INTO scrollback (ts, target, source, kind, text) VALUES (?, ?, ?, ?, ?)",
		time.Now().Unix(), target, source, kind, text)
	return err
}

// RecentScrollback returns the newest n lines, oldest first.
func (s *SQLStore) RecentScrollback(n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		"SELECT ts, target, kind, text FROM scrollback ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts int64
		var target, kind, text string
		if err := rows.Scan(&ts, &target, &kind, &text); err != nil {
			return nil, err
		}
		line := fmt.Sprintf("%s %-10s %s %s",
			time.Unix(ts, 0).Format("15:04:05"), kind, target, text)
		out = append([]string{line}, out...)
	}
	return out, rows.Err()
}

// DeleteScrollbackBefore removes entries older than the cutoff; returns the
// number removed.
func (s *SQLStore) DeleteScrollbackBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM scrollback WHERE ts < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
