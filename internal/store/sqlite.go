// Package store persists how often each dictionary candidate is chosen so
// the dictionary composer can rank frequent choices first.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrEmptyKey is returned when a reading or candidate is empty.
var ErrEmptyKey = errors.New("store: empty reading or candidate")

// Usage is the selection history of one candidate.
type Usage struct {
	Candidate string
	Count     int64
	LastUsed  time.Time
}

// Store is the SQLite usage database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and migrates it. The path
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=2000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordSelection counts one choice of candidate for reading.
func (s *Store) RecordSelection(reading, candidate string) error {
	if reading == "" || candidate == "" {
		return ErrEmptyKey
	}
	_, err := s.db.Exec(`
		INSERT INTO candidate_usage (reading, candidate, count, last_used_ns)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(reading, candidate) DO UPDATE SET
			count = count + 1,
			last_used_ns = excluded.last_used_ns`,
		reading, candidate, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record selection: %w", err)
	}
	return nil
}

// Usage returns the recorded choices for reading, most used first.
func (s *Store) Usage(reading string) ([]Usage, error) {
	rows, err := s.db.Query(`
		SELECT candidate, count, last_used_ns FROM candidate_usage
		WHERE reading = ?
		ORDER BY count DESC, last_used_ns DESC`, reading)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var u Usage
		var ns int64
		if err := rows.Scan(&u.Candidate, &u.Count, &ns); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		u.LastUsed = time.Unix(0, ns)
		out = append(out, u)
	}
	return out, rows.Err()
}

// Counts returns the selection count of every candidate of reading.
func (s *Store) Counts(reading string) (map[string]int64, error) {
	usage, err := s.Usage(reading)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(usage))
	for _, u := range usage {
		counts[u.Candidate] = u.Count
	}
	return counts, nil
}

// Forget removes all history of reading.
func (s *Store) Forget(reading string) error {
	if _, err := s.db.Exec("DELETE FROM candidate_usage WHERE reading = ?", reading); err != nil {
		return fmt.Errorf("forget %q: %w", reading, err)
	}
	return nil
}

// Prune deletes history not used since before cutoff and returns the
// number of rows removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM candidate_usage WHERE last_used_ns < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	return res.RowsAffected()
}
