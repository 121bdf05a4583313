// Package store provides SQLite-based persistence for gpush: the staged
// files between invocations, the cached repository index, a small
// key-value table used for persisted credentials and the lease that lets
// one process at a time change the staged files.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samzong/gpush/internal/repoindex"
	"github.com/samzong/gpush/internal/staging"
	_ "modernc.org/sqlite"
)

// Store represents the SQLite database store
type Store struct {
	db *sql.DB
}

// New creates a new store connection
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize creates the database schema
func (s *Store) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS staged_files (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		content BLOB,
		status TEXT NOT NULL,
		commit_type TEXT NOT NULL,
		commit_message TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS index_entries (
		repo TEXT NOT NULL,
		branch TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (repo, branch, name)
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS locks (
		name TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetValue gets a value from the key-value store. ok is false when the key
// is absent.
func (s *Store) GetValue(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// WriteValues sets and deletes keys in one transaction; either every change
// lands or none does.
func (s *Store) WriteValues(set map[string]string, remove []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range remove {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	for key, value := range set {
		if _, err := tx.Exec(
			"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
			key, value, value,
		); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// LoadStaged returns the saved staged files in staging order.
func (s *Store) LoadStaged() ([]staging.File, error) {
	rows, err := s.db.Query(`SELECT id, name, path, content, status, commit_type, commit_message, last_error
		FROM staged_files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query staged files: %w", err)
	}
	defer rows.Close()

	var files []staging.File
	for rows.Next() {
		var f staging.File
		var status string
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.Content, &status, &f.CommitType, &f.CommitMessage, &f.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan staged file: %w", err)
		}
		f.Status = staging.Status(status)
		files = append(files, f)
	}
	return files, rows.Err()
}

// SaveStaged writes the given files and deletes the files with the given
// ids. Rows not named are left alone.
func (s *Store) SaveStaged(upsert []staging.File, remove []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range remove {
		if _, err := tx.Exec("DELETE FROM staged_files WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to remove staged file %d: %w", id, err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO staged_files
		(id, name, path, content, status, commit_type, commit_message, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			content = excluded.content,
			status = excluded.status,
			commit_type = excluded.commit_type,
			commit_message = excluded.commit_message,
			last_error = excluded.last_error`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range upsert {
		content := f.Content
		if content == nil {
			content = []byte{}
		}
		if _, err := stmt.Exec(f.ID, f.Name, f.Path, content, string(f.Status), f.CommitType, f.CommitMessage, f.LastError); err != nil {
			return fmt.Errorf("failed to save %s: %w", f.Name, err)
		}
	}

	return tx.Commit()
}

func scannedAtKey(repo, branch string) string {
	return "index:" + repo + "@" + branch + ":scanned_at"
}

// SaveIndex caches idx for repo and branch, replacing any previous scan.
func (s *Store) SaveIndex(repo, branch string, idx *repoindex.Index) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM index_entries WHERE repo = ? AND branch = ?", repo, branch); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO index_entries (repo, branch, name, path) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, p := range idx.Paths() {
		if _, err := stmt.Exec(repo, branch, name, p); err != nil {
			return fmt.Errorf("failed to save index entry %s: %w", name, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		scannedAtKey(repo, branch), now, now,
	); err != nil {
		return fmt.Errorf("failed to record scan time: %w", err)
	}

	return tx.Commit()
}

// LoadIndex returns the cached index for repo and branch and the time it was
// scanned. A repository that was never scanned yields an empty index and a
// zero time.
func (s *Store) LoadIndex(repo, branch string) (*repoindex.Index, time.Time, error) {
	rows, err := s.db.Query("SELECT path FROM index_entries WHERE repo = ? AND branch = ?", repo, branch)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	idx := repoindex.New()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan index entry: %w", err)
		}
		idx.Add(p)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}

	raw, ok, err := s.GetValue(scannedAtKey(repo, branch))
	if err != nil || !ok {
		return idx, time.Time{}, err
	}
	scannedAt, _ := time.Parse(time.RFC3339, raw)
	return idx, scannedAt, nil
}
