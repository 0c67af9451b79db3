// Package store persists instrumentation run history in SQLite. Each CLI
// run records one row plus a row per assertion site visited, so developers
// can answer "what did the last rewrite touch" without re-running it.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"assertlens/internal/logging"
)

// Run is one invocation of the rewriter over a set of files.
type Run struct {
	ID           string
	StartedAt    time.Time
	Workspace    string
	Files        int
	Instrumented int
	Skipped      int
}

// Occurrence is one assertion site visited during a run.
type Occurrence struct {
	RunID        string
	File         string
	Pos          string
	Source       string
	Instrumented bool
	Reason       string
}

// HistoryStore wraps the SQLite database holding run history.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the database at path, creating the directory and schema
// as needed.
func Open(path string) (*HistoryStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &HistoryStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("History store ready at %s", path)
	return s, nil
}

func (s *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		started_at   TIMESTAMP NOT NULL,
		workspace    TEXT NOT NULL,
		files        INTEGER NOT NULL,
		instrumented INTEGER NOT NULL,
		skipped      INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS occurrences (
		run_id       TEXT NOT NULL REFERENCES runs(id),
		file         TEXT NOT NULL,
		pos          TEXT NOT NULL,
		source       TEXT NOT NULL,
		instrumented INTEGER NOT NULL,
		reason       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_occurrences_run ON occurrences(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and its occurrences in one transaction.
func (s *HistoryStore) RecordRun(run Run, occs []Occurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, workspace, files, instrumented, skipped)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Workspace, run.Files, run.Instrumented, run.Skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, o := range occs {
		_, err = tx.Exec(
			`INSERT INTO occurrences (run_id, file, pos, source, instrumented, reason)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, o.File, o.Pos, o.Source, o.Instrumented, o.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert occurrence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.StoreDebug("Recorded run %s (%d occurrence(s))", run.ID, len(occs))
	return nil
}

// History returns the most recent runs, newest first.
func (s *HistoryStore) History(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, workspace, files, instrumented, skipped
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Workspace, &r.Files, &r.Instrumented, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Occurrences returns the sites visited by one run.
func (s *HistoryStore) Occurrences(runID string) ([]Occurrence, error) {
	rows, err := s.db.Query(
		`SELECT run_id, file, pos, source, instrumented, reason
		 FROM occurrences WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrences: %w", err)
	}
	defer rows.Close()

	var occs []Occurrence
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.RunID, &o.File, &o.Pos, &o.Source, &o.Instrumented, &o.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occs = append(occs, o)
	}
	return occs, rows.Err()
}

// Close releases the database handle.
func (s *HistoryStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
