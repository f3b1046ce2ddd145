// Package store persists per-run diagnostics to SQLite, giving the
// diagnostics sink a queryable history across invocations.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/hart/vm"
)

// Run is one recorded VM run.
type Run struct {
	ID           string
	Program      string
	StartedAt    time.Time
	Instructions uint64
	Faults       uint64
	Cycles       uint64
	ExitCode     int64
	FinalState   string
}

// RunStore records run history in a SQLite database.
type RunStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the run database at dbPath.
func Open(dbPath string) (*RunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		program TEXT NOT NULL,
		started_at TEXT NOT NULL,
		instructions INTEGER NOT NULL,
		faults INTEGER NOT NULL,
		cycles INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		final_state TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &RunStore{db: db, path: dbPath}, nil
}

// RecordRun inserts one run's diagnostics and returns its generated ID.
func (s *RunStore) RecordRun(program string, startedAt time.Time, report vm.Report, exitCode int64, finalState vm.State) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, program, started_at, instructions, faults, cycles, exit_code, final_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, program, startedAt.UTC().Format(time.RFC3339Nano),
		report.InstructionsExecuted, report.FaultCount, report.Cycles,
		exitCode, finalState.String(),
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return id, nil
}

// Runs returns the most recent runs, newest first.
func (s *RunStore) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, program, started_at, instructions, faults, cycles, exit_code, final_state
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Program, &started, &r.Instructions, &r.Faults, &r.Cycles, &r.ExitCode, &r.FinalState); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parsing run timestamp %q: %w", started, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
