// Package storage persists a Run Record per `automaton run` invocation
// (§Component 11). Grounded on the teacher's internal/storage/db.go: a
// single embedded SQLite file, opened once, WAL mode, one table, best-effort
// writes. Unlike the teacher's job store this is not an in-memory cache —
// there is no equivalent of Jobs/JobsMutex because a Run Record is written
// once at the end of a run and never mutated afterward.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/olereon/automaton/internal/autolog"
)

// RUNRECORD IS ONE ROW OF THE run_history TABLE (§3 RUN RECORD).
type RunRecord struct {
	ID                   string
	ConfigName           string
	StartedAt            time.Time
	EndedAt              time.Time
	ExitStatus           string // "success" OR "failure"
	ErrorKind            string
	ErrorMessage         string
	DownloadsCompleted   int
	ManagerTerminalState string
}

const (
	ExitStatusSuccess = "success"
	ExitStatusFailure = "failure"
)

// STORE WRAPS A SINGLE SQLITE CONNECTION. A NIL *Store IS VALID AND TURNS
// EVERY METHOD INTO A NO-OP — USED WHEN THE DATABASE COULD NOT BE OPENED
// (§COMPONENT 11: "A RUN SUCCEEDS OR FAILS IDENTICALLY WHETHER OR NOT THE
// STORE IS WRITABLE").
type Store struct {
	db *sql.DB
}

// OPEN OPENS (CREATING IF NECESSARY) THE SQLITE FILE AT path AND ENSURES THE
// SCHEMA EXISTS. ON ANY ERROR IT LOGS A WARNING AND RETURNS A NIL *Store SO
// CALLERS CAN KEEP GOING WITHOUT AN ERROR CHECK AT EVERY CALL SITE.
func Open(path string) *Store {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		autolog.Default().Warn("run history store unavailable", map[string]any{"path": path, "error": err.Error()})
		return nil
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		autolog.Default().Warn("run history store: WAL mode unavailable", map[string]any{"error": err.Error()})
	}

	if err := createSchema(db); err != nil {
		autolog.Default().Warn("run history store: schema init failed", map[string]any{"error": err.Error()})
		db.Close()
		return nil
	}

	return &Store{db: db}
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS run_history (
		id TEXT PRIMARY KEY,
		config_name TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		exit_status TEXT NOT NULL,
		error_kind TEXT,
		error_message TEXT,
		downloads_completed INTEGER NOT NULL DEFAULT 0,
		manager_terminal_state TEXT
	)`)
	return err
}

// RECORD INSERTS r, ASSIGNING AN ID IF UNSET. FAILURES ARE LOGGED AT WARN
// AND SWALLOWED — THE RUN'S OWN EXIT STATUS NEVER DEPENDS ON THIS SUCCEEDING.
func (s *Store) Record(r RunRecord) {
	if s == nil || s.db == nil {
		return
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	_, err := s.db.Exec(`
		INSERT INTO run_history (
			id, config_name, started_at, ended_at, exit_status,
			error_kind, error_message, downloads_completed, manager_terminal_state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ConfigName, r.StartedAt, r.EndedAt, r.ExitStatus,
		r.ErrorKind, r.ErrorMessage, r.DownloadsCompleted, r.ManagerTerminalState,
	)
	if err != nil {
		autolog.Default().Warn("run history store: insert failed", map[string]any{"error": err.Error()})
	}
}

// RECENT RETURNS UP TO limit RUN RECORDS, MOST RECENT FIRST. BACKS THE
// `automaton history` SUBCOMMAND.
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, config_name, started_at, ended_at, exit_status,
			error_kind, error_message, downloads_completed, manager_terminal_state
		FROM run_history
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var errKind, errMsg, terminalState sql.NullString
		if err := rows.Scan(&r.ID, &r.ConfigName, &r.StartedAt, &r.EndedAt, &r.ExitStatus,
			&errKind, &errMsg, &r.DownloadsCompleted, &terminalState); err != nil {
			autolog.Default().Warn("run history store: scan failed", map[string]any{"error": err.Error()})
			continue
		}
		r.ErrorKind = errKind.String
		r.ErrorMessage = errMsg.String
		r.ManagerTerminalState = terminalState.String
		out = append(out, r)
	}
	return out, nil
}

// CLOSE CLOSES THE UNDERLYING CONNECTION. SAFE TO CALL ON A NIL *Store.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}
