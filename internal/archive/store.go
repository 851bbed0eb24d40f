// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists completed search runs and their records in a
// SQLite database with a full-text index over case names and judgment text.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/judgment-engine/internal/sink"
	"github.com/pdiddy/judgment-engine/pkg/types"
)

// Run describes one completed search.
type Run struct {
	ID         string               `json:"id" yaml:"id"`
	Criteria   types.SearchCriteria `json:"criteria" yaml:"criteria"`
	StartedAt  time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time            `json:"finished_at" yaml:"finished_at"`
	Summary    sink.Summary         `json:"summary" yaml:"summary"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	maxResults int

	// fts is false when the SQLite build lacks FTS5; text queries then fall
	// back to substring matching.
	fts bool
}

// Open opens or creates the archive at path and ensures the schema exists.
func Open(path string, maxResults int) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if maxResults <= 0 {
		maxResults = 20
	}
	s := &Store{db: db, maxResults: maxResults}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FullText reports whether the FTS5 index is available.
func (s *Store) FullText() bool {
	return s.fts
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			criteria TEXT NOT NULL,
			started_at TEXT,
			finished_at TEXT,
			total INTEGER,
			direct INTEGER,
			optical INTEGER,
			failed INTEGER,
			unreferenced INTEGER,
			parse_errors INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			case_name TEXT,
			fields TEXT,
			judgment_url TEXT,
			method TEXT,
			text TEXT,
			pages INTEGER,
			parse_error TEXT,
			retrieval_error TEXT,
			UNIQUE(run_id, row_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_method ON records(method)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='records_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE records_fts USING fts5(case_name, text, content=records, content_rowid=rowid)`,
		`CREATE TRIGGER records_ai AFTER INSERT ON records BEGIN
			INSERT INTO records_fts(rowid, case_name, text) VALUES (new.rowid, new.case_name, new.text);
		END`,
		`CREATE TRIGGER records_ad AFTER DELETE ON records BEGIN
			INSERT INTO records_fts(records_fts, rowid, case_name, text) VALUES('delete', old.rowid, old.case_name, old.text);
		END`,
		`CREATE TRIGGER records_au AFTER UPDATE ON records BEGIN
			INSERT INTO records_fts(records_fts, rowid, case_name, text) VALUES('delete', old.rowid, old.case_name, old.text);
			INSERT INTO records_fts(rowid, case_name, text) VALUES (new.rowid, new.case_name, new.text);
		END`,
	}
	if _, err := s.db.Exec(ftsStatements[0]); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			return nil
		}
		return fmt.Errorf("creating FTS infrastructure: %w", err)
	}
	for _, stmt := range ftsStatements[1:] {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// SaveRun stores run and its records in one transaction. Saving a run ID
// that already exists replaces its records.
func (s *Store) SaveRun(ctx context.Context, run Run, records []types.ResultRecord) error {
	if run.ID == "" {
		return fmt.Errorf("saving run: empty run id")
	}
	criteriaJSON, err := json.Marshal(run.Criteria)
	if err != nil {
		return fmt.Errorf("marshaling criteria: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("deleting old records: %w", err)
	}

	sum := run.Summary
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, criteria, started_at, finished_at, total, direct, optical, failed, unreferenced, parse_errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			criteria=excluded.criteria, started_at=excluded.started_at, finished_at=excluded.finished_at,
			total=excluded.total, direct=excluded.direct, optical=excluded.optical, failed=excluded.failed,
			unreferenced=excluded.unreferenced, parse_errors=excluded.parse_errors`,
		run.ID, string(criteriaJSON), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		sum.Total, sum.Direct, sum.Optical, sum.Failed, sum.Unreferenced, sum.ParseErrors,
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, row_index, case_name, fields, judgment_url, method, text, pages, parse_error, retrieval_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		fieldsJSON, err := json.Marshal(r.Fields)
		if err != nil {
			return fmt.Errorf("encoding fields of record %d: %w", r.Index, err)
		}
		var url sql.NullString
		if r.DocumentRef != nil {
			url = sql.NullString{String: *r.DocumentRef, Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, r.Index, r.CaseName, string(fieldsJSON), url,
			string(r.Method), r.Text, r.Pages, r.ParseError, r.RetrievalError,
		)
		if err != nil {
			return fmt.Errorf("inserting record %d: %w", r.Index, err)
		}
	}

	return tx.Commit()
}

// Runs lists archived runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, criteria, started_at, finished_at, total, direct, optical, failed, unreferenced, parse_errors
		 FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			criteria          string
			started, finished sql.NullString
		)
		sum := &run.Summary
		if err := rows.Scan(&run.ID, &criteria, &started, &finished,
			&sum.Total, &sum.Direct, &sum.Optical, &sum.Failed, &sum.Unreferenced, &sum.ParseErrors,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		json.Unmarshal([]byte(criteria), &run.Criteria)
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
