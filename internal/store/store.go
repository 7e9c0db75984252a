// Package store keeps the outcome of import runs in an SQLite database, so
// reports of successive conversions can be compared later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/sqlimport/internal/formatter"
	"github.com/tordrt/sqlimport/internal/report"
	"github.com/tordrt/sqlimport/internal/schema"
)

// ErrRunNotFound is returned by LoadRun for an unknown run ID
var ErrRunNotFound = errors.New("run not found")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL,
		schema_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_statements (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		occurrences INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS run_diagnostics (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

const (
	diagnosticUnknownType = "unknown-type"
	diagnosticWarning     = "warning"
)

// Store is a report database
type Store struct {
	db *sql.DB
}

// Run is one import outcome to persist
type Run struct {
	Source string
	Schema *schema.Schema
	Report *report.Report
}

// SavedRun is a persisted run read back from the store
type SavedRun struct {
	ID           string
	Source       string
	CreatedAt    time.Time
	Document     formatter.Document
	Statements   []report.Entry
	UnknownTypes []string
	Warnings     []string
}

// Open opens (creating if needed) the report database at path
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping report database: %w", err)
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate report database: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run under a new ID and returns it
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	doc, err := json.Marshal(formatter.NewDocument(run.Schema))
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}

	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, created_at, schema_json) VALUES (?, ?, ?, ?)`,
		id, run.Source, time.Now().UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, e := range run.Report.Entries() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_statements (run_id, position, text, status, message, occurrences) VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, e.Text, string(e.Status), e.Message, e.Occurrences)
		if err != nil {
			return "", fmt.Errorf("failed to insert statement status: %w", err)
		}
	}

	position := 0
	insertDiagnostic := func(kind, message string) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO run_diagnostics (run_id, position, kind, message) VALUES (?, ?, ?, ?)`,
			id, position, kind, message)
		position++
		return err
	}
	for _, t := range run.Report.UnknownTypes() {
		if err := insertDiagnostic(diagnosticUnknownType, t); err != nil {
			return "", fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}
	for _, w := range run.Report.Warnings() {
		if err := insertDiagnostic(diagnosticWarning, w); err != nil {
			return "", fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// LoadRun reads a stored run back
func (s *Store) LoadRun(ctx context.Context, id string) (*SavedRun, error) {
	run := &SavedRun{ID: id}
	var createdAt, doc string

	err := s.db.QueryRowContext(ctx,
		`SELECT source, created_at, schema_json FROM runs WHERE id = ?`, id).
		Scan(&run.Source, &createdAt, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse run time: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &run.Document); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	if err := s.loadStatements(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to read statements: %w", err)
	}
	if err := s.loadDiagnostics(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}
	return run, nil
}

// RunIDs lists stored runs, newest first
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) loadStatements(ctx context.Context, run *SavedRun) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, status, message, occurrences FROM run_statements WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e report.Entry
		var status string
		if err := rows.Scan(&e.Text, &status, &e.Message, &e.Occurrences); err != nil {
			return err
		}
		e.Status = report.Status(status)
		run.Statements = append(run.Statements, e)
	}
	return rows.Err()
}

func (s *Store) loadDiagnostics(ctx context.Context, run *SavedRun) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, message FROM run_diagnostics WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, message string
		if err := rows.Scan(&kind, &message); err != nil {
			return err
		}
		if kind == diagnosticUnknownType {
			run.UnknownTypes = append(run.UnknownTypes, message)
		} else {
			run.Warnings = append(run.Warnings, message)
		}
	}
	return rows.Err()
}
