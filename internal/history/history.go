// Package history persists completed question runs to a local SQLite
// database so they can be reviewed later via the history subcommand.
//
// History is best-effort: callers log and continue when a write fails, so a
// broken history file never fails a run.
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

// Run is one recorded question run.
type Run struct {
	// ID is a UUID assigned when the run is recorded.
	ID string

	// CreatedAt is the completion time of the run.
	CreatedAt time.Time

	// Question is the natural-language question that was asked.
	Question string

	// SemanticLayerID is the resolved semantic layer the question ran against.
	SemanticLayerID string

	// SQL is the generated SQL statement.
	SQL string

	// Explanation is the generated explanation of the SQL.
	Explanation string

	// Executed reports whether the SQL was run against a warehouse.
	Executed bool

	// RowCount is the number of rows returned (0 when not executed).
	RowCount int

	// Truncated reports whether the result hit the row cap.
	Truncated bool

	// Status is "ok" or "error".
	Status string

	// Error holds the failure message for error runs.
	Error string
}

// Store records and lists runs.
type Store interface {
	// Record persists one run. The run's ID and CreatedAt are assigned by the
	// store when empty.
	Record(ctx context.Context, run *Run) error

	// Recent returns up to n runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)

	// Close releases the underlying database.
	Close() error
}

// SQLiteStore is a [Store] backed by a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	question          TEXT NOT NULL,
	semantic_layer_id TEXT NOT NULL,
	sql_text          TEXT NOT NULL,
	explanation       TEXT NOT NULL,
	executed          INTEGER NOT NULL,
	row_count         INTEGER NOT NULL,
	truncated         INTEGER NOT NULL,
	status            TEXT NOT NULL,
	error             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC);
`

// Open opens (and creates, if needed) the SQLite history database at path.
// Parent directories are created as needed.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// modernc's driver is not safe for concurrent writers over multiple
	// connections to the same file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Record implements [Store].
func (s *SQLiteStore) Record(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("history: nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs
			(id, created_at, question, semantic_layer_id, sql_text, explanation,
			 executed, row_count, truncated, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.Format(time.RFC3339Nano),
		run.Question,
		run.SemanticLayerID,
		run.SQL,
		run.Explanation,
		boolToInt(run.Executed),
		run.RowCount,
		boolToInt(run.Truncated),
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent implements [Store].
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, question, semantic_layer_id, sql_text,
			explanation, executed, row_count, truncated, status, error
		 FROM runs ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			created   string
			executed  int
			truncated int
		)
		if err := rows.Scan(&r.ID, &created, &r.Question, &r.SemanticLayerID,
			&r.SQL, &r.Explanation, &executed, &r.RowCount, &truncated,
			&r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("history: parse timestamp: %w", err)
		}
		r.Executed = executed != 0
		r.Truncated = truncated != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return out, nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
