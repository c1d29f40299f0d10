package executor

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// SQLiteAuditStore persists audit events in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens (or creates) the database at path.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeInternal, "open audit database", err).WithContext("path", path)
	}
	s, err := NewSQLiteAuditStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteAuditStore uses db and ensures the schema exists.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "db is nil", nil)
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, synerrors.New(synerrors.CodeInternal, "create audit schema", err)
	}
	return &SQLiteAuditStore{db: db}, nil
}

func (s *SQLiteAuditStore) Record(ctx context.Context, ev AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO synai_audit_events (
			run_id, orchestrator, workflow, step, statement, agent, intent,
			status, input, output, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.RunID, ev.Orchestrator, ev.Workflow, ev.Step, ev.Statement, ev.Agent, ev.Intent,
		ev.Status, ev.Input, ev.Output, ev.Error,
		ev.StartedAt.UTC(), ev.FinishedAt.UTC(),
	)
	return err
}

func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT run_id, orchestrator, workflow, step, statement, agent, intent,
			status, input, output, error_text, started_at, finished_at
		FROM synai_audit_events
	`
	var (
		args  []any
		where string
	)
	add := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.RunID != "" {
		add("run_id = ?", filter.RunID)
	}
	if filter.Agent != "" {
		add("agent = ?", filter.Agent)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	query += where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var (
			ev                AuditEvent
			started, finished sql.NullTime
		)
		if err := rows.Scan(
			&ev.RunID, &ev.Orchestrator, &ev.Workflow, &ev.Step, &ev.Statement, &ev.Agent, &ev.Intent,
			&ev.Status, &ev.Input, &ev.Output, &ev.Error, &started, &finished,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			ev.StartedAt = started.Time
		}
		if finished.Valid {
			ev.FinishedAt = finished.Time
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS synai_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			orchestrator TEXT NOT NULL,
			workflow TEXT NOT NULL,
			step INTEGER NOT NULL,
			statement TEXT NOT NULL,
			agent TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			input TEXT NOT NULL DEFAULT '',
			output TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_synai_audit_run ON synai_audit_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_synai_audit_status ON synai_audit_events(status);
	`)
	return err
}

var _ AuditStore = (*SQLiteAuditStore)(nil)
var _ AuditStore = (*MemoryAuditStore)(nil)

// auditTime truncates to microseconds so values survive a SQLite round trip.
func auditTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
