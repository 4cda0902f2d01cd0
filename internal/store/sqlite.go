package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/chiffordable/chiffordable/internal/resilience"
)

// SQLiteStore implements RunStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'running',
	communities     INTEGER NOT NULL DEFAULT 0,
	listings        INTEGER NOT NULL DEFAULT 0,
	areas_attempted INTEGER NOT NULL DEFAULT 0,
	areas_failed    INTEGER NOT NULL DEFAULT 0,
	error           TEXT,
	started_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at     DATETIME
);

CREATE TABLE IF NOT EXISTS run_areas (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	area            TEXT NOT NULL,
	pages           INTEGER NOT NULL DEFAULT 0,
	found           INTEGER NOT NULL DEFAULT 0,
	detail_resolved INTEGER NOT NULL DEFAULT 0,
	dropped         INTEGER NOT NULL DEFAULT 0,
	succeeded       INTEGER NOT NULL DEFAULT 0,
	failure_reason  TEXT,
	PRIMARY KEY (run_id, area)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_areas_run_id ON run_areas(run_id);
`

// Migrate applies the schema. Retried with a short backoff because another
// process reading the run history can hold the database past busy_timeout.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	cfg := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		ShouldRetry:    isLocked,
	}
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, sqliteMigration)
		return err
	})
	return eris.Wrap(err, "sqlite: migrate")
}

// isLocked reports whether err is a SQLITE_BUSY or SQLITE_LOCKED condition
// that a short backoff can clear.
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) RecordArea(ctx context.Context, rec AreaRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_areas (run_id, area, pages, found, detail_resolved, dropped, succeeded, failure_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, area) DO UPDATE SET
			pages = excluded.pages,
			found = excluded.found,
			detail_resolved = excluded.detail_resolved,
			dropped = excluded.dropped,
			succeeded = excluded.succeeded,
			failure_reason = excluded.failure_reason`,
		rec.RunID, rec.Area, rec.Pages, rec.Found, rec.DetailResolved,
		rec.Dropped, boolToInt(rec.Succeeded), rec.FailureReason,
	)
	return eris.Wrapf(err, "sqlite: record area %s", rec.Area)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, communities = ?, listings = ?,
			areas_attempted = ?, areas_failed = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Communities, run.Listings,
		run.AreasAttempted, run.AreasFailed, run.Error, now, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, communities, listings, areas_attempted, areas_failed,
			COALESCE(error, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &status, &r.Communities, &r.Listings,
			&r.AreasAttempted, &r.AreasFailed, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = RunStatus(status)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
