// Package store persists refresh-run audit records: one row per run and
// one per scraped area, so a long rate-limited scrape can be inspected
// after the fact.
package store

import (
	"context"
	"time"
)

// RunStatus tracks a refresh run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one pipeline refresh.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Communities    int    `json:"communities"`
	Listings       int    `json:"listings"`
	AreasAttempted int    `json:"areas_attempted"`
	AreasFailed    int    `json:"areas_failed"`
	Error          string `json:"error,omitempty"`
}

// AreaRecord is the persisted outcome of one scraped area.
type AreaRecord struct {
	RunID          string `json:"run_id"`
	Area           string `json:"area"`
	Pages          int    `json:"pages"`
	Found          int    `json:"found"`
	DetailResolved int    `json:"detail_resolved"`
	Dropped        int    `json:"dropped"`
	Succeeded      bool   `json:"succeeded"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

// RunStore persists runs and area outcomes.
type RunStore interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context) (*Run, error)
	RecordArea(ctx context.Context, rec AreaRecord) error
	CompleteRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
