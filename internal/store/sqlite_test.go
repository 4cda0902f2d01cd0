package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestMigrateIdempotent(t *testing.T) {
	st := newTestStore(t)
	// newTestStore already migrated once; a second pass is a no-op
	require.NoError(t, st.Migrate(context.Background()))
}

func TestIsLocked(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table locked", errors.New("database table is locked: runs"), true},
		{"constraint", errors.New("UNIQUE constraint failed: runs.id"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocked(tt.err))
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	run.Status = RunStatusComplete
	run.Communities = 77
	run.Listings = 1250
	run.AreasAttempted = 56
	run.AreasFailed = 2
	require.NoError(t, st.CompleteRun(ctx, run))
	assert.NotNil(t, run.FinishedAt)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, 77, got.Communities)
	assert.Equal(t, 1250, got.Listings)
	assert.Equal(t, 56, got.AreasAttempted)
	assert.Equal(t, 2, got.AreasFailed)
	assert.NotNil(t, got.FinishedAt)
}

func TestCompleteRunFailed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)

	run.Status = RunStatusFailed
	run.Error = "listings: systemic scrape failure"
	require.NoError(t, st.CompleteRun(ctx, run))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "systemic")
}

func TestCompleteRunUnknownID(t *testing.T) {
	st := newTestStore(t)
	err := st.CompleteRun(context.Background(), &Run{ID: "missing", Status: RunStatusComplete})
	assert.Error(t, err)
}

func TestRecordAreaUpsert(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	run, err := st.CreateRun(ctx)
	require.NoError(t, err)

	rec := AreaRecord{
		RunID:     run.ID,
		Area:      "60601",
		Pages:     3,
		Found:     42,
		Succeeded: true,
	}
	require.NoError(t, st.RecordArea(ctx, rec))

	// Re-recording the same area replaces the row instead of failing
	rec.Pages = 5
	require.NoError(t, st.RecordArea(ctx, rec))
}

func TestListRunsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := st.CreateRun(ctx)
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// Default limit applies when non-positive
	runs, err = st.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
