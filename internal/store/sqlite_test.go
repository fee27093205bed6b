package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrove/enrich-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []int{3, 1, 7})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, []int{3, 1, 7}, got.DocumentIDs)
	assert.Nil(t, got.Summary)
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []int{1, 2})
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing))

	summary := &model.BatchSummary{Total: 2, Succeeded: 1, Skipped: 1, Cost: 0.004}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.Total)
	assert.Equal(t, 1, got.Summary.Succeeded)
	assert.InDelta(t, 0.004, got.Summary.Cost, 1e-9)
}

func TestSQLite_UpdateRunStatus_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "ghost", model.RunStatusFailed)
	require.Error(t, err)
}

func TestSQLite_ListRuns_FilterAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, []int{1})
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, []int{2})
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, b.ID, model.RunStatusProcessing))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	queued, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusQueued})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, a.ID, queued[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveAndGetResults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []int{5, 9})
	require.NoError(t, err)

	results := []model.ProcessingResult{
		{
			DocumentID: 9,
			Success:    true,
			Outcome:    model.OutcomeSucceeded,
			Title:      "Invoice 2024-118",
			Tags:       []string{"invoice", "financial"},
			TokensUsed: 1240,
			Cost:       0.002,
		},
		{
			DocumentID: 5,
			Outcome:    model.OutcomeFailed,
			Errors:     []string{"content too short"},
		},
	}
	require.NoError(t, st.SaveResults(ctx, run.ID, results))

	got, err := st.GetResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// ordered by document ID
	assert.Equal(t, 5, got[0].DocumentID)
	assert.Equal(t, 9, got[1].DocumentID)
	assert.Equal(t, []string{"invoice", "financial"}, got[1].Tags)
	assert.Equal(t, []string{"content too short"}, got[0].Errors)
}

func TestSQLite_SaveResults_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	require.NoError(t, st.SaveResults(context.Background(), "any", nil))
}

func TestSQLite_DeadLetters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, []int{11})
	require.NoError(t, err)

	entries := []model.DeadLetterEntry{
		{DocumentID: 11, FinalError: "connection refused", Attempts: 3, FailedAt: time.Now().UTC()},
	}
	require.NoError(t, st.SaveDeadLetters(ctx, run.ID, entries))

	got, err := st.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 11, got[0].DocumentID)
	assert.Equal(t, "connection refused", got[0].FinalError)
	assert.Equal(t, 3, got[0].Attempts)
}
