package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atp-clean/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRun(source string, status model.RunStatus, started time.Time) *model.Run {
	return &model.Run{
		Source:       source,
		Status:       status,
		Version:      "0.3.0",
		FeaturesIn:   10,
		FeaturesOut:  8,
		RepeatedTags: []string{"phone"},
		Warnings:     1,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
	}
}

func TestSQLiteStore_RecordAndList(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := testRun("output/a.geojson", model.RunStatusProcessed, base)
	require.NoError(t, s.RecordRun(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := testRun("output/b.geojson", model.RunStatusFailed, base.Add(time.Hour))
	second.Error = "schema violation"
	second.RepeatedTags = nil
	require.NoError(t, s.RecordRun(ctx, second))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "schema violation", runs[0].Error)
	assert.Empty(t, runs[0].RepeatedTags)

	got := runs[1]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "output/a.geojson", got.Source)
	assert.Equal(t, "0.3.0", got.Version)
	assert.Equal(t, 10, got.FeaturesIn)
	assert.Equal(t, 8, got.FeaturesOut)
	assert.Equal(t, []string{"phone"}, got.RepeatedTags)
	assert.Equal(t, 1, got.Warnings)
	assert.True(t, base.Equal(got.StartedAt))
	assert.Equal(t, 2*time.Second, got.Duration())
}

func TestSQLiteStore_ListFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, status := range []model.RunStatus{model.RunStatusProcessed, model.RunStatusSkipped, model.RunStatusProcessed} {
		require.NoError(t, s.RecordRun(ctx, testRun("a.geojson", status, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.RecordRun(ctx, testRun("b.geojson", model.RunStatusProcessed, base)))

	tests := []struct {
		name   string
		filter RunFilter
		want   int
	}{
		{name: "all", filter: RunFilter{}, want: 4},
		{name: "by status", filter: RunFilter{Status: model.RunStatusProcessed}, want: 3},
		{name: "by source", filter: RunFilter{Source: "b.geojson"}, want: 1},
		{name: "status and source", filter: RunFilter{Status: model.RunStatusSkipped, Source: "a.geojson"}, want: 1},
		{name: "limit", filter: RunFilter{Limit: 2}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, runs, tt.want)
		})
	}
}

func TestSQLiteStore_KeepsGivenID(t *testing.T) {
	s := newTestSQLite(t)
	run := testRun("a.geojson", model.RunStatusSkipped, time.Now())
	run.ID = "fixed-id"
	require.NoError(t, s.RecordRun(context.Background(), run))
	assert.Equal(t, "fixed-id", run.ID)

	err := s.RecordRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run fixed-id")
}

func TestNewSQLite_EmptyPath(t *testing.T) {
	_, err := NewSQLite("")
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "none", "")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)
	require.NoError(t, s.RecordRun(ctx, &model.Run{}))

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = Open(ctx, "mysql", "")
	require.Error(t, err)
}
