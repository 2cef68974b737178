package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atp-clean/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

var runColumns = []string{"id", "source", "status", "version", "features_in", "features_out", "repeated_tags", "warnings", "error", "started_at", "finished_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS clean_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := testRun("a.geojson", model.RunStatusProcessed, started)

	mock.ExpectExec(`INSERT INTO clean_runs`).
		WithArgs(pgxmock.AnyArg(), "a.geojson", "processed", "0.3.0", 10, 8, []string{"phone"}, 1, "", started, started.Add(2*time.Second)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordRun_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO clean_runs`).WillReturnError(errors.New("connection lost"))

	err := s.RecordRun(context.Background(), &model.Run{ID: "r1", Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(runColumns).
		AddRow("r2", "b.geojson", "processed", "0.3.0", 5, 5, []string{}, 0, "", started.Add(time.Hour), started.Add(time.Hour)).
		AddRow("r1", "a.geojson", "processed", "0.3.0", 10, 8, []string{"phone"}, 1, "", started, started.Add(time.Second))

	mock.ExpectQuery(`SELECT id, source, status .* FROM clean_runs WHERE 1=1 AND status = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("processed", 100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusProcessed})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, model.RunStatusProcessed, runs[1].Status)
	assert.Equal(t, []string{"phone"}, runs[1].RepeatedTags)
	assert.Equal(t, time.Second, runs[1].Duration())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_SourceAndLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`AND source = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("a.geojson", 5).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{Source: "a.geojson", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`FROM clean_runs`).WillReturnError(errors.New("boom"))

	_, err := s.ListRuns(context.Background(), RunFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
