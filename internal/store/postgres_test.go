package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mida-project/mission-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetMission_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM missions WHERE mission_id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	m, err := s.GetMission(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMission(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	record := testMission("m1", 2)
	recordJSON, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record FROM missions WHERE mission_id = \$1`).
		WithArgs("m1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(recordJSON))

	m, err := s.GetMission(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "EUTM Mali", m.CanonicalName)
	assert.Equal(t, 2, m.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadMissions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r1, err := json.Marshal(testMission("m1", 1))
	require.NoError(t, err)
	r2, err := json.Marshal(testMission("m2", 1))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record FROM missions ORDER BY mission_id`).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(r1).AddRow(r2))

	missions, err := s.LoadMissions(context.Background())
	require.NoError(t, err)
	require.Len(t, missions, 2)
	assert.Equal(t, "m1", missions[0].MissionID)
	assert.Equal(t, "m2", missions[1].MissionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	m := testMission("m1", 1)
	q := model.QuarantinedRecord{
		ID:       "q1",
		Name:     "mystery mission",
		SourceID: "camera",
		Reason:   model.QuarantineReasonUnclassified,
	}
	report := testReport("r1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO missions`).
		WithArgs("m1", "EUTM MALI", "EU", "active", 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO quarantine`).
		WithArgs("q1", "mystery mission", "camera", model.QuarantineReasonUnclassified, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("r1", "complete", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.CommitRun(context.Background(), report, []*model.MissionRecord{m}, []model.QuarantinedRecord{q})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitRun_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO missions`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.CommitRun(context.Background(), testReport("r1"), []*model.MissionRecord{testMission("m1", 1)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert mission")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteQuarantine_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM quarantine`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteQuarantine(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quarantine entry not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	reportJSON, err := json.Marshal(testReport("r1"))
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT report FROM runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"report"}).AddRow(reportJSON))

	runs, err := s.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
