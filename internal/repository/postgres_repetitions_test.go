package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRepetition(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepetitionsRepository(db)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tpl := &domain.RepetitionTemplate{
		GroupID:     "g1",
		Frequency:   domain.FrequencyEveryWeek,
		EventType:   domain.EventTypeIntervention,
		AuxiliaryID: "aux-1",
		StartDate:   start,
		EndDate:     start.Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO repetitions`).
		WithArgs("g1", "t1", "every_week", "intervention", "aux-1", nil, start, start.Add(time.Hour), nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateRepetition(context.Background(), "t1", tpl))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRepetition_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepetitionsRepository(db)

	mock.ExpectQuery(`FROM repetitions`).
		WithArgs("t1", "g1").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetRepetition(context.Background(), "t1", "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRepetitionSeed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepetitionsRepository(db)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE repetitions`).
		WithArgs("t1", "g1", start, start.Add(time.Hour), "aux-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRepetitionSeed(context.Background(), "t1", "g1", start, start.Add(time.Hour), "aux-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRepetition_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepetitionsRepository(db)

	mock.ExpectExec(`DELETE FROM repetitions`).
		WithArgs("t1", "g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.DeleteRepetition(context.Background(), "t1", "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEventHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresEventHistoriesRepository(db)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	h := &domain.EventHistory{
		Action:    domain.HistoryActionSeriesDeletion,
		EventID:   "e1",
		GroupID:   "g1",
		EventType: domain.EventTypeIntervention,
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		ActorID:   "u1",
	}

	mock.ExpectExec(`INSERT INTO event_histories`).
		WithArgs(sqlmock.AnyArg(), "t1", "series_deletion", "e1", "g1", "intervention",
			nil, nil, start, start.Add(time.Hour), "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.CreateEventHistory(context.Background(), "t1", h)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, h.HistoryID)
	require.NoError(t, mock.ExpectationsWereMet())
}
