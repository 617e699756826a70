package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestPeriodStructureRepositoryRoundTrip(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPeriodStructureRepository(db)

	mock.ExpectExec("INSERT INTO period_structures").
		WithArgs(DefaultStructureKey, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Save(context.Background(), models.PeriodStructure{WorkingDays: []string{"Monday"}, PeriodsPerDay: 6}))

	doc := `{"workingDays":["Monday","Tuesday"],"periodsPerDay":8,"breaks":[{"id":"b1","name":"Recess","afterPeriod":3,"durationMinutes":15}],"useTimeMapping":true}`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document, updated_at FROM period_structures WHERE id = $1")).
		WithArgs(DefaultStructureKey).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document", "updated_at"}).AddRow(DefaultStructureKey, doc, time.Now()))

	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, got.PeriodsPerDay)
	require.Len(t, got.Breaks, 1)
	assert.Equal(t, 3, got.Breaks[0].AfterPeriod)
	assert.True(t, got.UseTimeMapping)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodStructureRepositoryGetMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPeriodStructureRepository(db)
	mock.ExpectQuery("FROM period_structures").
		WithArgs(DefaultStructureKey).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document", "updated_at"}))

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFacilityRepositoryList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewFacilityRepository(db)

	mock.ExpectQuery("SELECT id, name, type, capacity, duration, allowed_classes FROM facilities").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "capacity", "duration", "allowed_classes"}).
			AddRow("lab-1", "Physics Lab", "lab", 30, 2, "{b1,b2}").
			AddRow("gym", "Gym", "sports", nil, 1, "{}"))

	facilities, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, facilities, 2)
	assert.Equal(t, models.FacilityLab, facilities[0].Type)
	require.NotNil(t, facilities[0].Capacity)
	assert.Equal(t, 30, *facilities[0].Capacity)
	assert.Equal(t, []string{"b1", "b2"}, []string(facilities[0].AllowedClasses))
	assert.Nil(t, facilities[1].Capacity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
