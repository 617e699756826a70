package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestTimetableEntryRepositoryListByWeek(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableEntryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "week_start", "day", "period_number", "subject_id", "subject_name", "teacher_id", "teacher_name",
		"batch_id", "batch_name", "facility_id", "facility_name", "is_substituted", "substitute_teacher_id", "substitute_teacher_name"}).
		AddRow("e1", "2024-01-01", "Monday", 1, "math", "Mathematics", "t1", "Ana", "b1", "X-A", nil, nil, false, nil, nil).
		AddRow("e2", "2024-01-01", "Monday", 2, "math", "Mathematics", "t1", "Ana", "b2", "X-B", "lab-1", "Lab", true, "t2", "Budi")
	mock.ExpectQuery("SELECT id, week_start, day, period_number .* FROM timetable_entries WHERE week_start = \\$1").
		WithArgs("2024-01-01").
		WillReturnRows(rows)

	entries, err := repo.ListByWeek(context.Background(), "2024-01-01")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].FacilityID)
	require.NotNil(t, entries[1].SubstituteTeacherID)
	assert.Equal(t, "t2", *entries[1].SubstituteTeacherID)
	assert.True(t, entries[1].IsSubstituted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryApplyChangesInTx(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE week_start = $1 AND id = ANY($2)")).
		WithArgs("2024-01-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WithArgs("e2", "2024-01-01", "Tuesday", 3, "math", "Mathematics", "t1", "Ana", "b1", "X-A", nil, nil, false, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.ApplyChanges(context.Background(), tx, []scheduling.Change{{
		Week:    "2024-01-01",
		Removed: []models.TimetableEntry{{ID: "e1"}},
		Added: []models.TimetableEntry{{
			ID: "e2", Day: "Tuesday", PeriodNumber: 3, SubjectID: "math", SubjectName: "Mathematics",
			TeacherID: "t1", TeacherName: "Ana", BatchID: "b1", BatchName: "X-A",
		}},
	}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryApplyChangesRefusesIDFromOtherWeek(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableEntryRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO timetable_entries.*WHERE timetable_entries\.week_start = EXCLUDED\.week_start`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyChanges(context.Background(), nil, []scheduling.Change{{
		Week: "2024-01-08",
		Added: []models.TimetableEntry{{
			ID: "e1", Day: "Monday", PeriodNumber: 1, SubjectID: "math", TeacherID: "t1", BatchID: "b1",
		}},
	}})
	assert.ErrorIs(t, err, ErrEntryInOtherWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryListOutsideStructure(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableEntryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "week_start", "day", "period_number", "subject_id", "subject_name", "teacher_id", "teacher_name",
		"batch_id", "batch_name", "facility_id", "facility_name", "is_substituted", "substitute_teacher_id", "substitute_teacher_name"}).
		AddRow("e9", "2024-02-05", "Friday", 7, "math", "Mathematics", "t1", "Ana", "b1", "X-A", nil, nil, false, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE day <> ALL($1) OR period_number < 1 OR period_number > $2")).
		WithArgs(sqlmock.AnyArg(), 6).
		WillReturnRows(rows)

	entries, err := repo.ListOutsideStructure(context.Background(), []string{"Monday", "Tuesday"}, 6)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e9", entries[0].ID)
	assert.Equal(t, 7, entries[0].PeriodNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryApplyChangesSkipsEmptySets(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTimetableEntryRepository(db)

	require.NoError(t, repo.ApplyChanges(context.Background(), nil, []scheduling.Change{{Week: "2024-01-01"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
