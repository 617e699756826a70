package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherLoadRepositoryList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTeacherLoadRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "teacher_name", "subjects", "working_days", "periods_per_week", "allowed_batches", "avoid_first_period", "avoid_last_period"}).
		AddRow("t1", "Ana", "{math}", "{Monday,Tuesday}", 10, `[{"batchId":"b1","batchName":"X-A","subjectId":"math","subjectName":"Mathematics"}]`, true, false).
		AddRow("t2", "Budi", "{}", "{}", 4, nil, false, false)
	mock.ExpectQuery("SELECT teacher_id, teacher_name, subjects, working_days .* FROM teacher_loads ORDER BY roster_position").
		WillReturnRows(rows)

	loads, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 2)
	assert.Equal(t, []string{"Monday", "Tuesday"}, loads[0].WorkingDays)
	require.Len(t, loads[0].AllowedBatches, 1)
	assert.Equal(t, "Mathematics", loads[0].AllowedBatches[0].SubjectName)
	assert.True(t, loads[0].AvoidFirstPeriod)
	assert.Empty(t, loads[1].AllowedBatches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherLoadRepositoryListRejectsBadMapping(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewTeacherLoadRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "teacher_name", "subjects", "working_days", "periods_per_week", "allowed_batches", "avoid_first_period", "avoid_last_period"}).
		AddRow("t1", "Ana", "{}", "{}", 10, `{"broken"`, false, false)
	mock.ExpectQuery("FROM teacher_loads").WillReturnRows(rows)

	_, err := repo.List(context.Background())
	assert.Error(t, err)
}
