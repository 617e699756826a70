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

func TestExportJobRepositoryCreateAndGet(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewExportJobRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "QUEUED", 0, nil, sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{Params: models.ExportJobParams{Week: "2024-01-01", View: models.ExportViewBatch, Format: "xlsx"}}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)

	rows := sqlmock.NewRows([]string{"id", "params", "status", "progress", "result_url", "created_at", "finished_at", "error_message"}).
		AddRow(job.ID, `{"week":"2024-01-01","view":"batch","format":"xlsx"}`, "QUEUED", 0, nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got.Params.Week)
	assert.Equal(t, models.ExportViewBatch, got.Params.View)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryGetMissingWrapsNoRows(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewExportJobRepository(db)
	mock.ExpectQuery("FROM export_jobs WHERE id").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExportJobRepositoryUpdateBuildsSetClause(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewExportJobRepository(db)

	status := models.ExportStatusFinished
	progress := 100
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, progress = $2 WHERE id = $3")).
		WithArgs(status, progress, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{Status: &status, Progress: &progress}))
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
