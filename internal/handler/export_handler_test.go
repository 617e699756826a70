package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type weekExporterMock struct {
	week  string
	query dto.WeekExportQuery
	file  *service.ExportFile
	err   error
}

func (m *weekExporterMock) RenderWeek(ctx context.Context, week string, query dto.WeekExportQuery) (*service.ExportFile, error) {
	m.week, m.query = week, query
	return m.file, m.err
}

type exportJobServiceMock struct {
	createReq   dto.ExportJobRequest
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportJobServiceMock) CreateJob(ctx context.Context, req dto.ExportJobRequest) (*dto.ExportJobResponse, error) {
	m.createReq = req
	return m.createResp, m.createErr
}

func (m *exportJobServiceMock) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportJobServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerExportWeek(t *testing.T) {
	exporter := &weekExporterMock{file: &service.ExportFile{
		Filename:    "timetable_2024-01-15_batch.csv",
		ContentType: "text/csv",
		Body:        []byte("Day,Period\n"),
	}}
	handler := NewExportHandler(exporter, nil)

	c, w := newGinContext(http.MethodGet, "/timetable/weeks/2024-01-15/export?format=csv&view=batch", nil)
	c.Params = gin.Params{{Key: "week", Value: "2024-01-15"}}

	handler.ExportWeek(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exporter.query.Format)
	assert.Equal(t, "batch", exporter.query.View)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable_2024-01-15_batch.csv")
	assert.Equal(t, "Day,Period\n", w.Body.String())
}

func TestExportHandlerExportWeekError(t *testing.T) {
	exporter := &weekExporterMock{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")}
	handler := NewExportHandler(exporter, nil)

	c, w := newGinContext(http.MethodGet, "/timetable/weeks/2024-01-15/export?format=docx", nil)
	handler.ExportWeek(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerCreateJob(t *testing.T) {
	jobs := &exportJobServiceMock{createResp: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}}
	handler := NewExportHandler(&weekExporterMock{}, jobs)

	payload, _ := json.Marshal(dto.ExportJobRequest{Week: "2024-01-15", Format: "pdf", View: "teacher"})
	c, w := newGinContext(http.MethodPost, "/exports", payload)

	handler.CreateJob(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "pdf", jobs.createReq.Format)
}

func TestExportHandlerJobsDisabled(t *testing.T) {
	handler := NewExportHandler(&weekExporterMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{"week":"2024-01-15"}`))
	handler.CreateJob(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExportHandlerJobStatus(t *testing.T) {
	url := "/api/v1/exports/download?token=abc"
	jobs := &exportJobServiceMock{statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, ResultURL: &url}}
	handler := NewExportHandler(&weekExporterMock{}, jobs)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.JobStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.ExportStatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
	assert.Equal(t, 100, status.Progress)
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timetable.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	jobs := &exportJobServiceMock{download: &service.ExportDownload{
		File:        file,
		Filename:    "timetable.pdf",
		ContentType: "application/pdf",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := NewExportHandler(&weekExporterMock{}, jobs)

	c, w := newGinContext(http.MethodGet, "/exports/download?token=abc", nil)
	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	handler := NewExportHandler(&weekExporterMock{}, &exportJobServiceMock{})

	c, w := newGinContext(http.MethodGet, "/exports/download", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	handler = NewExportHandler(&weekExporterMock{}, &exportJobServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "token mismatch")})
	c, w = newGinContext(http.MethodGet, "/exports/download?token=forged", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
