package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type holidayServiceMock struct {
	query     dto.HolidayListQuery
	imported  dto.ImportHolidaysRequest
	deletedID string
	err       error
}

func (m *holidayServiceMock) List(ctx context.Context, query dto.HolidayListQuery) ([]models.Holiday, *models.Pagination, error) {
	m.query = query
	holidays := []models.Holiday{{ID: "h1", Name: "New Year", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}
	return holidays, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, m.err
}

func (m *holidayServiceMock) Create(ctx context.Context, req dto.HolidayRequest) (*models.Holiday, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Holiday{ID: "h2", Name: req.Name}, nil
}

func (m *holidayServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return m.err
}

func (m *holidayServiceMock) Import(ctx context.Context, req dto.ImportHolidaysRequest) (*dto.ImportHolidaysResponse, error) {
	m.imported = req
	return &dto.ImportHolidaysResponse{Imported: 1}, m.err
}

func (m *holidayServiceMock) ExamPeriods(ctx context.Context) ([]models.ExamPeriod, error) {
	return []models.ExamPeriod{{ID: "exam-1", Name: "Finals"}}, m.err
}

func (m *holidayServiceMock) CreateExamPeriod(ctx context.Context, req dto.ExamPeriodRequest) (*models.ExamPeriod, error) {
	return &models.ExamPeriod{ID: "exam-2", Name: req.Name}, m.err
}

func TestHolidayHandlerList(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)

	c, w := newGinContext(http.MethodGet, "/holidays?from=2024-01-01&page=2", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01-01", svc.query.From)
	assert.Equal(t, 2, svc.query.Page)

	var body struct {
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Pagination.TotalCount)
}

func TestHolidayHandlerCreateAndDelete(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)

	payload, _ := json.Marshal(dto.HolidayRequest{Date: "2024-01-17", Name: "Mid-term Break"})
	c, w := newGinContext(http.MethodPost, "/holidays", payload)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodDelete, "/holidays/h2", nil)
	c.Params = gin.Params{{Key: "id", Value: "h2"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "h2", svc.deletedID)
}

func TestHolidayHandlerImportRawCalendar(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)
	feed := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

	c, w := newGinContext(http.MethodPost, "/holidays/import", nil)
	c.Request, _ = http.NewRequest(http.MethodPost, "/holidays/import", bytes.NewBufferString(feed))
	c.Request.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, feed, svc.imported.Calendar)
	assert.Empty(t, svc.imported.URL)
}

func TestHolidayHandlerImportURL(t *testing.T) {
	svc := &holidayServiceMock{}
	handler := NewHolidayHandler(svc)

	c, w := newGinContext(http.MethodPost, "/holidays/import", []byte(`{"url":"https://calendar.example/holidays.ics"}`))
	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://calendar.example/holidays.ics", svc.imported.URL)
}

func TestHolidayHandlerImportUpstreamFailure(t *testing.T) {
	svc := &holidayServiceMock{err: appErrors.Clone(appErrors.ErrUnavailable, "calendar feed unreachable")}
	handler := NewHolidayHandler(svc)

	c, w := newGinContext(http.MethodPost, "/holidays/import", []byte(`{"url":"https://calendar.example/x.ics"}`))
	handler.Import(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHolidayHandlerExamPeriods(t *testing.T) {
	handler := NewHolidayHandler(&holidayServiceMock{})

	c, w := newGinContext(http.MethodGet, "/exam-periods", nil)
	handler.ExamPeriods(c)
	require.Equal(t, http.StatusOK, w.Code)

	payload, _ := json.Marshal(dto.ExamPeriodRequest{Name: "Finals", StartDate: "2024-06-03", EndDate: "2024-06-07"})
	c, w = newGinContext(http.MethodPost, "/exam-periods", payload)
	handler.CreateExamPeriod(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}
