package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type periodStructureServiceMock struct {
	structure models.PeriodStructure
	updated   dto.PeriodStructureRequest
	removedID string
	err       error
}

func (m *periodStructureServiceMock) Get() (models.PeriodStructure, error) {
	return m.structure, m.err
}

func (m *periodStructureServiceMock) TimeMapping() (*dto.TimeMappingResponse, error) {
	return &dto.TimeMappingResponse{
		PeriodsPerDay: 1,
		Generated:     true,
		Periods:       map[int]models.PeriodTime{1: {StartTime: "07:00", EndTime: "07:45"}},
	}, m.err
}

func (m *periodStructureServiceMock) Update(ctx context.Context, req dto.PeriodStructureRequest) (models.PeriodStructure, error) {
	m.updated = req
	return req.ToModel(), m.err
}

func (m *periodStructureServiceMock) AddBreak(ctx context.Context, req dto.BreakRequest) (models.Break, error) {
	return models.Break{ID: "break-after-2", Name: req.Name, AfterPeriod: 2, DurationMinutes: 15}, m.err
}

func (m *periodStructureServiceMock) RemoveBreak(ctx context.Context, id string) (models.PeriodStructure, error) {
	m.removedID = id
	return m.structure, m.err
}

func TestPeriodStructureHandlerUpdate(t *testing.T) {
	svc := &periodStructureServiceMock{}
	handler := NewPeriodStructureHandler(svc)

	payload, _ := json.Marshal(dto.PeriodStructureRequest{WorkingDays: []string{models.Monday}, PeriodsPerDay: 5})
	c, w := newGinContext(http.MethodPut, "/timetable/structure", payload)
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.updated.PeriodsPerDay)
}

func TestPeriodStructureHandlerUpdateOrphans(t *testing.T) {
	orphaned := []models.TimetableEntry{{ID: "late"}}
	svc := &periodStructureServiceMock{err: appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, "structure change would orphan entries"),
		map[string]interface{}{"orphaned": orphaned},
	)}
	handler := NewPeriodStructureHandler(svc)

	payload, _ := json.Marshal(dto.PeriodStructureRequest{WorkingDays: []string{models.Monday}, PeriodsPerDay: 2})
	c, w := newGinContext(http.MethodPut, "/timetable/structure", payload)
	handler.Update(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.NotNil(t, env.Error.Details)
}

func TestPeriodStructureHandlerBreaks(t *testing.T) {
	svc := &periodStructureServiceMock{}
	handler := NewPeriodStructureHandler(svc)

	c, w := newGinContext(http.MethodPost, "/timetable/structure/breaks", []byte(`{"name":"Lunch"}`))
	handler.AddBreak(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodDelete, "/timetable/structure/breaks/break-after-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "break-after-2"}}
	handler.RemoveBreak(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "break-after-2", svc.removedID)
}

func TestPeriodStructureHandlerTimeMapping(t *testing.T) {
	handler := NewPeriodStructureHandler(&periodStructureServiceMock{})

	c, w := newGinContext(http.MethodGet, "/timetable/structure/time-mapping", nil)
	handler.TimeMapping(c)
	require.Equal(t, http.StatusOK, w.Code)
	var mapping dto.TimeMappingResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &mapping))
	assert.Equal(t, "07:45", mapping.Periods[1].EndTime)
}
