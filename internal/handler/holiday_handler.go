package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

const maxCalendarBytes = 2 << 20

type holidayService interface {
	List(ctx context.Context, query dto.HolidayListQuery) ([]models.Holiday, *models.Pagination, error)
	Create(ctx context.Context, req dto.HolidayRequest) (*models.Holiday, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, req dto.ImportHolidaysRequest) (*dto.ImportHolidaysResponse, error)
	ExamPeriods(ctx context.Context) ([]models.ExamPeriod, error)
	CreateExamPeriod(ctx context.Context, req dto.ExamPeriodRequest) (*models.ExamPeriod, error)
}

// HolidayHandler manages the school calendar.
type HolidayHandler struct {
	service holidayService
}

// NewHolidayHandler constructs the handler.
func NewHolidayHandler(svc holidayService) *HolidayHandler {
	return &HolidayHandler{service: svc}
}

// List godoc
// @Summary List holidays
// @Tags Calendar
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	var query dto.HolidayListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid holiday query"))
		return
	}
	holidays, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, pagination)
}

// Create godoc
// @Summary Create or rename a holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.HolidayRequest true "Holiday"
// @Success 201 {object} response.Envelope
// @Router /holidays [post]
func (h *HolidayHandler) Create(c *gin.Context) {
	var req dto.HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid holiday payload"))
		return
	}
	holiday, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// Delete godoc
// @Summary Delete a holiday
// @Tags Calendar
// @Param id path string true "Holiday ID"
// @Success 204
// @Router /holidays/{id} [delete]
func (h *HolidayHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Import holidays from an iCalendar feed
// @Description Accepts a JSON body with either url or calendar, or a raw text/calendar body.
// @Tags Calendar
// @Accept json
// @Accept text/calendar
// @Produce json
// @Param payload body dto.ImportHolidaysRequest false "Feed URL or inline calendar"
// @Success 200 {object} response.Envelope
// @Router /holidays/import [post]
func (h *HolidayHandler) Import(c *gin.Context) {
	var req dto.ImportHolidaysRequest
	if strings.HasPrefix(c.ContentType(), "text/calendar") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCalendarBytes))
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read calendar body"))
			return
		}
		req.Calendar = string(body)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExamPeriods godoc
// @Summary List exam periods
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exam-periods [get]
func (h *HolidayHandler) ExamPeriods(c *gin.Context) {
	periods, err := h.service.ExamPeriods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// CreateExamPeriod godoc
// @Summary Create an exam period
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.ExamPeriodRequest true "Exam period"
// @Success 201 {object} response.Envelope
// @Router /exam-periods [post]
func (h *HolidayHandler) CreateExamPeriod(c *gin.Context) {
	var req dto.ExamPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam period payload"))
		return
	}
	period, err := h.service.CreateExamPeriod(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}
