package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type periodStructureService interface {
	Get() (models.PeriodStructure, error)
	TimeMapping() (*dto.TimeMappingResponse, error)
	Update(ctx context.Context, req dto.PeriodStructureRequest) (models.PeriodStructure, error)
	AddBreak(ctx context.Context, req dto.BreakRequest) (models.Break, error)
	RemoveBreak(ctx context.Context, id string) (models.PeriodStructure, error)
}

// PeriodStructureHandler manages working days, periods and breaks.
type PeriodStructureHandler struct {
	service periodStructureService
}

// NewPeriodStructureHandler constructs the handler.
func NewPeriodStructureHandler(svc periodStructureService) *PeriodStructureHandler {
	return &PeriodStructureHandler{service: svc}
}

// Get godoc
// @Summary Get the period structure
// @Tags Structure
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/structure [get]
func (h *PeriodStructureHandler) Get(c *gin.Context) {
	structure, err := h.service.Get()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// Update godoc
// @Summary Replace the period structure
// @Description Refused with 400 when entries in loaded weeks would fall outside the new grid.
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body dto.PeriodStructureRequest true "Structure"
// @Success 200 {object} response.Envelope
// @Router /timetable/structure [put]
func (h *PeriodStructureHandler) Update(c *gin.Context) {
	var req dto.PeriodStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid structure payload"))
		return
	}
	structure, err := h.service.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// AddBreak godoc
// @Summary Add a break between periods
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body dto.BreakRequest true "Break"
// @Success 201 {object} response.Envelope
// @Router /timetable/structure/breaks [post]
func (h *PeriodStructureHandler) AddBreak(c *gin.Context) {
	var req dto.BreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid break payload"))
		return
	}
	added, err := h.service.AddBreak(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, added)
}

// RemoveBreak godoc
// @Summary Remove a break
// @Tags Structure
// @Produce json
// @Param id path string true "Break ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/structure/breaks/{id} [delete]
func (h *PeriodStructureHandler) RemoveBreak(c *gin.Context) {
	structure, err := h.service.RemoveBreak(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, structure, nil)
}

// TimeMapping godoc
// @Summary Clock window of every period
// @Tags Structure
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/structure/time-mapping [get]
func (h *PeriodStructureHandler) TimeMapping(c *gin.Context) {
	mapping, err := h.service.TimeMapping()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mapping, nil)
}
