package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type teacherConstraintService interface {
	Get(teacherID string) (*dto.TeacherConstraintResponse, error)
	Update(ctx context.Context, teacherID string, req dto.TeacherConstraintRequest) (*dto.TeacherConstraintResponse, error)
	Reset(ctx context.Context, teacherID string) (*dto.TeacherConstraintResponse, error)
}

// TeacherConstraintHandler exposes per-teacher scheduling constraints.
type TeacherConstraintHandler struct {
	service teacherConstraintService
}

// NewTeacherConstraintHandler constructs the handler.
func NewTeacherConstraintHandler(svc teacherConstraintService) *TeacherConstraintHandler {
	return &TeacherConstraintHandler{service: svc}
}

// Get godoc
// @Summary Effective constraint of a teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/constraints [get]
func (h *TeacherConstraintHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Override the constraint of a teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.TeacherConstraintRequest true "Constraint"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/constraints [put]
func (h *TeacherConstraintHandler) Update(c *gin.Context) {
	var req dto.TeacherConstraintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid constraint payload"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Drop the override and fall back to the default constraint
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/constraints [delete]
func (h *TeacherConstraintHandler) Reset(c *gin.Context) {
	result, err := h.service.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
