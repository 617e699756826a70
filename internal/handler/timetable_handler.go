package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	Entries(ctx context.Context, week, teacherID, batchID string) ([]models.TimetableEntry, error)
	EligibleBatches(ctx context.Context, week string, query dto.EligibilityQuery) ([]scheduling.Option, error)
	EligibleTeachers(ctx context.Context, week string, query dto.EligibilityQuery) ([]scheduling.Option, error)
	Assign(ctx context.Context, week string, req dto.AssignEntryRequest) (*dto.PlacementResponse, error)
	Replace(ctx context.Context, week, id string, req dto.AssignEntryRequest) (*dto.PlacementResponse, error)
	Move(ctx context.Context, week, id string, req dto.MoveEntryRequest) (*dto.PlacementResponse, error)
	Remove(ctx context.Context, week, id string) (*dto.ActionResponse, error)
	Substitute(ctx context.Context, week, id string, req dto.SubstituteRequest) (*dto.ActionResponse, error)
	ClearSubstitution(ctx context.Context, week, id string) (*dto.ActionResponse, error)
	Import(ctx context.Context, week string, req dto.ImportEntriesRequest) (*dto.ActionResponse, error)
	CopyWeek(ctx context.Context, week string, req dto.CopyWeekRequest) (*dto.CopyWeekResponse, error)
	Undo(ctx context.Context) (*dto.HistoryStepResponse, error)
	Redo(ctx context.Context) (*dto.HistoryStepResponse, error)
	History() (scheduling.HistoryState, error)
	Conflicts(ctx context.Context, week string) ([]models.Conflict, error)
	LoadSummaries(ctx context.Context, week string) ([]models.TeacherLoadSummary, error)
}

// TimetableHandler exposes the weekly grid endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Entries godoc
// @Summary List entries of a week
// @Tags Timetable
// @Produce json
// @Param week path string true "Any date inside the week (YYYY-MM-DD)"
// @Param teacher_id query string false "Teacher filter"
// @Param batch_id query string false "Batch filter"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries [get]
func (h *TimetableHandler) Entries(c *gin.Context) {
	entries, err := h.service.Entries(c.Request.Context(), c.Param("week"), c.Query("teacher_id"), c.Query("batch_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// EligibleBatches godoc
// @Summary List batches a teacher may take in a cell
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Param day query string true "Day name"
// @Param period query int true "Period number"
// @Param teacher_id query string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/eligible-batches [get]
func (h *TimetableHandler) EligibleBatches(c *gin.Context) {
	query, ok := bindEligibility(c)
	if !ok {
		return
	}
	options, err := h.service.EligibleBatches(c.Request.Context(), c.Param("week"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// EligibleTeachers godoc
// @Summary List teachers that may teach a batch in a cell
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Param day query string true "Day name"
// @Param period query int true "Period number"
// @Param batch_id query string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/eligible-teachers [get]
func (h *TimetableHandler) EligibleTeachers(c *gin.Context) {
	query, ok := bindEligibility(c)
	if !ok {
		return
	}
	options, err := h.service.EligibleTeachers(c.Request.Context(), c.Param("week"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// Assign godoc
// @Summary Place a lesson on the grid
// @Description Subject is resolved from the teacher load. Clashes return 409 with the conflicting entry.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Week"
// @Param payload body dto.AssignEntryRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries [post]
func (h *TimetableHandler) Assign(c *gin.Context) {
	var req dto.AssignEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.Assign(c.Request.Context(), c.Param("week"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Replace godoc
// @Summary Replace an entry with a new placement
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Week"
// @Param id path string true "Entry ID"
// @Param payload body dto.AssignEntryRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries/{id} [put]
func (h *TimetableHandler) Replace(c *gin.Context) {
	var req dto.AssignEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	result, err := h.service.Replace(c.Request.Context(), c.Param("week"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Move godoc
// @Summary Drag an entry onto another slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Week"
// @Param id path string true "Entry ID"
// @Param payload body dto.MoveEntryRequest true "Target slot"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries/{id}/move [post]
func (h *TimetableHandler) Move(c *gin.Context) {
	var req dto.MoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.service.Move(c.Request.Context(), c.Param("week"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Remove godoc
// @Summary Remove an entry
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries/{id} [delete]
func (h *TimetableHandler) Remove(c *gin.Context) {
	result, err := h.service.Remove(c.Request.Context(), c.Param("week"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Substitute godoc
// @Summary Cover an entry with a substitute teacher
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Week"
// @Param id path string true "Entry ID"
// @Param payload body dto.SubstituteRequest true "Substitute"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries/{id}/substitute [post]
func (h *TimetableHandler) Substitute(c *gin.Context) {
	var req dto.SubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitution payload"))
		return
	}
	result, err := h.service.Substitute(c.Request.Context(), c.Param("week"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClearSubstitution godoc
// @Summary Drop the substitute of an entry
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/entries/{id}/substitute [delete]
func (h *TimetableHandler) ClearSubstitution(c *gin.Context) {
	result, err := h.service.ClearSubstitution(c.Request.Context(), c.Param("week"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Import godoc
// @Summary Bulk-load entries into a week
// @Description Entries are stored without validation; clashes show up in the conflict report.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Week"
// @Param payload body dto.ImportEntriesRequest true "Entries"
// @Success 201 {object} response.Envelope
// @Router /timetable/weeks/{week}/import [post]
func (h *TimetableHandler) Import(c *gin.Context) {
	var req dto.ImportEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), c.Param("week"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CopyWeek godoc
// @Summary Copy a week onto target weeks
// @Tags Timetable
// @Accept json
// @Produce json
// @Param week path string true "Source week"
// @Param payload body dto.CopyWeekRequest true "Copy options"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/copy [post]
func (h *TimetableHandler) CopyWeek(c *gin.Context) {
	var req dto.CopyWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid copy payload"))
		return
	}
	result, err := h.service.CopyWeek(c.Request.Context(), c.Param("week"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Conflicts godoc
// @Summary Detect clashes and constraint violations in a week
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.service.Conflicts(c.Request.Context(), c.Param("week"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil, map[string]interface{}{"count": len(conflicts)})
}

// Loads godoc
// @Summary Summarise teacher loads for a week
// @Tags Timetable
// @Produce json
// @Param week path string true "Week"
// @Success 200 {object} response.Envelope
// @Router /timetable/weeks/{week}/loads [get]
func (h *TimetableHandler) Loads(c *gin.Context) {
	summaries, err := h.service.LoadSummaries(c.Request.Context(), c.Param("week"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Undo godoc
// @Summary Undo the last committed action
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/undo [post]
func (h *TimetableHandler) Undo(c *gin.Context) {
	result, err := h.service.Undo(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Redo godoc
// @Summary Redo the last undone action
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/redo [post]
func (h *TimetableHandler) Redo(c *gin.Context) {
	result, err := h.service.Redo(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Report undo/redo availability
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/history [get]
func (h *TimetableHandler) History(c *gin.Context) {
	state, err := h.service.History()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

func bindEligibility(c *gin.Context) (dto.EligibilityQuery, bool) {
	var query dto.EligibilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid eligibility query"))
		return query, false
	}
	return query, true
}
