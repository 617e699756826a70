package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
)

// BreakRequest adds a break to the period structure. A zero AfterPeriod takes the first free slot.
type BreakRequest struct {
	Name            string `json:"name" validate:"max=64"`
	AfterPeriod     int    `json:"afterPeriod" validate:"omitempty,min=1"`
	DurationMinutes int    `json:"durationMinutes" validate:"omitempty,min=1,max=180"`
}

// PeriodStructureRequest replaces the period structure.
type PeriodStructureRequest struct {
	WorkingDays    []string                  `json:"workingDays" validate:"required,min=1,max=7,dive,required"`
	PeriodsPerDay  int                       `json:"periodsPerDay" validate:"required,min=1"`
	Breaks         []models.Break            `json:"breaks"`
	UseTimeMapping bool                      `json:"useTimeMapping"`
	TimeMapping    map[int]models.PeriodTime `json:"timeMapping"`
	StartClock     string                    `json:"startClock" validate:"omitempty,len=5"`
	PeriodMinutes  int                       `json:"periodMinutes" validate:"omitempty,min=1,max=240"`
}

// ToModel converts the request into a structure.
func (r PeriodStructureRequest) ToModel() models.PeriodStructure {
	return models.PeriodStructure{
		WorkingDays:    r.WorkingDays,
		PeriodsPerDay:  r.PeriodsPerDay,
		Breaks:         r.Breaks,
		UseTimeMapping: r.UseTimeMapping,
		TimeMapping:    r.TimeMapping,
		StartClock:     r.StartClock,
		PeriodMinutes:  r.PeriodMinutes,
	}
}

// TimeMappingResponse lists the clock window of each period.
type TimeMappingResponse struct {
	PeriodsPerDay int                       `json:"periodsPerDay"`
	Generated     bool                      `json:"generated"`
	Periods       map[int]models.PeriodTime `json:"periods"`
}

// AssignEntryRequest proposes a placement on the grid.
type AssignEntryRequest struct {
	Mode         string `json:"mode" validate:"omitempty,oneof=teacher_first batch_first"`
	Day          string `json:"day" validate:"required"`
	PeriodNumber int    `json:"periodNumber" validate:"required,min=1"`
	TeacherID    string `json:"teacherId" validate:"required"`
	BatchID      string `json:"batchId" validate:"required"`
	FacilityID   string `json:"facilityId"`
}

// Candidate converts the request into a scheduling candidate.
func (r AssignEntryRequest) Candidate() scheduling.Candidate {
	mode := scheduling.Mode(r.Mode)
	if mode == "" {
		mode = scheduling.ModeTeacherFirst
	}
	return scheduling.Candidate{
		Mode:         mode,
		Day:          r.Day,
		PeriodNumber: r.PeriodNumber,
		TeacherID:    r.TeacherID,
		BatchID:      r.BatchID,
		FacilityID:   r.FacilityID,
	}
}

// MoveEntryRequest drags an entry onto another slot.
type MoveEntryRequest struct {
	Day          string `json:"day" validate:"required"`
	PeriodNumber int    `json:"periodNumber" validate:"required,min=1"`
}

// SubstituteRequest marks an entry as covered by another teacher.
type SubstituteRequest struct {
	SubstituteTeacherID   string `json:"substituteTeacherId" validate:"required"`
	SubstituteTeacherName string `json:"substituteTeacherName"`
}

// ImportEntryRequest is one externally sourced entry. Imported entries always receive
// fresh ids.
type ImportEntryRequest struct {
	Day          string  `json:"day" validate:"required"`
	PeriodNumber int     `json:"periodNumber" validate:"required,min=1"`
	SubjectID    string  `json:"subjectId" validate:"required"`
	SubjectName  string  `json:"subjectName"`
	TeacherID    string  `json:"teacherId" validate:"required"`
	TeacherName  string  `json:"teacherName"`
	BatchID      string  `json:"batchId" validate:"required"`
	BatchName    string  `json:"batchName"`
	FacilityID   *string `json:"facilityId"`
	FacilityName *string `json:"facilityName"`
}

// ImportEntriesRequest bulk-loads entries into a week as one undoable action.
type ImportEntriesRequest struct {
	Description string               `json:"description" validate:"max=200"`
	Entries     []ImportEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

// ToModels converts the import payload.
func (r ImportEntriesRequest) ToModels() []models.TimetableEntry {
	out := make([]models.TimetableEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, models.TimetableEntry{
			Day:          e.Day,
			PeriodNumber: e.PeriodNumber,
			SubjectID:    e.SubjectID,
			SubjectName:  e.SubjectName,
			TeacherID:    e.TeacherID,
			TeacherName:  e.TeacherName,
			BatchID:      e.BatchID,
			BatchName:    e.BatchName,
			FacilityID:   e.FacilityID,
			FacilityName: e.FacilityName,
		})
	}
	return out
}

// CopyWeekRequest replicates the path week onto target weeks.
type CopyWeekRequest struct {
	TargetWeeks       []string `json:"targetWeeks" validate:"required,min=1,max=52,dive,required"`
	SkipHolidays      bool     `json:"skipHolidays"`
	SkipExamPeriods   bool     `json:"skipExamPeriods"`
	OverwriteExisting bool     `json:"overwriteExisting"`
}

// Options converts the request into copy options.
func (r CopyWeekRequest) Options() scheduling.CopyOptions {
	return scheduling.CopyOptions{
		SkipHolidays:      r.SkipHolidays,
		SkipExamPeriods:   r.SkipExamPeriods,
		OverwriteExisting: r.OverwriteExisting,
	}
}

// ActionSummary describes a committed action without its entry payload.
type ActionSummary struct {
	ID          string                `json:"id"`
	Kind        scheduling.ActionKind `json:"kind"`
	Description string                `json:"description"`
	Weeks       []string              `json:"weeks"`
	Removed     int                   `json:"removed"`
	Added       int                   `json:"added"`
	CommittedAt time.Time             `json:"committedAt"`
}

// NewActionSummary summarises an action.
func NewActionSummary(a scheduling.Action) *ActionSummary {
	summary := &ActionSummary{
		ID:          a.ID,
		Kind:        a.Kind,
		Description: a.Description,
		Weeks:       a.Weeks(),
		CommittedAt: a.CommittedAt,
	}
	for _, c := range a.Changes {
		summary.Removed += len(c.Removed)
		summary.Added += len(c.Added)
	}
	return summary
}

// PlacementResponse is returned by assignment, replacement and move.
type PlacementResponse struct {
	Entry   models.TimetableEntry   `json:"entry"`
	Hints   []scheduling.Hint       `json:"hints"`
	Action  *ActionSummary          `json:"action,omitempty"`
	History scheduling.HistoryState `json:"history"`
}

// ActionResponse is returned by mutations that produce no placement.
type ActionResponse struct {
	Action  *ActionSummary          `json:"action,omitempty"`
	History scheduling.HistoryState `json:"history"`
}

// HistoryStepResponse is returned by undo and redo. Applied is false on an empty stack.
type HistoryStepResponse struct {
	Applied bool                    `json:"applied"`
	Action  *ActionSummary          `json:"action,omitempty"`
	History scheduling.HistoryState `json:"history"`
}

// CopyWeekResponse reports a propagation run.
type CopyWeekResponse struct {
	Weeks   []CopiedWeek              `json:"weeks"`
	Staged  int                       `json:"staged"`
	Skipped []scheduling.SkippedEntry `json:"skipped"`
	Action  *ActionSummary            `json:"action,omitempty"`
	History scheduling.HistoryState   `json:"history"`
}

// CopiedWeek counts the effect of a copy on one target week.
type CopiedWeek struct {
	WeekStart string `json:"weekStart"`
	Staged    int    `json:"staged"`
	Replaced  int    `json:"replaced"`
}

// EligibilityQuery selects a grid cell.
type EligibilityQuery struct {
	Day          string `form:"day" validate:"required"`
	PeriodNumber int    `form:"period" validate:"required,min=1"`
	TeacherID    string `form:"teacher_id"`
	BatchID      string `form:"batch_id"`
}

// TeacherConstraintRequest stores a per-teacher override.
type TeacherConstraintRequest struct {
	MaxPeriodsPerDay      int                    `json:"maxPeriodsPerDay" validate:"required,min=1"`
	MaxConsecutivePeriods int                    `json:"maxConsecutivePeriods" validate:"required,min=1"`
	UnavailableDays       []string               `json:"unavailableDays" validate:"omitempty,dive,required"`
	UnavailablePeriods    []int                  `json:"unavailablePeriods" validate:"omitempty,dive,min=1"`
	TimeWindow            *models.TimeWindow     `json:"timeWindow"`
	PreferenceLevel       models.PreferenceLevel `json:"preferenceLevel" validate:"omitempty,oneof=hard soft"`
}

// ToModel converts the request for the given teacher.
func (r TeacherConstraintRequest) ToModel(teacherID string) models.TeacherConstraint {
	return models.TeacherConstraint{
		TeacherID:             teacherID,
		MaxPeriodsPerDay:      r.MaxPeriodsPerDay,
		MaxConsecutivePeriods: r.MaxConsecutivePeriods,
		UnavailableDays:       r.UnavailableDays,
		UnavailablePeriods:    r.UnavailablePeriods,
		TimeWindow:            r.TimeWindow,
		PreferenceLevel:       r.PreferenceLevel,
	}
}

// TeacherConstraintResponse reports the effective constraint of a teacher.
type TeacherConstraintResponse struct {
	models.TeacherConstraint
	IsDefault bool `json:"isDefault"`
}
