package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func newPeriodStructureServiceForTest(t *testing.T) (*PeriodStructureService, *timetableFixture) {
	t.Helper()
	f := newTimetableFixture(t)
	return NewPeriodStructureService(f.svc, f.structure, nil, zap.NewNop()), f
}

func TestPeriodStructureServiceUpdate(t *testing.T) {
	svc, f := newPeriodStructureServiceForTest(t)

	updated, err := svc.Update(context.Background(), dto.PeriodStructureRequest{
		WorkingDays:   []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
		PeriodsPerDay: 7,
		StartClock:    "07:30",
		PeriodMinutes: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.PeriodsPerDay)
	assert.Contains(t, updated.WorkingDays, models.Saturday)
	require.Len(t, f.structure.saved, 1)

	mapping, err := svc.TimeMapping()
	require.NoError(t, err)
	assert.Equal(t, "07:30", mapping.Periods[1].StartTime)
	assert.Equal(t, "08:10", mapping.Periods[1].EndTime)
}

func TestPeriodStructureServiceRefusesOrphans(t *testing.T) {
	svc, f := newPeriodStructureServiceForTest(t)
	f.entries.weeks[serviceWeek] = []models.TimetableEntry{
		{ID: "late", WeekStart: serviceWeek, Day: models.Friday, PeriodNumber: 6, SubjectID: "math", TeacherID: "t1", BatchID: "b1"},
	}
	_, err := f.svc.Entries(context.Background(), serviceWeek, "", "")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), dto.PeriodStructureRequest{
		WorkingDays:   []string{models.Monday, models.Tuesday, models.Wednesday, models.Thursday},
		PeriodsPerDay: 6,
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	orphaned, ok := details["orphaned"].([]models.TimetableEntry)
	require.True(t, ok)
	require.Len(t, orphaned, 1)
	assert.Equal(t, "late", orphaned[0].ID)
	assert.Empty(t, f.structure.saved)

	current, err := svc.Get()
	require.NoError(t, err)
	assert.Contains(t, current.WorkingDays, models.Friday)
}

func TestPeriodStructureServiceChecksStoredWeeks(t *testing.T) {
	svc, f := newPeriodStructureServiceForTest(t)
	f.entries.weeks["2024-02-05"] = []models.TimetableEntry{
		{ID: "stored", WeekStart: "2024-02-05", Day: models.Monday, PeriodNumber: 6, SubjectID: "math", TeacherID: "t1", BatchID: "b1"},
	}

	_, err := svc.Update(context.Background(), dto.PeriodStructureRequest{
		WorkingDays:   []string{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday},
		PeriodsPerDay: 5,
	})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	orphaned, ok := details["orphaned"].([]models.TimetableEntry)
	require.True(t, ok)
	require.Len(t, orphaned, 1)
	assert.Equal(t, "stored", orphaned[0].ID)
	assert.Empty(t, f.structure.saved)

	current, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 6, current.PeriodsPerDay)
}

func TestPeriodStructureServiceBreaks(t *testing.T) {
	svc, f := newPeriodStructureServiceForTest(t)
	ctx := context.Background()

	added, err := svc.AddBreak(ctx, dto.BreakRequest{Name: "Lunch"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(added.ID, "break-after-"))
	assert.NotEqual(t, 3, added.AfterPeriod)

	structure, err := svc.Get()
	require.NoError(t, err)
	assert.Len(t, structure.Breaks, 2)

	structure, err = svc.RemoveBreak(ctx, added.ID)
	require.NoError(t, err)
	assert.Len(t, structure.Breaks, 1)
	assert.Len(t, f.structure.saved, 2)

	_, err = svc.RemoveBreak(ctx, "break-after-9")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPeriodStructureServiceRestoresOnSaveFailure(t *testing.T) {
	svc, f := newPeriodStructureServiceForTest(t)
	f.structure.err = errors.New("read-only replica")

	_, err := svc.Update(context.Background(), dto.PeriodStructureRequest{WorkingDays: []string{models.Monday}, PeriodsPerDay: 4})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	current, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 6, current.PeriodsPerDay)
	assert.Len(t, current.WorkingDays, 5)
}

func TestPeriodStructureServiceValidatesPayload(t *testing.T) {
	svc, _ := newPeriodStructureServiceForTest(t)

	_, err := svc.Update(context.Background(), dto.PeriodStructureRequest{PeriodsPerDay: 6})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddBreak(context.Background(), dto.BreakRequest{Name: "Long", DurationMinutes: 500})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
