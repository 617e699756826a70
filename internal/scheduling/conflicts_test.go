package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestDetectConflictsOrdering(t *testing.T) {
	entries := []models.TimetableEntry{
		entry("e1", "Tuesday", 1, "t2", "b3"),
		entry("e2", "Monday", 2, "t1", "b1"),
		entry("e3", "Monday", 2, "t1", "b2"),
		entry("e4", "Tuesday", 1, "t2", "b4"),
		entry("e5", "Friday", 5, "t3", "b1"),
		entry("e6", "Friday", 5, "t4", "b1"),
	}
	loads := []models.TeacherLoad{
		{TeacherID: "t2", PeriodsPerWeek: 1},
		{TeacherID: "t1", PeriodsPerWeek: 1},
		{TeacherID: "t3", PeriodsPerWeek: 5},
	}

	conflicts := DetectConflicts(entries, loads)
	require.Len(t, conflicts, 5)

	assert.Equal(t, models.ConflictTeacherClash, conflicts[0].Type)
	assert.Equal(t, "t2", conflicts[0].TeacherID)
	assert.Equal(t, []string{"e1", "e4"}, conflicts[0].EntryIDs)
	assert.Equal(t, models.ConflictTeacherClash, conflicts[1].Type)
	assert.Equal(t, "t1", conflicts[1].TeacherID)

	assert.Equal(t, models.ConflictBatchClash, conflicts[2].Type)
	assert.Equal(t, "b1", conflicts[2].BatchID)
	assert.Equal(t, "Friday", conflicts[2].Day)
	assert.Equal(t, 5, conflicts[2].PeriodNumber)
	assert.True(t, conflicts[2].Navigable)

	assert.Equal(t, models.ConflictOverload, conflicts[3].Type)
	assert.Equal(t, "t2", conflicts[3].TeacherID)
	assert.Equal(t, models.SeverityWarning, conflicts[3].Severity)
	assert.False(t, conflicts[3].Navigable)
	assert.Equal(t, "t1", conflicts[4].TeacherID)
}

func TestDetectConflictsCleanWeek(t *testing.T) {
	entries := []models.TimetableEntry{
		entry("e1", "Monday", 1, "t1", "b1"),
		entry("e2", "Monday", 2, "t1", "b1"),
		entry("e3", "Monday", 1, "t2", "b2"),
	}
	assert.Empty(t, DetectConflicts(entries, []models.TeacherLoad{{TeacherID: "t1", PeriodsPerWeek: 2}}))
}

func TestForcedImportReportsSingleTeacherClash(t *testing.T) {
	session := newTestSession(t, nil)

	_, _, err := session.Assign(testWeek, Candidate{Mode: ModeTeacherFirst, Day: "Monday", PeriodNumber: 2, TeacherID: "t1", BatchID: "b1"})
	require.NoError(t, err)

	_, _, err = session.Assign(testWeek, Candidate{Mode: ModeTeacherFirst, Day: "Monday", PeriodNumber: 2, TeacherID: "t1", BatchID: "b2"})
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonTeacherClash, rej.Reason)
	assert.Len(t, rej.Conflicting, 1)

	forced := entry("", "Monday", 2, "t1", "b2")
	_, err = session.Import(testWeek, []models.TimetableEntry{forced}, "")
	require.NoError(t, err)

	conflicts, err := session.Conflicts(testWeek)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictTeacherClash, conflicts[0].Type)
	assert.Equal(t, "t1", conflicts[0].TeacherID)
	assert.Equal(t, "Monday", conflicts[0].Day)
	assert.Equal(t, 2, conflicts[0].PeriodNumber)
	assert.Equal(t, models.SeverityError, conflicts[0].Severity)
}
