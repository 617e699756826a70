package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func fiveDaySource() []models.TimetableEntry {
	return []models.TimetableEntry{
		entry("s1", "Monday", 1, "t1", "b1"),
		entry("s2", "Tuesday", 1, "t1", "b1"),
		entry("s3", "Wednesday", 1, "t1", "b1"),
		entry("s4", "Thursday", 1, "t1", "b1"),
		entry("s5", "Friday", 1, "t1", "b1"),
	}
}

func TestCopyWeekSkipsHolidays(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Holidays = []models.Holiday{{Date: date("2024-01-17"), Name: "Mid-term Break"}}
	})
	_, err := session.Import(testWeek, fiveDaySource(), "")
	require.NoError(t, err)

	result, action, err := session.CopyWeek(testWeek, []string{"2024-01-08", "2024-01-15"}, CopyOptions{SkipHolidays: true})
	require.NoError(t, err)

	require.Len(t, result.Weeks, 2)
	assert.Len(t, result.Weeks[0].Staged, 5)
	assert.Len(t, result.Weeks[1].Staged, 4)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipHoliday, result.Skipped[0].Reason)
	assert.Equal(t, "2024-01-17", result.Skipped[0].Date)
	assert.Equal(t, "Wednesday", result.Skipped[0].Source.Day)

	assert.Equal(t, ActionCopyWeek, action.Kind)
	assert.Len(t, action.Changes, 2)

	week2, err := session.Entries("2024-01-15", SlotFilter{})
	require.NoError(t, err)
	assert.Len(t, week2, 4)
	for _, e := range week2 {
		assert.Equal(t, "2024-01-15", e.WeekStart)
		assert.NotEqual(t, "Wednesday", e.Day)
	}

	_, ok, err := session.Undo()
	require.NoError(t, err)
	require.True(t, ok)
	week2, err = session.Entries("2024-01-15", SlotFilter{})
	require.NoError(t, err)
	assert.Empty(t, week2)
}

func TestCopyWeekHolidayExclusivityWithOverwrite(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Holidays = []models.Holiday{{Date: date("2024-01-10"), Name: "Holiday"}}
	})
	_, err := session.Import(testWeek, fiveDaySource(), "")
	require.NoError(t, err)
	_, err = session.OpenWeek("2024-01-08", []models.TimetableEntry{entry("old-wed", "Wednesday", 1, "t3", "b1")})
	require.NoError(t, err)

	result, _, err := session.CopyWeek(testWeek, []string{"2024-01-08"}, CopyOptions{SkipHolidays: true, OverwriteExisting: true})
	require.NoError(t, err)
	for _, e := range result.Weeks[0].Staged {
		assert.NotEqual(t, "Wednesday", e.Day)
	}
	assert.Empty(t, result.Weeks[0].Replaced)

	kept, err := session.Entry("2024-01-08", "old-wed")
	require.NoError(t, err)
	assert.Equal(t, "t3", kept.TeacherID)
}

func TestCopyWeekOccupiedCells(t *testing.T) {
	source := fiveDaySource()[:2]

	t.Run("preserve existing", func(t *testing.T) {
		session := newTestSession(t, nil)
		_, err := session.Import(testWeek, source, "")
		require.NoError(t, err)
		_, err = session.OpenWeek("2024-01-08", []models.TimetableEntry{entry("old", "Monday", 1, "t3", "b1")})
		require.NoError(t, err)

		result, _, err := session.CopyWeek(testWeek, []string{"2024-01-08"}, CopyOptions{})
		require.NoError(t, err)
		assert.Len(t, result.Weeks[0].Staged, 1)
		require.Len(t, result.Skipped, 1)
		assert.Equal(t, SkipOccupied, result.Skipped[0].Reason)
		_, err = session.Entry("2024-01-08", "old")
		assert.NoError(t, err)
	})

	t.Run("overwrite existing", func(t *testing.T) {
		session := newTestSession(t, nil)
		_, err := session.Import(testWeek, source, "")
		require.NoError(t, err)
		_, err = session.OpenWeek("2024-01-08", []models.TimetableEntry{entry("old", "Monday", 1, "t3", "b1")})
		require.NoError(t, err)

		result, action, err := session.CopyWeek(testWeek, []string{"2024-01-08"}, CopyOptions{OverwriteExisting: true})
		require.NoError(t, err)
		assert.Len(t, result.Weeks[0].Staged, 2)
		require.Len(t, result.Weeks[0].Replaced, 1)
		assert.Equal(t, "old", result.Weeks[0].Replaced[0].ID)
		assert.Empty(t, result.Skipped)
		assert.Len(t, action.Changes[0].Removed, 1)

		_, err = session.Entry("2024-01-08", "old")
		assert.ErrorIs(t, err, ErrEntryNotFound)

		_, _, err = session.Undo()
		require.NoError(t, err)
		_, err = session.Entry("2024-01-08", "old")
		assert.NoError(t, err)
	})
}

func TestCopyWeekRejectsTeacherClashInTarget(t *testing.T) {
	session := newTestSession(t, nil)
	_, err := session.Import(testWeek, fiveDaySource()[:1], "")
	require.NoError(t, err)
	_, err = session.OpenWeek("2024-01-08", []models.TimetableEntry{entry("busy", "Monday", 1, "t1", "b2")})
	require.NoError(t, err)

	result, action, err := session.CopyWeek(testWeek, []string{"2024-01-08"}, CopyOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Empty(t, result.Weeks[0].Staged)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipRejected, result.Skipped[0].Reason)
	assert.True(t, action.Empty())
	assert.Equal(t, 1, session.HistoryState().UndoDepth)
}

func TestCopyWeekExamPeriodsAndWaivedHolidays(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Holidays = []models.Holiday{{Date: date("2024-01-09"), Name: "Holiday"}}
		d.ExamPeriods = []models.ExamPeriod{{Name: "Finals", StartDate: date("2024-01-11"), EndDate: date("2024-01-12")}}
	})
	_, err := session.Import(testWeek, fiveDaySource(), "")
	require.NoError(t, err)

	result, _, err := session.CopyWeek(testWeek, []string{"2024-01-08"}, CopyOptions{SkipExamPeriods: true})
	require.NoError(t, err)
	assert.Len(t, result.Weeks[0].Staged, 3)
	require.Len(t, result.Skipped, 2)
	for _, skipped := range result.Skipped {
		assert.Equal(t, SkipExamPeriod, skipped.Reason)
	}
	days := make([]string, 0)
	for _, e := range result.Weeks[0].Staged {
		days = append(days, e.Day)
	}
	assert.Contains(t, days, "Tuesday")
}

func TestCopyWeekTargetValidation(t *testing.T) {
	session := newTestSession(t, nil)

	_, _, err := session.CopyWeek(testWeek, []string{"2024-01-03"}, CopyOptions{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, _, err = session.CopyWeek(testWeek, nil, CopyOptions{})
	require.ErrorAs(t, err, &cfgErr)

	_, _, err = session.CopyWeek("2030-01-07", []string{"2024-01-08"}, CopyOptions{})
	assert.ErrorIs(t, err, ErrUnknownWeek)
}

func TestCopyWeekDropsSubstitution(t *testing.T) {
	sub := "t2"
	source := fiveDaySource()[:1]
	source[0].IsSubstituted = true
	source[0].SubstituteTeacherID = &sub

	session := newTestSession(t, nil)
	result := CopyWeek(session.validator, source, []*EntryStore{NewEntryStore("2024-01-08")}, CopyOptions{})
	require.Len(t, result.Weeks[0].Staged, 1)
	staged := result.Weeks[0].Staged[0]
	assert.False(t, staged.IsSubstituted)
	assert.Nil(t, staged.SubstituteTeacherID)
	assert.NotEqual(t, "s1", staged.ID)
	assert.Equal(t, "2024-01-08", staged.WeekStart)
}
