package scheduling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const testWeek = "2024-01-01"

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC) }
}

func testStructure() models.PeriodStructure {
	return models.PeriodStructure{
		WorkingDays:   []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		PeriodsPerDay: 8,
		Breaks:        []models.Break{{ID: "b1", Name: "Recess", AfterPeriod: 3, DurationMinutes: 15}},
	}
}

func testLoads() []models.TeacherLoad {
	return []models.TeacherLoad{
		{
			TeacherID:      "t1",
			TeacherName:    "Ana",
			Subjects:       []string{"math"},
			PeriodsPerWeek: 10,
			AllowedBatches: []models.AllowedBatch{
				{BatchID: "b1", BatchName: "X-A", SubjectID: "math", SubjectName: "Mathematics"},
				{BatchID: "b2", BatchName: "X-B", SubjectID: "math", SubjectName: "Mathematics"},
			},
		},
		{
			TeacherID:      "t2",
			TeacherName:    "Budi",
			Subjects:       []string{"physics"},
			WorkingDays:    []string{"monday", "wednesday"},
			PeriodsPerWeek: 4,
			AllowedBatches: []models.AllowedBatch{
				{BatchID: "b1", BatchName: "X-A", SubjectID: "physics", SubjectName: "Physics"},
			},
		},
		{
			TeacherID:      "t3",
			TeacherName:    "Citra",
			PeriodsPerWeek: 6,
			AllowedBatches: []models.AllowedBatch{
				{BatchID: "b2", BatchName: "X-B", SubjectID: "bio", SubjectName: "Biology"},
			},
		},
	}
}

func newTestSession(t *testing.T, mutate func(*MasterData)) *Session {
	t.Helper()
	data := MasterData{Structure: testStructure(), Loads: testLoads()}
	if mutate != nil {
		mutate(&data)
	}
	session, err := NewSession(data, SessionOptions{NewID: sequentialIDs("id"), Now: fixedClock()})
	require.NoError(t, err)
	_, err = session.OpenWeek(testWeek, nil)
	require.NoError(t, err)
	return session
}

func date(value string) time.Time {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(id, day string, period int, teacherID, batchID string) models.TimetableEntry {
	return models.TimetableEntry{
		ID:           id,
		Day:          day,
		PeriodNumber: period,
		SubjectID:    "math",
		SubjectName:  "Mathematics",
		TeacherID:    teacherID,
		TeacherName:  teacherID,
		BatchID:      batchID,
		BatchName:    batchID,
	}
}
