package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func hintKinds(hints []Hint) []HintKind {
	out := make([]HintKind, 0, len(hints))
	for _, h := range hints {
		out = append(out, h.Kind)
	}
	return out
}

func requireRejection(t *testing.T, err error, reason RejectReason) *Rejection {
	t.Helper()
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, reason, rej.Reason)
	return rej
}

func TestValidateResolvesSubjectFromMapping(t *testing.T) {
	session := newTestSession(t, nil)

	placement, err := session.Validate(testWeek, Candidate{Mode: ModeBatchFirst, Day: "wed", PeriodNumber: 4, TeacherID: "t2", BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "physics", placement.Entry.SubjectID)
	assert.Equal(t, "Physics", placement.Entry.SubjectName)
	assert.Equal(t, "Wednesday", placement.Entry.Day)
	assert.Equal(t, "Budi", placement.Entry.TeacherName)
	assert.Equal(t, "X-A", placement.Entry.BatchName)
	assert.Equal(t, testWeek, placement.Entry.WeekStart)
}

func TestValidateRejections(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Holidays = []models.Holiday{{Date: date("2024-01-02"), Name: "Founders Day"}}
		d.Facilities = []models.Facility{{ID: "lab-1", Name: "Lab", Type: models.FacilityLab}}
	})
	_, _, err := session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"})
	require.NoError(t, err)

	cases := []struct {
		name      string
		candidate Candidate
		reason    RejectReason
	}{
		{"teacher clash", Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b2"}, ReasonTeacherClash},
		{"batch clash", Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t2", BatchID: "b1"}, ReasonBatchClash},
		{"holiday", Candidate{Day: "Tuesday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"}, ReasonHoliday},
		{"weekend", Candidate{Day: "Saturday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"}, ReasonNotWorkingDay},
		{"period range", Candidate{Day: "Monday", PeriodNumber: 9, TeacherID: "t1", BatchID: "b1"}, ReasonPeriodOutOfRange},
		{"unknown teacher", Candidate{Day: "Monday", PeriodNumber: 2, TeacherID: "ghost", BatchID: "b1"}, ReasonUnknownTeacher},
		{"teacher off day", Candidate{Day: "Thursday", PeriodNumber: 2, TeacherID: "t2", BatchID: "b1"}, ReasonTeacherOffDay},
		{"unmapped pair", Candidate{Mode: ModeBatchFirst, Day: "Monday", PeriodNumber: 2, TeacherID: "t3", BatchID: "b1"}, ReasonUnmappedPair},
		{"unknown facility", Candidate{Day: "Monday", PeriodNumber: 2, TeacherID: "t1", BatchID: "b1", FacilityID: "gym"}, ReasonUnknownFacility},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := session.Validate(testWeek, tc.candidate)
			requireRejection(t, err, tc.reason)
		})
	}
}

func TestValidateHardConstraintsBlock(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Constraints = []models.TeacherConstraint{{
			TeacherID:             "t1",
			MaxPeriodsPerDay:      2,
			MaxConsecutivePeriods: 4,
			UnavailableDays:       []string{"Friday"},
			UnavailablePeriods:    []int{8},
			TimeWindow:            &models.TimeWindow{StartPeriod: 1, EndPeriod: 6},
			PreferenceLevel:       models.PreferenceHard,
		}}
	})

	_, err := session.Validate(testWeek, Candidate{Day: "Friday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"})
	requireRejection(t, err, ReasonUnavailableDay)

	_, err = session.Validate(testWeek, Candidate{Day: "Monday", PeriodNumber: 7, TeacherID: "t1", BatchID: "b1"})
	requireRejection(t, err, ReasonOutsideWindow)

	_, err = session.Validate(testWeek, Candidate{Day: "Monday", PeriodNumber: 8, TeacherID: "t1", BatchID: "b1"})
	requireRejection(t, err, ReasonUnavailablePeriod)

	_, _, err = session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"})
	require.NoError(t, err)
	_, _, err = session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 2, TeacherID: "t1", BatchID: "b2"})
	require.NoError(t, err)
	_, err = session.Validate(testWeek, Candidate{Day: "Monday", PeriodNumber: 3, TeacherID: "t1", BatchID: "b1"})
	requireRejection(t, err, ReasonDailyLimit)
}

func TestValidateSoftConstraintsOnlyHint(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Constraints = []models.TeacherConstraint{{
			TeacherID:             "t1",
			MaxPeriodsPerDay:      2,
			MaxConsecutivePeriods: 1,
			UnavailableDays:       []string{"Monday"},
			PreferenceLevel:       models.PreferenceSoft,
		}}
		d.Loads[0].AvoidFirstPeriod = true
	})

	placement, _, err := session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t1", BatchID: "b1"})
	require.NoError(t, err)
	kinds := hintKinds(placement.Hints)
	assert.Contains(t, kinds, HintUnavailableDay)
	assert.Contains(t, kinds, HintAvoidFirstPeriod)
	assert.NotContains(t, kinds, HintNearDailyLimit)

	placement, _, err = session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 2, TeacherID: "t1", BatchID: "b2"})
	require.NoError(t, err)
	kinds = hintKinds(placement.Hints)
	assert.Contains(t, kinds, HintNearDailyLimit)
	assert.Contains(t, kinds, HintConsecutiveLimit)

	placement, _, err = session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 5, TeacherID: "t1", BatchID: "b1"})
	require.NoError(t, err)
	assert.Contains(t, hintKinds(placement.Hints), HintDailyLimit)
}

func TestValidateOverloadDoesNotBlock(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Loads[1].PeriodsPerWeek = 1
	})
	_, _, err := session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t2", BatchID: "b1"})
	require.NoError(t, err)

	placement, _, err := session.Assign(testWeek, Candidate{Day: "Wednesday", PeriodNumber: 1, TeacherID: "t2", BatchID: "b1"})
	require.NoError(t, err)
	assert.Contains(t, hintKinds(placement.Hints), HintQuotaReached)

	conflicts, err := session.Conflicts(testWeek)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictOverload, conflicts[0].Type)
}

func TestValidateFacilityHints(t *testing.T) {
	session := newTestSession(t, func(d *MasterData) {
		d.Facilities = []models.Facility{{ID: "lab-1", Name: "Physics Lab", Type: models.FacilityLab, AllowedClasses: []string{"b1"}}}
	})
	placement, _, err := session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 3, TeacherID: "t2", BatchID: "b1", FacilityID: "lab-1"})
	require.NoError(t, err)
	require.NotNil(t, placement.Entry.FacilityName)
	assert.Equal(t, "Physics Lab", *placement.Entry.FacilityName)
	assert.NotContains(t, hintKinds(placement.Hints), HintFacilityNotAllowed)

	placement, _, err = session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 3, TeacherID: "t3", BatchID: "b2", FacilityID: "lab-1"})
	require.NoError(t, err)
	kinds := hintKinds(placement.Hints)
	assert.Contains(t, kinds, HintFacilityNotAllowed)
	assert.Contains(t, kinds, HintFacilityInUse)
}

func TestEligibleOptions(t *testing.T) {
	session := newTestSession(t, nil)
	_, _, err := session.Assign(testWeek, Candidate{Day: "Monday", PeriodNumber: 1, TeacherID: "t2", BatchID: "b1"})
	require.NoError(t, err)

	batches, err := session.EligibleBatches(testWeek, "t1", "Monday", 1)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "b1", batches[0].BatchID)
	assert.True(t, batches[0].Busy)
	assert.False(t, batches[1].Busy)

	offDay, err := session.EligibleBatches(testWeek, "t2", "Tuesday", 1)
	require.NoError(t, err)
	assert.Empty(t, offDay)

	teachers, err := session.EligibleTeachers(testWeek, "b1", "Tuesday", 2)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "t1", teachers[0].TeacherID)

	teachers, err = session.EligibleTeachers(testWeek, "b1", "Monday", 2)
	require.NoError(t, err)
	assert.Len(t, teachers, 2)
}

func TestSubjectResolutionIsDeterministic(t *testing.T) {
	loads := []models.TeacherLoad{{
		TeacherID: "t1",
		AllowedBatches: []models.AllowedBatch{
			{BatchID: "b1", SubjectID: "math"},
			{BatchID: "b1", SubjectID: "stats"},
		},
	}}
	for i := 0; i < 20; i++ {
		ab, ok := NewSubjectMapping(loads).Resolve("t1", "b1")
		require.True(t, ok)
		assert.Equal(t, "math", ab.SubjectID)
	}
	_, ok := NewSubjectMapping(loads).Resolve("t1", "b9")
	assert.False(t, ok)
}

func TestNoDoubleBookingThroughValidator(t *testing.T) {
	session := newTestSession(t, nil)
	teachers := []string{"t1", "t2", "t3"}
	batches := []string{"b1", "b2"}
	for _, day := range []string{"Monday", "Wednesday"} {
		for period := 1; period <= 3; period++ {
			for _, teacher := range teachers {
				for _, batch := range batches {
					_, _, _ = session.Assign(testWeek, Candidate{Day: day, PeriodNumber: period, TeacherID: teacher, BatchID: batch})
				}
			}
		}
	}

	entries, err := session.Entries(testWeek, SlotFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	teacherSlots := map[string]bool{}
	batchSlots := map[string]bool{}
	for _, e := range entries {
		tk := e.TeacherID + e.Day + string(rune('0'+e.PeriodNumber))
		bk := e.BatchID + e.Day + string(rune('0'+e.PeriodNumber))
		assert.False(t, teacherSlots[tk], "teacher double-booked: %s", tk)
		assert.False(t, batchSlots[bk], "batch double-booked: %s", bk)
		teacherSlots[tk] = true
		batchSlots[bk] = true
	}
	conflicts, err := session.Conflicts(testWeek)
	require.NoError(t, err)
	for _, c := range conflicts {
		assert.Equal(t, models.ConflictOverload, c.Type)
	}
}
