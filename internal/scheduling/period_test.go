package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestGenerateTimeMappingAppliesBreak(t *testing.T) {
	mapping, err := GenerateTimeMapping(6, []models.Break{{ID: "b", AfterPeriod: 3, DurationMinutes: 15}}, "08:00", 45)
	require.NoError(t, err)
	require.Len(t, mapping, 6)

	assert.Equal(t, models.PeriodTime{StartTime: "08:00", EndTime: "08:45"}, mapping[1])
	assert.Equal(t, models.PeriodTime{StartTime: "08:45", EndTime: "09:30"}, mapping[2])
	assert.Equal(t, models.PeriodTime{StartTime: "09:30", EndTime: "10:15"}, mapping[3])
	assert.Equal(t, "10:30", mapping[4].StartTime)
	assert.Equal(t, "11:15", mapping[4].EndTime)
}

func TestGenerateTimeMappingDefaultsAndIdempotence(t *testing.T) {
	breaks := []models.Break{
		{ID: "late", AfterPeriod: 5, DurationMinutes: 30},
		{ID: "early", AfterPeriod: 2, DurationMinutes: 10},
	}
	first, err := GenerateTimeMapping(7, breaks, "", 0)
	require.NoError(t, err)
	second, err := GenerateTimeMapping(7, breaks, DefaultStartClock, DefaultPeriodMinutes)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "08:00", first[1].StartTime)
}

func TestGenerateTimeMappingMonotonic(t *testing.T) {
	breaks := []models.Break{
		{ID: "a", AfterPeriod: 2, DurationMinutes: 10},
		{ID: "b", AfterPeriod: 4, DurationMinutes: 20},
	}
	mapping, err := GenerateTimeMapping(8, breaks, "07:15", 40)
	require.NoError(t, err)

	breakAfter := map[int]bool{2: true, 4: true}
	for p := 1; p <= 8; p++ {
		for q := p + 1; q <= 8; q++ {
			end, err := parseClock(mapping[p].EndTime)
			require.NoError(t, err)
			start, err := parseClock(mapping[q].StartTime)
			require.NoError(t, err)

			between := false
			for b := p; b < q; b++ {
				if breakAfter[b] {
					between = true
				}
			}
			if between {
				assert.Less(t, end, start, "periods %d and %d", p, q)
			} else {
				assert.LessOrEqual(t, end, start, "periods %d and %d", p, q)
			}
		}
	}
}

func TestValidateStructureRejectsInconsistentConfig(t *testing.T) {
	cases := map[string]models.PeriodStructure{
		"no days":         {PeriodsPerDay: 6},
		"unknown day":     {WorkingDays: []string{"Funday"}, PeriodsPerDay: 6},
		"duplicate day":   {WorkingDays: []string{"Monday", "monday"}, PeriodsPerDay: 6},
		"zero periods":    {WorkingDays: []string{"Monday"}, PeriodsPerDay: 0},
		"break too late":  {WorkingDays: []string{"Monday"}, PeriodsPerDay: 6, Breaks: []models.Break{{AfterPeriod: 6, DurationMinutes: 10}}},
		"break too early": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 6, Breaks: []models.Break{{AfterPeriod: 0, DurationMinutes: 10}}},
		"shared slot": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 6, Breaks: []models.Break{
			{AfterPeriod: 2, DurationMinutes: 10}, {AfterPeriod: 2, DurationMinutes: 5},
		}},
		"too many breaks": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 8, Breaks: []models.Break{
			{AfterPeriod: 1, DurationMinutes: 5}, {AfterPeriod: 2, DurationMinutes: 5},
			{AfterPeriod: 3, DurationMinutes: 5}, {AfterPeriod: 4, DurationMinutes: 5},
			{AfterPeriod: 5, DurationMinutes: 5},
		}},
		"mapping gap": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 2, UseTimeMapping: true, TimeMapping: map[int]models.PeriodTime{
			1: {StartTime: "08:00", EndTime: "08:45"},
		}},
		"mapping overlap": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 2, UseTimeMapping: true, TimeMapping: map[int]models.PeriodTime{
			1: {StartTime: "08:00", EndTime: "08:45"},
			2: {StartTime: "08:30", EndTime: "09:15"},
		}},
		"runs past midnight": {WorkingDays: []string{"Monday"}, PeriodsPerDay: 6, StartClock: "22:00", PeriodMinutes: 60},
	}
	for name, structure := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateStructure(structure)
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestGenerateTimeMappingRejectsPastMidnight(t *testing.T) {
	_, err := GenerateTimeMapping(6, nil, "22:00", 60)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "periodMinutes", cfgErr.Field)

	_, err = NormalizeStructure(models.PeriodStructure{
		WorkingDays:   []string{"Monday"},
		PeriodsPerDay: 6,
		StartClock:    "22:00",
		PeriodMinutes: 60,
	})
	require.ErrorAs(t, err, &cfgErr)

	_, err = GenerateTimeMapping(2, nil, "22:00", 60)
	require.ErrorAs(t, err, &cfgErr)

	mapping, err := GenerateTimeMapping(1, nil, "22:00", 60)
	require.NoError(t, err)
	assert.Equal(t, "22:00", mapping[1].StartTime)
	assert.Equal(t, "23:00", mapping[1].EndTime)
}

func TestNormalizeStructureCanonicalisesDays(t *testing.T) {
	s, err := NormalizeStructure(models.PeriodStructure{
		WorkingDays:   []string{"MONDAY", "tue"},
		PeriodsPerDay: 4,
		Breaks:        []models.Break{{ID: "b2", AfterPeriod: 3, DurationMinutes: 5}, {ID: "b1", AfterPeriod: 1, DurationMinutes: 5}},
		TimeMapping:   map[int]models.PeriodTime{1: {StartTime: "09:00", EndTime: "09:30"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday", "Tuesday"}, s.WorkingDays)
	assert.Equal(t, "b1", s.Breaks[0].ID)
	assert.Nil(t, s.TimeMapping)
	assert.Equal(t, DefaultStartClock, s.StartClock)
	assert.Equal(t, DefaultPeriodMinutes, s.PeriodMinutes)
}

func TestAddBreakTakesFirstUnusedSlot(t *testing.T) {
	s := models.PeriodStructure{WorkingDays: []string{"Monday"}, PeriodsPerDay: 6, Breaks: []models.Break{{ID: "x", AfterPeriod: 1, DurationMinutes: 10}}}

	next, added, err := AddBreak(s, models.Break{})
	require.NoError(t, err)
	assert.Equal(t, 2, added.AfterPeriod)
	assert.Equal(t, 15, added.DurationMinutes)
	assert.Len(t, next.Breaks, 2)

	_, _, err = AddBreak(next, models.Break{AfterPeriod: 2, DurationMinutes: 5})
	assert.Error(t, err)

	trimmed, err := RemoveBreak(next, added.ID)
	require.NoError(t, err)
	assert.Len(t, trimmed.Breaks, 1)

	_, err = RemoveBreak(trimmed, "missing")
	assert.Error(t, err)
}

func TestAddBreakRejectsFifthBreak(t *testing.T) {
	s := models.PeriodStructure{WorkingDays: []string{"Monday"}, PeriodsPerDay: 8}
	var err error
	for i := 0; i < MaxBreaks; i++ {
		s, _, err = AddBreak(s, models.Break{})
		require.NoError(t, err)
	}
	_, _, err = AddBreak(s, models.Break{})
	assert.Error(t, err)
}

func TestOrphanedEntries(t *testing.T) {
	s := models.PeriodStructure{WorkingDays: []string{"Monday"}, PeriodsPerDay: 4}
	orphans := OrphanedEntries(s, []models.TimetableEntry{
		entry("keep", "Monday", 4, "t1", "b1"),
		entry("late", "Monday", 5, "t1", "b1"),
		entry("offday", "Tuesday", 1, "t1", "b1"),
	})
	require.Len(t, orphans, 2)
	assert.Equal(t, "late", orphans[0].ID)
	assert.Equal(t, "offday", orphans[1].ID)
}
