package scheduling

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	DefaultMaxPeriodsPerDay      = 6
	DefaultMaxConsecutivePeriods = 4
)

// DefaultConstraint is the rule set applied to a teacher without an override.
func DefaultConstraint(teacherID string) models.TeacherConstraint {
	return models.TeacherConstraint{
		TeacherID:             teacherID,
		MaxPeriodsPerDay:      DefaultMaxPeriodsPerDay,
		MaxConsecutivePeriods: DefaultMaxConsecutivePeriods,
		UnavailableDays:       []string{},
		UnavailablePeriods:    []int{},
		PreferenceLevel:       models.PreferenceSoft,
	}
}

// ConstraintStore holds per-teacher overrides.
type ConstraintStore struct {
	overrides map[string]models.TeacherConstraint
}

// NewConstraintStore seeds the store with stored overrides. Invalid rows are kept as-is;
// they were accepted by an earlier Set.
func NewConstraintStore(constraints []models.TeacherConstraint) *ConstraintStore {
	s := &ConstraintStore{overrides: make(map[string]models.TeacherConstraint, len(constraints))}
	for _, c := range constraints {
		c.UnavailableDays = normalizeDays(c.UnavailableDays)
		s.overrides[c.TeacherID] = c
	}
	return s
}

// Effective returns the stored override or the default.
func (s *ConstraintStore) Effective(teacherID string) models.TeacherConstraint {
	if s != nil {
		if c, ok := s.overrides[teacherID]; ok {
			return cloneConstraint(c)
		}
	}
	return DefaultConstraint(teacherID)
}

// Has reports whether a teacher carries an override.
func (s *ConstraintStore) Has(teacherID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.overrides[teacherID]
	return ok
}

// Set validates and stores an override.
func (s *ConstraintStore) Set(c models.TeacherConstraint, periodsPerDay int) (models.TeacherConstraint, error) {
	normalized, err := NormalizeConstraint(c, periodsPerDay)
	if err != nil {
		return models.TeacherConstraint{}, err
	}
	s.overrides[normalized.TeacherID] = normalized
	return cloneConstraint(normalized), nil
}

// Reset deletes the override so the teacher reverts to the default.
func (s *ConstraintStore) Reset(teacherID string) bool {
	if _, ok := s.overrides[teacherID]; !ok {
		return false
	}
	delete(s.overrides, teacherID)
	return true
}

// All returns every override ordered by teacher id.
func (s *ConstraintStore) All() []models.TeacherConstraint {
	out := make([]models.TeacherConstraint, 0, len(s.overrides))
	for _, c := range s.overrides {
		out = append(out, cloneConstraint(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeacherID < out[j].TeacherID })
	return out
}

// NormalizeConstraint canonicalises day names and checks limits against the structure.
func NormalizeConstraint(c models.TeacherConstraint, periodsPerDay int) (models.TeacherConstraint, error) {
	if c.TeacherID == "" {
		return models.TeacherConstraint{}, configErr("teacherId", "is required")
	}
	if c.MaxPeriodsPerDay < 1 {
		return models.TeacherConstraint{}, configErr("maxPeriodsPerDay", "must be at least 1")
	}
	if c.MaxConsecutivePeriods < 1 {
		return models.TeacherConstraint{}, configErr("maxConsecutivePeriods", "must be at least 1")
	}
	switch c.PreferenceLevel {
	case models.PreferenceHard, models.PreferenceSoft:
	case "":
		c.PreferenceLevel = models.PreferenceSoft
	default:
		return models.TeacherConstraint{}, configErr("preferenceLevel", "unknown level %q", c.PreferenceLevel)
	}

	days := make([]string, 0, len(c.UnavailableDays))
	for _, raw := range c.UnavailableDays {
		day, ok := NormalizeDay(raw)
		if !ok {
			return models.TeacherConstraint{}, configErr("unavailableDays", "unknown day %q", raw)
		}
		days = append(days, day)
	}
	c.UnavailableDays = normalizeDays(days)

	periods := make([]int, 0, len(c.UnavailablePeriods))
	seen := make(map[int]bool, len(c.UnavailablePeriods))
	for _, p := range c.UnavailablePeriods {
		if p < 1 || (periodsPerDay > 0 && p > periodsPerDay) {
			return models.TeacherConstraint{}, configErr("unavailablePeriods", "period %d is out of range", p)
		}
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	sort.Ints(periods)
	c.UnavailablePeriods = periods

	if w := c.TimeWindow; w != nil {
		if w.StartPeriod < 1 || w.EndPeriod < w.StartPeriod || (periodsPerDay > 0 && w.EndPeriod > periodsPerDay) {
			return models.TeacherConstraint{}, configErr("timeWindow", "window %d-%d is invalid", w.StartPeriod, w.EndPeriod)
		}
		window := *w
		c.TimeWindow = &window
	}
	return c, nil
}

func cloneConstraint(c models.TeacherConstraint) models.TeacherConstraint {
	out := c
	out.UnavailableDays = append([]string{}, c.UnavailableDays...)
	out.UnavailablePeriods = append([]int{}, c.UnavailablePeriods...)
	if c.TimeWindow != nil {
		w := *c.TimeWindow
		out.TimeWindow = &w
	}
	return out
}

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

func containsPeriod(periods []int, p int) bool {
	for _, v := range periods {
		if v == p {
			return true
		}
	}
	return false
}
