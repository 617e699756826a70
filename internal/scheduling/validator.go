package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Mode selects which side of a placement the user fixed first.
type Mode string

const (
	ModeTeacherFirst Mode = "teacher_first"
	ModeBatchFirst   Mode = "batch_first"
)

// Candidate is a placement the user wants to commit.
type Candidate struct {
	Mode         Mode   `json:"mode"`
	Day          string `json:"day"`
	PeriodNumber int    `json:"periodNumber"`
	TeacherID    string `json:"teacherId"`
	BatchID      string `json:"batchId"`
	FacilityID   string `json:"facilityId,omitempty"`
}

// HintKind names a non-blocking advisory.
type HintKind string

const (
	HintUnavailableDay     HintKind = "unavailable_day"
	HintUnavailablePeriod  HintKind = "unavailable_period"
	HintOutsideWindow      HintKind = "outside_time_window"
	HintDailyLimit         HintKind = "daily_limit"
	HintNearDailyLimit     HintKind = "near_daily_limit"
	HintConsecutiveLimit   HintKind = "consecutive_limit"
	HintAvoidFirstPeriod   HintKind = "avoid_first_period"
	HintAvoidLastPeriod    HintKind = "avoid_last_period"
	HintQuotaReached       HintKind = "quota_reached"
	HintFacilityNotAllowed HintKind = "facility_not_allowed"
	HintFacilityInUse      HintKind = "facility_in_use"
)

// Hint is shown to the user but never blocks a commit.
type Hint struct {
	Kind    HintKind `json:"kind"`
	Message string   `json:"message"`
}

// Placement is a validated, fully resolved entry ready for the store.
type Placement struct {
	Entry models.TimetableEntry `json:"entry"`
	Hints []Hint                `json:"hints"`
}

// Option is one selectable counterpart in a placement dialog.
type Option struct {
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	BatchID     string `json:"batchId"`
	BatchName   string `json:"batchName"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	Busy        bool   `json:"busy"`
}

// CheckOptions relaxes screening of already-resolved entries.
type CheckOptions struct {
	IgnoreHolidays bool
}

// Validator decides whether a new placement may be committed.
type Validator struct {
	structure   models.PeriodStructure
	roster      *Roster
	constraints *ConstraintStore
	facilities  *FacilityRegistry
	calendar    *Calendar
	newID       func() string
}

// NewValidator wires the validator's read-only inputs. A nil newID uses random UUIDs.
func NewValidator(structure models.PeriodStructure, roster *Roster, constraints *ConstraintStore, facilities *FacilityRegistry, calendar *Calendar, newID func() string) *Validator {
	if roster == nil {
		roster = NewRoster(nil)
	}
	if constraints == nil {
		constraints = NewConstraintStore(nil)
	}
	if facilities == nil {
		facilities = NewFacilityRegistry(nil)
	}
	if calendar == nil {
		calendar = NewCalendar(nil, nil)
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Validator{
		structure:   structure,
		roster:      roster,
		constraints: constraints,
		facilities:  facilities,
		calendar:    calendar,
		newID:       newID,
	}
}

// Validate screens a candidate against store and returns the resolved entry. The
// error is a *Rejection when a rule refuses the placement.
func (v *Validator) Validate(store *EntryStore, c Candidate) (Placement, error) {
	day, rej := v.checkSlot(c.Day, c.PeriodNumber)
	if rej != nil {
		return Placement{}, rej
	}

	load, ok := v.roster.Teacher(c.TeacherID)
	if !ok {
		return Placement{}, reject(ReasonUnknownTeacher, "teacher %s is not on the roster", c.TeacherID)
	}
	if !WorksOn(load, day) {
		return Placement{}, reject(ReasonTeacherOffDay, "%s does not work on %s", displayName(load.TeacherName, load.TeacherID), day)
	}

	mapping, ok := v.roster.Mapping().Resolve(c.TeacherID, c.BatchID)
	if !ok {
		if c.Mode == ModeBatchFirst {
			return Placement{}, reject(ReasonUnmappedPair, "%s does not teach batch %s", displayName(load.TeacherName, load.TeacherID), c.BatchID)
		}
		return Placement{}, reject(ReasonUnmappedPair, "batch %s is not assigned to %s", c.BatchID, displayName(load.TeacherName, load.TeacherID))
	}

	entry := models.TimetableEntry{
		ID:           v.newID(),
		WeekStart:    store.WeekStart(),
		Day:          day,
		PeriodNumber: c.PeriodNumber,
		SubjectID:    mapping.SubjectID,
		SubjectName:  mapping.SubjectName,
		TeacherID:    load.TeacherID,
		TeacherName:  load.TeacherName,
		BatchID:      mapping.BatchID,
		BatchName:    mapping.BatchName,
	}

	if c.FacilityID != "" {
		facility, ok := v.facilities.Find(c.FacilityID)
		if !ok {
			return Placement{}, reject(ReasonUnknownFacility, "facility %s does not exist", c.FacilityID)
		}
		id, name := facility.ID, facility.Name
		entry.FacilityID = &id
		entry.FacilityName = &name
	}

	hints, rej := v.screen(store, entry, load, CheckOptions{})
	if rej != nil {
		return Placement{}, rej
	}
	return Placement{Entry: entry, Hints: hints}, nil
}

// CheckResolved screens an entry that already carries its subject, as produced by
// copying. Quota and preference hints are returned alongside.
func (v *Validator) CheckResolved(store *EntryStore, entry models.TimetableEntry, opts CheckOptions) ([]Hint, error) {
	day, rej := v.checkSlot(entry.Day, entry.PeriodNumber)
	if rej != nil {
		return nil, rej
	}
	entry.Day = day
	load, ok := v.roster.Teacher(entry.TeacherID)
	if !ok {
		load = models.TeacherLoad{TeacherID: entry.TeacherID, TeacherName: entry.TeacherName}
	}
	hints, rej := v.screen(store, entry, load, opts)
	if rej != nil {
		return nil, rej
	}
	return hints, nil
}

// EligibleBatches lists the batches a teacher may take at a slot (teacher-first mode).
func (v *Validator) EligibleBatches(store *EntryStore, teacherID, day string, period int) []Option {
	canonical, rej := v.checkSlot(day, period)
	if rej != nil {
		return []Option{}
	}
	load, ok := v.roster.Teacher(teacherID)
	if !ok || !WorksOn(load, canonical) {
		return []Option{}
	}
	out := make([]Option, 0, len(load.AllowedBatches))
	seen := make(map[string]bool, len(load.AllowedBatches))
	for _, ab := range load.AllowedBatches {
		if seen[ab.BatchID] {
			continue
		}
		seen[ab.BatchID] = true
		_, busy := store.Get(canonical, period, SlotFilter{BatchID: ab.BatchID})
		out = append(out, Option{
			TeacherID:   load.TeacherID,
			TeacherName: load.TeacherName,
			BatchID:     ab.BatchID,
			BatchName:   ab.BatchName,
			SubjectID:   ab.SubjectID,
			SubjectName: ab.SubjectName,
			Busy:        busy,
		})
	}
	return out
}

// EligibleTeachers lists the teachers who may take a batch at a slot (batch-first mode).
func (v *Validator) EligibleTeachers(store *EntryStore, batchID, day string, period int) []Option {
	canonical, rej := v.checkSlot(day, period)
	if rej != nil {
		return []Option{}
	}
	out := make([]Option, 0)
	for _, load := range v.roster.Loads() {
		if !WorksOn(load, canonical) {
			continue
		}
		ab, ok := v.roster.Mapping().Resolve(load.TeacherID, batchID)
		if !ok {
			continue
		}
		_, busy := store.Get(canonical, period, SlotFilter{TeacherID: load.TeacherID})
		out = append(out, Option{
			TeacherID:   load.TeacherID,
			TeacherName: load.TeacherName,
			BatchID:     ab.BatchID,
			BatchName:   ab.BatchName,
			SubjectID:   ab.SubjectID,
			SubjectName: ab.SubjectName,
			Busy:        busy,
		})
	}
	return out
}

func (v *Validator) checkSlot(rawDay string, period int) (string, *Rejection) {
	day, ok := NormalizeDay(rawDay)
	if !ok || !containsDay(v.structure.WorkingDays, day) {
		return "", reject(ReasonNotWorkingDay, "%s is not a working day", rawDay)
	}
	if period < 1 || period > v.structure.PeriodsPerDay {
		return "", reject(ReasonPeriodOutOfRange, "period %d is outside 1-%d", period, v.structure.PeriodsPerDay)
	}
	return day, nil
}

func (v *Validator) screen(store *EntryStore, entry models.TimetableEntry, load models.TeacherLoad, opts CheckOptions) ([]Hint, *Rejection) {
	day, period := entry.Day, entry.PeriodNumber
	hints := make([]Hint, 0)

	if !opts.IgnoreHolidays {
		if date, ok := v.entryDate(store, day); ok {
			if h, holiday := v.calendar.HolidayOn(date); holiday {
				return nil, reject(ReasonHoliday, "%s (%s) is a holiday: %s", day, date.Format(DateLayout), h.Name)
			}
		}
	}

	if existing, ok := store.Get(day, period, SlotFilter{TeacherID: entry.TeacherID}); ok {
		r := reject(ReasonTeacherClash, "%s already teaches %s on %s period %d", displayName(entry.TeacherName, entry.TeacherID), displayName(existing.BatchName, existing.BatchID), day, period)
		r.Conflicting = []models.TimetableEntry{existing}
		return nil, r
	}
	if existing, ok := store.Get(day, period, SlotFilter{BatchID: entry.BatchID}); ok {
		r := reject(ReasonBatchClash, "%s already has %s on %s period %d", displayName(entry.BatchName, entry.BatchID), displayName(existing.SubjectName, existing.SubjectID), day, period)
		r.Conflicting = []models.TimetableEntry{existing}
		return nil, r
	}

	constraint := v.constraints.Effective(entry.TeacherID)
	hard := constraint.PreferenceLevel == models.PreferenceHard
	teacher := displayName(entry.TeacherName, entry.TeacherID)

	if containsDay(constraint.UnavailableDays, day) {
		if hard {
			return nil, reject(ReasonUnavailableDay, "%s is unavailable on %s", teacher, day)
		}
		hints = append(hints, Hint{Kind: HintUnavailableDay, Message: fmt.Sprintf("%s prefers not to teach on %s", teacher, day)})
	}
	if containsPeriod(constraint.UnavailablePeriods, period) {
		if hard {
			return nil, reject(ReasonUnavailablePeriod, "%s is unavailable in period %d", teacher, period)
		}
		hints = append(hints, Hint{Kind: HintUnavailablePeriod, Message: fmt.Sprintf("%s prefers not to teach period %d", teacher, period)})
	}
	if w := constraint.TimeWindow; w != nil && (period < w.StartPeriod || period > w.EndPeriod) {
		if hard {
			return nil, reject(ReasonOutsideWindow, "%s only teaches periods %d-%d", teacher, w.StartPeriod, w.EndPeriod)
		}
		hints = append(hints, Hint{Kind: HintOutsideWindow, Message: fmt.Sprintf("period %d is outside %s's preferred window %d-%d", period, teacher, w.StartPeriod, w.EndPeriod)})
	}

	daily := store.CountForTeacher(entry.TeacherID, day)
	switch {
	case daily >= constraint.MaxPeriodsPerDay:
		if hard {
			return nil, reject(ReasonDailyLimit, "%s already has %d periods on %s (limit %d)", teacher, daily, day, constraint.MaxPeriodsPerDay)
		}
		hints = append(hints, Hint{Kind: HintDailyLimit, Message: fmt.Sprintf("%s will exceed the daily limit of %d on %s", teacher, constraint.MaxPeriodsPerDay, day)})
	case daily+1 == constraint.MaxPeriodsPerDay:
		hints = append(hints, Hint{Kind: HintNearDailyLimit, Message: fmt.Sprintf("%s reaches the daily limit of %d on %s", teacher, constraint.MaxPeriodsPerDay, day)})
	}

	if run := consecutiveRun(store.TeacherPeriods(entry.TeacherID, day), period); run > constraint.MaxConsecutivePeriods {
		hints = append(hints, Hint{Kind: HintConsecutiveLimit, Message: fmt.Sprintf("%s would teach %d periods in a row (limit %d)", teacher, run, constraint.MaxConsecutivePeriods)})
	}

	if load.AvoidFirstPeriod && period == 1 {
		hints = append(hints, Hint{Kind: HintAvoidFirstPeriod, Message: fmt.Sprintf("%s prefers to avoid the first period", teacher)})
	}
	if load.AvoidLastPeriod && period == v.structure.PeriodsPerDay {
		hints = append(hints, Hint{Kind: HintAvoidLastPeriod, Message: fmt.Sprintf("%s prefers to avoid the last period", teacher)})
	}
	if load.PeriodsPerWeek > 0 {
		if remaining := load.PeriodsPerWeek - store.CountForTeacher(entry.TeacherID, ""); remaining <= 0 {
			hints = append(hints, Hint{Kind: HintQuotaReached, Message: fmt.Sprintf("%s has no remaining quota (%d per week)", teacher, load.PeriodsPerWeek)})
		}
	}

	if entry.FacilityID != nil {
		if facility, ok := v.facilities.Find(*entry.FacilityID); ok {
			if !v.facilities.Allowed(facility, entry.BatchID) {
				hints = append(hints, Hint{Kind: HintFacilityNotAllowed, Message: fmt.Sprintf("%s is not listed for %s", facility.Name, displayName(entry.BatchName, entry.BatchID))})
			}
			for _, other := range store.AtSlot(day, period) {
				if other.FacilityID != nil && *other.FacilityID == facility.ID {
					hints = append(hints, Hint{Kind: HintFacilityInUse, Message: fmt.Sprintf("%s is already used by %s", facility.Name, displayName(other.BatchName, other.BatchID))})
					break
				}
			}
		}
	}
	return hints, nil
}

func (v *Validator) entryDate(store *EntryStore, day string) (time.Time, bool) {
	week, err := ParseWeek(store.WeekStart())
	if err != nil {
		return time.Time{}, false
	}
	return DateFor(week, day)
}

// consecutiveRun returns the length of the block of occupied periods that period
// would join.
func consecutiveRun(occupied map[int]bool, period int) int {
	run := 1
	for p := period - 1; occupied[p]; p-- {
		run++
	}
	for p := period + 1; occupied[p]; p++ {
		run++
	}
	return run
}
