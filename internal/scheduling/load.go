package scheduling

import (
	"sort"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type pairKey struct {
	teacherID string
	batchID   string
}

// SubjectMapping is the fixed (teacher, batch) → subject lookup table built from the
// roster. When a roster lists the same pair twice the first row wins.
type SubjectMapping struct {
	pairs map[pairKey]models.AllowedBatch
}

// NewSubjectMapping indexes the allowed batches of every load.
func NewSubjectMapping(loads []models.TeacherLoad) SubjectMapping {
	m := SubjectMapping{pairs: make(map[pairKey]models.AllowedBatch)}
	for _, load := range loads {
		for _, ab := range load.AllowedBatches {
			key := pairKey{teacherID: load.TeacherID, batchID: ab.BatchID}
			if _, exists := m.pairs[key]; exists {
				continue
			}
			m.pairs[key] = ab
		}
	}
	return m
}

// Resolve returns the subject taught by teacherID to batchID.
func (m SubjectMapping) Resolve(teacherID, batchID string) (models.AllowedBatch, bool) {
	ab, ok := m.pairs[pairKey{teacherID: teacherID, batchID: batchID}]
	return ab, ok
}

// Roster is a read-only index of teacher loads.
type Roster struct {
	loads   []models.TeacherLoad
	byID    map[string]int
	mapping SubjectMapping
}

// NewRoster copies loads and indexes them by teacher id.
func NewRoster(loads []models.TeacherLoad) *Roster {
	r := &Roster{
		loads: make([]models.TeacherLoad, 0, len(loads)),
		byID:  make(map[string]int, len(loads)),
	}
	for _, load := range loads {
		load.WorkingDays = normalizeDays(load.WorkingDays)
		load.AllowedBatches = append([]models.AllowedBatch(nil), load.AllowedBatches...)
		r.byID[load.TeacherID] = len(r.loads)
		r.loads = append(r.loads, load)
	}
	r.mapping = NewSubjectMapping(r.loads)
	return r
}

// Loads returns the roster in its original order.
func (r *Roster) Loads() []models.TeacherLoad {
	return append([]models.TeacherLoad(nil), r.loads...)
}

// Teacher looks up a teacher's load.
func (r *Roster) Teacher(teacherID string) (models.TeacherLoad, bool) {
	i, ok := r.byID[teacherID]
	if !ok {
		return models.TeacherLoad{}, false
	}
	return r.loads[i], true
}

// Mapping exposes the subject lookup table.
func (r *Roster) Mapping() SubjectMapping {
	return r.mapping
}

// WorksOn reports whether the teacher works on day. A load without working days works
// every day of the structure.
func WorksOn(load models.TeacherLoad, day string) bool {
	if len(load.WorkingDays) == 0 {
		return true
	}
	canonical, _ := NormalizeDay(day)
	for _, d := range load.WorkingDays {
		if d == canonical {
			return true
		}
	}
	return false
}

// AssignedPeriods counts committed entries of a teacher. It is always derived.
func AssignedPeriods(entries []models.TimetableEntry, teacherID string) int {
	count := 0
	for _, e := range entries {
		if e.TeacherID == teacherID {
			count++
		}
	}
	return count
}

// LoadSummaries computes assigned, remaining and per-day counts for every roster entry.
func LoadSummaries(loads []models.TeacherLoad, entries []models.TimetableEntry) []models.TeacherLoadSummary {
	perTeacher := make(map[string]map[string]int)
	for _, e := range entries {
		if perTeacher[e.TeacherID] == nil {
			perTeacher[e.TeacherID] = make(map[string]int)
		}
		perTeacher[e.TeacherID][e.Day]++
	}

	out := make([]models.TeacherLoadSummary, 0, len(loads))
	for _, load := range loads {
		perDay := perTeacher[load.TeacherID]
		if perDay == nil {
			perDay = map[string]int{}
		}
		assigned := 0
		for _, n := range perDay {
			assigned += n
		}
		out = append(out, models.TeacherLoadSummary{
			TeacherID:       load.TeacherID,
			TeacherName:     load.TeacherName,
			PeriodsPerWeek:  load.PeriodsPerWeek,
			AssignedPeriods: assigned,
			Remaining:       load.PeriodsPerWeek - assigned,
			PerDay:          perDay,
			Overloaded:      assigned > load.PeriodsPerWeek,
		})
	}
	return out
}

// WithAssigned returns loads with AssignedPeriods recomputed from entries.
func WithAssigned(loads []models.TeacherLoad, entries []models.TimetableEntry) []models.TeacherLoad {
	out := make([]models.TeacherLoad, 0, len(loads))
	for _, load := range loads {
		load.AssignedPeriods = AssignedPeriods(entries, load.TeacherID)
		out = append(out, load)
	}
	return out
}

func normalizeDays(days []string) []string {
	out := make([]string, 0, len(days))
	seen := make(map[string]bool, len(days))
	for _, raw := range days {
		day, ok := NormalizeDay(raw)
		if !ok || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	sort.SliceStable(out, func(i, j int) bool { return DayOffset(out[i]) < DayOffset(out[j]) })
	return out
}
