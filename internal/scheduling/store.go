package scheduling

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SlotFilter narrows a slot lookup to one teacher or one batch projection.
type SlotFilter struct {
	TeacherID string
	BatchID   string
}

// EntryStore holds the entries of one week. It is plain storage: it accepts clashing
// entries so imports stay representable, and leaves screening to the Validator.
type EntryStore struct {
	weekStart string
	entries   []models.TimetableEntry
	index     map[string]int
}

// NewEntryStore creates an empty store for the week starting at weekStart (YYYY-MM-DD).
func NewEntryStore(weekStart string, entries ...models.TimetableEntry) *EntryStore {
	s := &EntryStore{weekStart: weekStart, index: make(map[string]int)}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// WeekStart returns the Monday date this store belongs to.
func (s *EntryStore) WeekStart() string {
	return s.weekStart
}

// Len returns the number of stored entries.
func (s *EntryStore) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries in insertion order.
func (s *EntryStore) Entries() []models.TimetableEntry {
	out := make([]models.TimetableEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	return out
}

// Find returns the entry with the given id.
func (s *EntryStore) Find(id string) (models.TimetableEntry, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.TimetableEntry{}, false
	}
	return s.entries[i].Clone(), true
}

// Get returns the first entry at (day, period) that matches the filter. An empty
// filter matches any entry at the slot.
func (s *EntryStore) Get(day string, period int, filter SlotFilter) (models.TimetableEntry, bool) {
	for _, e := range s.AtSlot(day, period) {
		if filter.TeacherID != "" && e.TeacherID != filter.TeacherID {
			continue
		}
		if filter.BatchID != "" && e.BatchID != filter.BatchID {
			continue
		}
		return e, true
	}
	return models.TimetableEntry{}, false
}

// AtSlot returns every entry placed at (day, period).
func (s *EntryStore) AtSlot(day string, period int) []models.TimetableEntry {
	canonical, _ := NormalizeDay(day)
	var out []models.TimetableEntry
	for _, e := range s.entries {
		if e.PeriodNumber == period && e.Day == canonical {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Add stores the entry, stamping the store's week on it. An entry whose id already
// exists replaces the stored one in place.
func (s *EntryStore) Add(entry models.TimetableEntry) {
	e := entry.Clone()
	if day, ok := NormalizeDay(e.Day); ok {
		e.Day = day
	}
	e.WeekStart = s.weekStart
	if i, ok := s.index[e.ID]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Remove deletes the entry and returns it.
func (s *EntryStore) Remove(id string) (models.TimetableEntry, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.TimetableEntry{}, false
	}
	removed := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].ID] = j
	}
	return removed, true
}

// Replace swaps the entry with the given id for next, keeping its position. It refuses
// when next carries a different id that is already stored, so ids stay unique.
func (s *EntryStore) Replace(id string, next models.TimetableEntry) (models.TimetableEntry, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.TimetableEntry{}, false
	}
	if next.ID != id {
		if _, taken := s.index[next.ID]; taken {
			return models.TimetableEntry{}, false
		}
	}
	previous := s.entries[i]
	e := next.Clone()
	if day, ok := NormalizeDay(e.Day); ok {
		e.Day = day
	}
	e.WeekStart = s.weekStart
	delete(s.index, id)
	s.entries[i] = e
	s.index[e.ID] = i
	return previous, true
}

// Without returns a copy of the store excluding the given ids.
func (s *EntryStore) Without(ids ...string) *EntryStore {
	skip := make(map[string]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	out := NewEntryStore(s.weekStart)
	for _, e := range s.entries {
		if !skip[e.ID] {
			out.Add(e)
		}
	}
	return out
}

// CountForTeacher returns how many entries the teacher holds in the week, and on the
// given day when day is non-empty.
func (s *EntryStore) CountForTeacher(teacherID, day string) int {
	canonical, _ := NormalizeDay(day)
	count := 0
	for _, e := range s.entries {
		if e.TeacherID != teacherID {
			continue
		}
		if canonical != "" && e.Day != canonical {
			continue
		}
		count++
	}
	return count
}

// TeacherPeriods returns the occupied periods of a teacher on a day.
func (s *EntryStore) TeacherPeriods(teacherID, day string) map[int]bool {
	canonical, _ := NormalizeDay(day)
	out := make(map[int]bool)
	for _, e := range s.entries {
		if e.TeacherID == teacherID && e.Day == canonical {
			out[e.PeriodNumber] = true
		}
	}
	return out
}
