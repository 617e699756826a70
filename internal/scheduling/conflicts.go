package scheduling

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type clashKey struct {
	owner  string
	day    string
	period int
}

type clashGroup struct {
	key     clashKey
	entries []models.TimetableEntry
}

// DetectConflicts reports teacher clashes, then batch clashes, then overloads. Within
// each group conflicts follow the first occurrence in entries (overloads follow loads).
func DetectConflicts(entries []models.TimetableEntry, loads []models.TeacherLoad) []models.Conflict {
	conflicts := make([]models.Conflict, 0)

	for _, g := range groupClashes(entries, func(e models.TimetableEntry) string { return e.TeacherID }) {
		first := g.entries[0]
		conflicts = append(conflicts, models.Conflict{
			Type:         models.ConflictTeacherClash,
			Severity:     models.SeverityError,
			Message:      fmt.Sprintf("%s is booked %d times on %s period %d", displayName(first.TeacherName, first.TeacherID), len(g.entries), g.key.day, g.key.period),
			Day:          g.key.day,
			PeriodNumber: g.key.period,
			TeacherID:    g.key.owner,
			EntryIDs:     entryIDs(g.entries),
			Navigable:    true,
		})
	}

	for _, g := range groupClashes(entries, func(e models.TimetableEntry) string { return e.BatchID }) {
		first := g.entries[0]
		conflicts = append(conflicts, models.Conflict{
			Type:         models.ConflictBatchClash,
			Severity:     models.SeverityError,
			Message:      fmt.Sprintf("%s has %d classes on %s period %d", displayName(first.BatchName, first.BatchID), len(g.entries), g.key.day, g.key.period),
			Day:          g.key.day,
			PeriodNumber: g.key.period,
			BatchID:      g.key.owner,
			EntryIDs:     entryIDs(g.entries),
			Navigable:    true,
		})
	}

	counts := make(map[string]int, len(loads))
	for _, e := range entries {
		counts[e.TeacherID]++
	}
	for _, load := range loads {
		assigned := counts[load.TeacherID]
		if assigned <= load.PeriodsPerWeek {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Type:      models.ConflictOverload,
			Severity:  models.SeverityWarning,
			Message:   fmt.Sprintf("%s has %d periods against a quota of %d", displayName(load.TeacherName, load.TeacherID), assigned, load.PeriodsPerWeek),
			TeacherID: load.TeacherID,
			Navigable: false,
		})
	}
	return conflicts
}

func groupClashes(entries []models.TimetableEntry, owner func(models.TimetableEntry) string) []clashGroup {
	order := make([]clashKey, 0)
	groups := make(map[clashKey][]models.TimetableEntry)
	for _, e := range entries {
		id := owner(e)
		if id == "" {
			continue
		}
		day, ok := NormalizeDay(e.Day)
		if !ok {
			day = e.Day
		}
		key := clashKey{owner: id, day: day, period: e.PeriodNumber}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	out := make([]clashGroup, 0)
	for _, key := range order {
		if len(groups[key]) > 1 {
			out = append(out, clashGroup{key: key, entries: groups[key]})
		}
	}
	return out
}

func entryIDs(entries []models.TimetableEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
