package scheduling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	DefaultStartClock    = "08:00"
	DefaultPeriodMinutes = 45
	MaxBreaks            = 4
	MaxPeriodsPerDay     = 16
)

const minutesPerDay = 24 * 60

// GenerateTimeMapping computes start/end clock times for periods 1..periodsPerDay.
// A break with AfterPeriod p pushes the start of period p+1 by its duration. A day that
// would run past midnight is rejected.
func GenerateTimeMapping(periodsPerDay int, breaks []models.Break, startClock string, periodMinutes int) (map[int]models.PeriodTime, error) {
	if periodsPerDay < 1 {
		return nil, configErr("periodsPerDay", "must be at least 1")
	}
	if strings.TrimSpace(startClock) == "" {
		startClock = DefaultStartClock
	}
	if periodMinutes <= 0 {
		periodMinutes = DefaultPeriodMinutes
	}
	clock, err := parseClock(startClock)
	if err != nil {
		return nil, configErr("startClock", "%v", err)
	}

	pauses := make(map[int]int, len(breaks))
	for _, b := range sortedBreaks(breaks) {
		pauses[b.AfterPeriod] += b.DurationMinutes
	}

	mapping := make(map[int]models.PeriodTime, periodsPerDay)
	for p := 1; p <= periodsPerDay; p++ {
		start := clock
		end := start + periodMinutes
		if end >= minutesPerDay {
			return nil, configErr("periodMinutes", "period %d starting at %s would end after midnight", p, formatClock(start))
		}
		mapping[p] = models.PeriodTime{StartTime: formatClock(start), EndTime: formatClock(end)}
		clock = end + pauses[p]
	}
	return mapping, nil
}

// NormalizeStructure canonicalises day names, fills generator defaults, orders breaks and
// validates the result.
func NormalizeStructure(s models.PeriodStructure) (models.PeriodStructure, error) {
	out := s
	out.WorkingDays = make([]string, 0, len(s.WorkingDays))
	seen := make(map[string]bool, len(s.WorkingDays))
	for _, raw := range s.WorkingDays {
		day, ok := NormalizeDay(raw)
		if !ok {
			return models.PeriodStructure{}, configErr("workingDays", "unknown day %q", raw)
		}
		if seen[day] {
			return models.PeriodStructure{}, configErr("workingDays", "duplicate day %s", day)
		}
		seen[day] = true
		out.WorkingDays = append(out.WorkingDays, day)
	}
	if strings.TrimSpace(out.StartClock) == "" {
		out.StartClock = DefaultStartClock
	}
	if out.PeriodMinutes <= 0 {
		out.PeriodMinutes = DefaultPeriodMinutes
	}
	out.Breaks = sortedBreaks(s.Breaks)
	if !out.UseTimeMapping {
		out.TimeMapping = nil
	}
	if err := ValidateStructure(out); err != nil {
		return models.PeriodStructure{}, err
	}
	return out, nil
}

// ValidateStructure checks structural invariants. It never clamps values.
func ValidateStructure(s models.PeriodStructure) error {
	if len(s.WorkingDays) == 0 {
		return configErr("workingDays", "at least one working day is required")
	}
	seen := make(map[string]bool, len(s.WorkingDays))
	for _, raw := range s.WorkingDays {
		day, ok := NormalizeDay(raw)
		if !ok {
			return configErr("workingDays", "unknown day %q", raw)
		}
		if seen[day] {
			return configErr("workingDays", "duplicate day %s", day)
		}
		seen[day] = true
	}
	if s.PeriodsPerDay < 1 || s.PeriodsPerDay > MaxPeriodsPerDay {
		return configErr("periodsPerDay", "must be between 1 and %d", MaxPeriodsPerDay)
	}
	if err := validateBreaks(s.Breaks, s.PeriodsPerDay); err != nil {
		return err
	}
	if s.StartClock != "" {
		if _, err := parseClock(s.StartClock); err != nil {
			return configErr("startClock", "%v", err)
		}
	}
	if s.PeriodMinutes < 0 {
		return configErr("periodMinutes", "must be positive")
	}
	if !s.UseTimeMapping {
		if _, err := GenerateTimeMapping(s.PeriodsPerDay, s.Breaks, s.StartClock, s.PeriodMinutes); err != nil {
			return err
		}
	}
	if s.UseTimeMapping {
		previousEnd := -1
		for p := 1; p <= s.PeriodsPerDay; p++ {
			slot, ok := s.TimeMapping[p]
			if !ok {
				return configErr("timeMapping", "period %d has no time", p)
			}
			start, err := parseClock(slot.StartTime)
			if err != nil {
				return configErr("timeMapping", "period %d start: %v", p, err)
			}
			end, err := parseClock(slot.EndTime)
			if err != nil {
				return configErr("timeMapping", "period %d end: %v", p, err)
			}
			if start >= end {
				return configErr("timeMapping", "period %d must end after it starts", p)
			}
			if start < previousEnd {
				return configErr("timeMapping", "period %d starts before period %d ends", p, p-1)
			}
			previousEnd = end
		}
	}
	return nil
}

func validateBreaks(breaks []models.Break, periodsPerDay int) error {
	if len(breaks) > MaxBreaks {
		return configErr("breaks", "at most %d breaks are allowed", MaxBreaks)
	}
	used := make(map[int]bool, len(breaks))
	for _, b := range breaks {
		if b.AfterPeriod < 1 || b.AfterPeriod > periodsPerDay-1 {
			return configErr("breaks", "break %q must follow a period between 1 and %d", b.Name, periodsPerDay-1)
		}
		if used[b.AfterPeriod] {
			return configErr("breaks", "more than one break after period %d", b.AfterPeriod)
		}
		if b.DurationMinutes <= 0 {
			return configErr("breaks", "break %q needs a positive duration", b.Name)
		}
		used[b.AfterPeriod] = true
	}
	return nil
}

// AddBreak appends a break. A zero AfterPeriod takes the first unused slot.
func AddBreak(s models.PeriodStructure, b models.Break) (models.PeriodStructure, models.Break, error) {
	if len(s.Breaks) >= MaxBreaks {
		return s, models.Break{}, configErr("breaks", "at most %d breaks are allowed", MaxBreaks)
	}
	used := make(map[int]bool, len(s.Breaks))
	for _, existing := range s.Breaks {
		used[existing.AfterPeriod] = true
	}
	if b.AfterPeriod == 0 {
		for p := 1; p < s.PeriodsPerDay; p++ {
			if !used[p] {
				b.AfterPeriod = p
				break
			}
		}
		if b.AfterPeriod == 0 {
			return s, models.Break{}, configErr("breaks", "no free period slot for another break")
		}
	}
	if b.DurationMinutes == 0 {
		b.DurationMinutes = 15
	}
	if strings.TrimSpace(b.Name) == "" {
		b.Name = "Break"
	}
	if b.ID == "" {
		b.ID = fmt.Sprintf("break-after-%d", b.AfterPeriod)
	}

	out := s
	out.Breaks = append(append([]models.Break(nil), s.Breaks...), b)
	out.Breaks = sortedBreaks(out.Breaks)
	if err := validateBreaks(out.Breaks, out.PeriodsPerDay); err != nil {
		return s, models.Break{}, err
	}
	return out, b, nil
}

// RemoveBreak drops the break with the given id.
func RemoveBreak(s models.PeriodStructure, id string) (models.PeriodStructure, error) {
	out := s
	out.Breaks = make([]models.Break, 0, len(s.Breaks))
	found := false
	for _, b := range s.Breaks {
		if b.ID == id {
			found = true
			continue
		}
		out.Breaks = append(out.Breaks, b)
	}
	if !found {
		return s, configErr("breaks", "break %s not found", id)
	}
	return out, nil
}

// ResolvedTimeMapping returns the explicit mapping when enabled, else a generated one.
func ResolvedTimeMapping(s models.PeriodStructure) (map[int]models.PeriodTime, error) {
	if s.UseTimeMapping {
		out := make(map[int]models.PeriodTime, len(s.TimeMapping))
		for k, v := range s.TimeMapping {
			out[k] = v
		}
		return out, nil
	}
	return GenerateTimeMapping(s.PeriodsPerDay, s.Breaks, s.StartClock, s.PeriodMinutes)
}

// OrphanedEntries lists entries that would fall outside structure s.
func OrphanedEntries(s models.PeriodStructure, entries []models.TimetableEntry) []models.TimetableEntry {
	days := make(map[string]bool, len(s.WorkingDays))
	for _, raw := range s.WorkingDays {
		if day, ok := NormalizeDay(raw); ok {
			days[day] = true
		}
	}
	var orphans []models.TimetableEntry
	for _, e := range entries {
		day, _ := NormalizeDay(e.Day)
		if !days[day] || e.PeriodNumber < 1 || e.PeriodNumber > s.PeriodsPerDay {
			orphans = append(orphans, e)
		}
	}
	return orphans
}

func sortedBreaks(breaks []models.Break) []models.Break {
	out := append([]models.Break(nil), breaks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AfterPeriod < out[j].AfterPeriod
	})
	return out
}

func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q must be HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("clock %q has an invalid hour", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q has an invalid minute", raw)
	}
	return hour*60 + minute, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
