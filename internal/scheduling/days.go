package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DateLayout is the canonical calendar date format used for week keys.
const DateLayout = "2006-01-02"

var weekOrder = []string{
	models.Monday,
	models.Tuesday,
	models.Wednesday,
	models.Thursday,
	models.Friday,
	models.Saturday,
	models.Sunday,
}

var dayLookup = func() map[string]string {
	out := make(map[string]string, len(weekOrder)*2)
	for _, day := range weekOrder {
		out[strings.ToLower(day)] = day
		out[strings.ToLower(day[:3])] = day
	}
	return out
}()

// NormalizeDay maps user input such as "MONDAY" or "mon" to the canonical name.
func NormalizeDay(raw string) (string, bool) {
	day, ok := dayLookup[strings.ToLower(strings.TrimSpace(raw))]
	return day, ok
}

// DayOffset returns the Monday-based index of a day, or -1 when unknown.
func DayOffset(day string) int {
	canonical, ok := NormalizeDay(day)
	if !ok {
		return -1
	}
	for i, name := range weekOrder {
		if name == canonical {
			return i
		}
	}
	return -1
}

// WeekStartOf truncates t to the Monday of its ISO week in UTC.
func WeekStartOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	shift := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -shift)
}

// DateFor resolves the calendar date of day within the week starting at weekStart.
func DateFor(weekStart time.Time, day string) (time.Time, bool) {
	offset := DayOffset(day)
	if offset < 0 {
		return time.Time{}, false
	}
	return WeekStartOf(weekStart).AddDate(0, 0, offset), true
}

// WeekKey formats the week containing t as its Monday date.
func WeekKey(t time.Time) string {
	return WeekStartOf(t).Format(DateLayout)
}

// ParseWeek parses a YYYY-MM-DD date and snaps it to its Monday.
func ParseWeek(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q: %w", raw, err)
	}
	return WeekStartOf(t), nil
}
