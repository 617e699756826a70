package scheduling

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Calendar answers holiday and exam-period lookups by calendar date.
type Calendar struct {
	holidays map[string]models.Holiday
	exams    []models.ExamPeriod
}

// NewCalendar indexes holidays by date. Time-of-day and zone are ignored.
func NewCalendar(holidays []models.Holiday, exams []models.ExamPeriod) *Calendar {
	c := &Calendar{holidays: make(map[string]models.Holiday, len(holidays))}
	for _, h := range holidays {
		key := dateKey(h.Date)
		if _, exists := c.holidays[key]; !exists {
			c.holidays[key] = h
		}
	}
	c.exams = append(c.exams, exams...)
	return c
}

// IsHoliday reports whether date is a holiday.
func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.HolidayOn(date)
	return ok
}

// HolidayOn returns the holiday on date.
func (c *Calendar) HolidayOn(date time.Time) (models.Holiday, bool) {
	if c == nil {
		return models.Holiday{}, false
	}
	h, ok := c.holidays[dateKey(date)]
	return h, ok
}

// ExamPeriodOn returns the exam period covering date.
func (c *Calendar) ExamPeriodOn(date time.Time) (models.ExamPeriod, bool) {
	if c == nil {
		return models.ExamPeriod{}, false
	}
	key := dateKey(date)
	for _, e := range c.exams {
		if key >= dateKey(e.StartDate) && key <= dateKey(e.EndDate) {
			return e, true
		}
	}
	return models.ExamPeriod{}, false
}

// InExamPeriod reports whether date falls inside any exam period.
func (c *Calendar) InExamPeriod(date time.Time) bool {
	_, ok := c.ExamPeriodOn(date)
	return ok
}

func dateKey(t time.Time) string {
	return t.Format(DateLayout)
}
