package scheduling

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// CopyOptions controls Copy Week.
type CopyOptions struct {
	SkipHolidays      bool `json:"skipHolidays"`
	SkipExamPeriods   bool `json:"skipExamPeriods"`
	OverwriteExisting bool `json:"overwriteExisting"`
}

// SkipReason explains why a source entry was not copied into a target week.
type SkipReason string

const (
	SkipHoliday    SkipReason = "holiday"
	SkipExamPeriod SkipReason = "exam_period"
	SkipOccupied   SkipReason = "occupied"
	SkipRejected   SkipReason = "rejected"
)

// SkippedEntry is one line of the skip report.
type SkippedEntry struct {
	WeekStart string                `json:"weekStart"`
	Date      string                `json:"date"`
	Source    models.TimetableEntry `json:"source"`
	Reason    SkipReason            `json:"reason"`
	Message   string                `json:"message"`
}

// WeekCopy lists what a target week receives and what it loses.
type WeekCopy struct {
	WeekStart string                  `json:"weekStart"`
	Staged    []models.TimetableEntry `json:"staged"`
	Replaced  []models.TimetableEntry `json:"replaced"`
}

// CopyResult is the outcome of Copy Week across all targets.
type CopyResult struct {
	Weeks   []WeekCopy     `json:"weeks"`
	Skipped []SkippedEntry `json:"skipped"`
}

// StagedCount returns the number of entries staged across all weeks.
func (r CopyResult) StagedCount() int {
	n := 0
	for _, w := range r.Weeks {
		n += len(w.Staged)
	}
	return n
}

// CopyWeek replicates source into each target store. Targets are not modified: the
// result describes the entries to add and replace so the caller can commit them as one
// action. Holiday and exam skips happen before occupancy so entries on those dates in
// the target are never touched.
func CopyWeek(v *Validator, source []models.TimetableEntry, targets []*EntryStore, opts CopyOptions) CopyResult {
	result := CopyResult{
		Weeks:   make([]WeekCopy, 0, len(targets)),
		Skipped: make([]SkippedEntry, 0),
	}

	for _, target := range targets {
		week := target.WeekStart()
		weekStart, err := ParseWeek(week)
		if err != nil {
			continue
		}
		working := target.Without()
		staged := make(map[string]bool)
		copyResult := WeekCopy{
			WeekStart: week,
			Staged:    make([]models.TimetableEntry, 0, len(source)),
			Replaced:  make([]models.TimetableEntry, 0),
		}

		skip := func(e models.TimetableEntry, date time.Time, reason SkipReason, message string) {
			result.Skipped = append(result.Skipped, SkippedEntry{
				WeekStart: week,
				Date:      date.Format(DateLayout),
				Source:    e.Clone(),
				Reason:    reason,
				Message:   message,
			})
		}

		for _, src := range source {
			date, ok := DateFor(weekStart, src.Day)
			if !ok {
				skip(src, weekStart, SkipRejected, "unknown day "+src.Day)
				continue
			}
			if opts.SkipHolidays {
				if h, holiday := v.calendar.HolidayOn(date); holiday {
					skip(src, date, SkipHoliday, h.Name)
					continue
				}
			}
			if opts.SkipExamPeriods {
				if exam, inExam := v.calendar.ExamPeriodOn(date); inExam {
					skip(src, date, SkipExamPeriod, exam.Name)
					continue
				}
			}

			candidateStore := working
			occupant, occupied := working.Get(src.Day, src.PeriodNumber, SlotFilter{BatchID: src.BatchID})
			if occupied {
				if !opts.OverwriteExisting || staged[occupant.ID] {
					skip(src, date, SkipOccupied, "cell already holds "+displayName(occupant.SubjectName, occupant.SubjectID))
					continue
				}
				candidateStore = working.Without(occupant.ID)
			}

			entry := src.Clone()
			entry.ID = v.newID()
			entry.WeekStart = week
			entry.IsSubstituted = false
			entry.SubstituteTeacherID = nil
			entry.SubstituteTeacherName = nil

			if _, err := v.CheckResolved(candidateStore, entry, CheckOptions{IgnoreHolidays: true}); err != nil {
				skip(src, date, SkipRejected, err.Error())
				continue
			}

			if occupied {
				working.Remove(occupant.ID)
				copyResult.Replaced = append(copyResult.Replaced, occupant)
			}
			working.Add(entry)
			staged[entry.ID] = true
			copyResult.Staged = append(copyResult.Staged, entry)
		}
		result.Weeks = append(result.Weeks, copyResult)
	}
	return result
}
