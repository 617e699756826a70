package models

import "time"

// Weekday names used across the timetable. Input is accepted case-insensitively and
// normalised to these values.
const (
	Monday    = "Monday"
	Tuesday   = "Tuesday"
	Wednesday = "Wednesday"
	Thursday  = "Thursday"
	Friday    = "Friday"
	Saturday  = "Saturday"
	Sunday    = "Sunday"
)

// Break is a pause inserted after a teaching period.
type Break struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	AfterPeriod     int    `json:"afterPeriod"`
	DurationMinutes int    `json:"durationMinutes"`
}

// PeriodTime is the clock window of one period, formatted as HH:MM.
type PeriodTime struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// PeriodStructure defines the shape of a teaching week.
type PeriodStructure struct {
	WorkingDays    []string           `json:"workingDays"`
	PeriodsPerDay  int                `json:"periodsPerDay"`
	Breaks         []Break            `json:"breaks"`
	UseTimeMapping bool               `json:"useTimeMapping"`
	TimeMapping    map[int]PeriodTime `json:"timeMapping,omitempty"`
	StartClock     string             `json:"startClock,omitempty"`
	PeriodMinutes  int                `json:"periodMinutes,omitempty"`
}

// TimetableEntry is one scheduled (day, period, teacher, batch, subject) placement.
type TimetableEntry struct {
	ID                    string  `db:"id" json:"id"`
	WeekStart             string  `db:"week_start" json:"weekStart"`
	Day                   string  `db:"day" json:"day"`
	PeriodNumber          int     `db:"period_number" json:"periodNumber"`
	SubjectID             string  `db:"subject_id" json:"subjectId"`
	SubjectName           string  `db:"subject_name" json:"subjectName"`
	TeacherID             string  `db:"teacher_id" json:"teacherId"`
	TeacherName           string  `db:"teacher_name" json:"teacherName"`
	BatchID               string  `db:"batch_id" json:"batchId"`
	BatchName             string  `db:"batch_name" json:"batchName"`
	FacilityID            *string `db:"facility_id" json:"facilityId,omitempty"`
	FacilityName          *string `db:"facility_name" json:"facilityName,omitempty"`
	IsSubstituted         bool    `db:"is_substituted" json:"isSubstituted"`
	SubstituteTeacherID   *string `db:"substitute_teacher_id" json:"substituteTeacherId,omitempty"`
	SubstituteTeacherName *string `db:"substitute_teacher_name" json:"substituteTeacherName,omitempty"`
}

// Clone returns a deep copy so stored entries never alias caller memory.
func (e TimetableEntry) Clone() TimetableEntry {
	out := e
	out.FacilityID = cloneString(e.FacilityID)
	out.FacilityName = cloneString(e.FacilityName)
	out.SubstituteTeacherID = cloneString(e.SubstituteTeacherID)
	out.SubstituteTeacherName = cloneString(e.SubstituteTeacherName)
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// ConflictType classifies detected conflicts.
type ConflictType string

const (
	ConflictTeacherClash ConflictType = "teacher_clash"
	ConflictBatchClash   ConflictType = "batch_clash"
	ConflictOverload     ConflictType = "overload"
)

// ConflictSeverity distinguishes blocking-grade problems from advisories.
type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
)

// Conflict is a derived problem report over committed entries.
type Conflict struct {
	Type         ConflictType     `json:"type"`
	Severity     ConflictSeverity `json:"severity"`
	Message      string           `json:"message"`
	Day          string           `json:"day,omitempty"`
	PeriodNumber int              `json:"periodNumber,omitempty"`
	TeacherID    string           `json:"teacherId,omitempty"`
	BatchID      string           `json:"batchId,omitempty"`
	EntryIDs     []string         `json:"entryIds,omitempty"`
	Navigable    bool             `json:"navigable"`
}

// Holiday blocks every period on its date.
type Holiday struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	Name      string    `db:"name" json:"name"`
	Source    string    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExamPeriod is an inclusive date range reserved for examinations.
type ExamPeriod struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
}
