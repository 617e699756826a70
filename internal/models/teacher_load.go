package models

// AllowedBatch is one fixed teacher → batch → subject mapping row.
type AllowedBatch struct {
	BatchID     string `json:"batchId"`
	BatchName   string `json:"batchName"`
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
}

// TeacherLoad is the read-only roster record of a teacher's weekly quota and mapping.
// AssignedPeriods is derived from committed entries and is never read back as truth.
type TeacherLoad struct {
	TeacherID        string         `json:"teacherId"`
	TeacherName      string         `json:"teacherName"`
	Subjects         []string       `json:"subjects"`
	WorkingDays      []string       `json:"workingDays"`
	PeriodsPerWeek   int            `json:"periodsPerWeek"`
	AssignedPeriods  int            `json:"assignedPeriods"`
	AllowedBatches   []AllowedBatch `json:"allowedBatches"`
	AvoidFirstPeriod bool           `json:"avoidFirstPeriod"`
	AvoidLastPeriod  bool           `json:"avoidLastPeriod"`
}

// PreferenceLevel states whether a teacher constraint blocks or only warns.
type PreferenceLevel string

const (
	PreferenceHard PreferenceLevel = "hard"
	PreferenceSoft PreferenceLevel = "soft"
)

// TimeWindow is an inclusive range of allowed periods.
type TimeWindow struct {
	StartPeriod int `json:"startPeriod"`
	EndPeriod   int `json:"endPeriod"`
}

// TeacherConstraint captures availability and workload rules for one teacher.
type TeacherConstraint struct {
	TeacherID             string          `json:"teacherId"`
	MaxPeriodsPerDay      int             `json:"maxPeriodsPerDay"`
	MaxConsecutivePeriods int             `json:"maxConsecutivePeriods"`
	UnavailableDays       []string        `json:"unavailableDays"`
	UnavailablePeriods    []int           `json:"unavailablePeriods"`
	TimeWindow            *TimeWindow     `json:"timeWindow,omitempty"`
	PreferenceLevel       PreferenceLevel `json:"preferenceLevel"`
}

// TeacherLoadSummary reports computed workload for a teacher within one week.
type TeacherLoadSummary struct {
	TeacherID       string         `json:"teacherId"`
	TeacherName     string         `json:"teacherName"`
	PeriodsPerWeek  int            `json:"periodsPerWeek"`
	AssignedPeriods int            `json:"assignedPeriods"`
	Remaining       int            `json:"remaining"`
	PerDay          map[string]int `json:"perDay"`
	Overloaded      bool           `json:"overloaded"`
}
