package scheduling

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// RejectReason names the rule that refused a candidate placement.
type RejectReason string

const (
	ReasonTeacherClash      RejectReason = "teacher_clash"
	ReasonBatchClash        RejectReason = "batch_clash"
	ReasonHoliday           RejectReason = "holiday"
	ReasonUnavailableDay    RejectReason = "unavailable_day"
	ReasonUnavailablePeriod RejectReason = "unavailable_period"
	ReasonOutsideWindow     RejectReason = "outside_time_window"
	ReasonDailyLimit        RejectReason = "daily_limit"
	ReasonNotWorkingDay     RejectReason = "not_working_day"
	ReasonPeriodOutOfRange  RejectReason = "period_out_of_range"
	ReasonTeacherOffDay     RejectReason = "teacher_not_working"
	ReasonUnknownTeacher    RejectReason = "unknown_teacher"
	ReasonUnmappedPair      RejectReason = "unmapped_pair"
	ReasonUnknownFacility   RejectReason = "unknown_facility"
	ReasonInvalidSubstitute RejectReason = "invalid_substitute"
)

// Rejection reports why a candidate could not be committed. It is an ordinary value:
// the caller lets the user pick again.
type Rejection struct {
	Reason      RejectReason            `json:"reason"`
	Message     string                  `json:"message"`
	Conflicting []models.TimetableEntry `json:"conflicting,omitempty"`
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	return r.Message
}

// IsClash reports whether the rejection is a double-booking.
func (r *Rejection) IsClash() bool {
	return r != nil && (r.Reason == ReasonTeacherClash || r.Reason == ReasonBatchClash)
}

func reject(reason RejectReason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ConfigError reports an inconsistent period structure or constraint change.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrEntryNotFound is returned when an operation references an unknown entry id.
var ErrEntryNotFound = errors.New("timetable entry not found")

// ErrUnknownWeek is returned when a week has not been opened in the session.
var ErrUnknownWeek = errors.New("week not opened")

// ErrDuplicateEntryID is returned when a change would store two entries under one id.
var ErrDuplicateEntryID = errors.New("duplicate timetable entry id")

// ErrEntryIDRequired is returned when a change adds an entry without an id.
var ErrEntryIDRequired = errors.New("timetable entry id is required")

// OrphanedEntriesError is returned when a structure change would strand committed
// entries outside the new grid.
type OrphanedEntriesError struct {
	Entries []models.TimetableEntry
}

// Error implements the error interface.
func (e *OrphanedEntriesError) Error() string {
	return fmt.Sprintf("structure change would orphan %d entries", len(e.Entries))
}
