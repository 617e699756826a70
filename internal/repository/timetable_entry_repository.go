package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
)

// ErrEntryInOtherWeek is returned when an entry id is already stored under another week.
var ErrEntryInOtherWeek = errors.New("timetable entry id belongs to another week")

const timetableEntryColumns = `id, week_start, day, period_number, subject_id, subject_name, teacher_id, teacher_name,
batch_id, batch_name, facility_id, facility_name, is_substituted, substitute_teacher_id, substitute_teacher_name`

// TimetableEntryRepository persists committed timetable entries keyed by week.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository builds the repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByWeek returns the entries of one week ordered by slot.
func (r *TimetableEntryRepository) ListByWeek(ctx context.Context, week string) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + `
FROM timetable_entries WHERE week_start = $1 ORDER BY day ASC, period_number ASC, batch_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, week); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListOutsideStructure returns stored entries of any week that fall outside a grid of
// the given working days and periods per day.
func (r *TimetableEntryRepository) ListOutsideStructure(ctx context.Context, workingDays []string, periodsPerDay int) ([]models.TimetableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + `
FROM timetable_entries
WHERE day <> ALL($1) OR period_number < 1 OR period_number > $2
ORDER BY week_start ASC, day ASC, period_number ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(workingDays), periodsPerDay); err != nil {
		return nil, fmt.Errorf("list entries outside structure: %w", err)
	}
	return entries, nil
}

// ApplyChanges writes the removed/added sets of each change. Removals run first so an
// entry replaced under the same id is rewritten rather than duplicated.
func (r *TimetableEntryRepository) ApplyChanges(ctx context.Context, exec sqlx.ExtContext, changes []scheduling.Change) error {
	target := r.exec(exec)
	for _, change := range changes {
		if len(change.Removed) > 0 {
			ids := make([]string, 0, len(change.Removed))
			for _, e := range change.Removed {
				ids = append(ids, e.ID)
			}
			const del = `DELETE FROM timetable_entries WHERE week_start = $1 AND id = ANY($2)`
			if _, err := target.ExecContext(ctx, del, change.Week, pq.Array(ids)); err != nil {
				return fmt.Errorf("delete timetable entries: %w", err)
			}
		}
		for i := range change.Added {
			entry := change.Added[i]
			entry.WeekStart = change.Week
			if err := r.insert(ctx, target, &entry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *TimetableEntryRepository) insert(ctx context.Context, target sqlx.ExtContext, entry *models.TimetableEntry) error {
	const query = `
INSERT INTO timetable_entries (id, week_start, day, period_number, subject_id, subject_name, teacher_id, teacher_name,
	batch_id, batch_name, facility_id, facility_name, is_substituted, substitute_teacher_id, substitute_teacher_name)
VALUES (:id, :week_start, :day, :period_number, :subject_id, :subject_name, :teacher_id, :teacher_name,
	:batch_id, :batch_name, :facility_id, :facility_name, :is_substituted, :substitute_teacher_id, :substitute_teacher_name)
ON CONFLICT (id) DO UPDATE
SET day = EXCLUDED.day,
    period_number = EXCLUDED.period_number,
    subject_id = EXCLUDED.subject_id,
    subject_name = EXCLUDED.subject_name,
    teacher_id = EXCLUDED.teacher_id,
    teacher_name = EXCLUDED.teacher_name,
    batch_id = EXCLUDED.batch_id,
    batch_name = EXCLUDED.batch_name,
    facility_id = EXCLUDED.facility_id,
    facility_name = EXCLUDED.facility_name,
    is_substituted = EXCLUDED.is_substituted,
    substitute_teacher_id = EXCLUDED.substitute_teacher_id,
    substitute_teacher_name = EXCLUDED.substitute_teacher_name
WHERE timetable_entries.week_start = EXCLUDED.week_start`
	result, err := sqlx.NamedExecContext(ctx, target, query, entry)
	if err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("insert timetable entry %s: %w", entry.ID, ErrEntryInOtherWeek)
	}
	return nil
}
