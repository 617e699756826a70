package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type teacherConstraintRow struct {
	TeacherID             string         `db:"teacher_id"`
	MaxPeriodsPerDay      int            `db:"max_periods_per_day"`
	MaxConsecutivePeriods int            `db:"max_consecutive_periods"`
	UnavailableDays       pq.StringArray `db:"unavailable_days"`
	UnavailablePeriods    pq.Int64Array  `db:"unavailable_periods"`
	WindowStart           sql.NullInt64  `db:"window_start"`
	WindowEnd             sql.NullInt64  `db:"window_end"`
	PreferenceLevel       string         `db:"preference_level"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func (r teacherConstraintRow) toModel() models.TeacherConstraint {
	c := models.TeacherConstraint{
		TeacherID:             r.TeacherID,
		MaxPeriodsPerDay:      r.MaxPeriodsPerDay,
		MaxConsecutivePeriods: r.MaxConsecutivePeriods,
		UnavailableDays:       []string(r.UnavailableDays),
		UnavailablePeriods:    make([]int, 0, len(r.UnavailablePeriods)),
		PreferenceLevel:       models.PreferenceLevel(r.PreferenceLevel),
	}
	if c.UnavailableDays == nil {
		c.UnavailableDays = []string{}
	}
	for _, p := range r.UnavailablePeriods {
		c.UnavailablePeriods = append(c.UnavailablePeriods, int(p))
	}
	if r.WindowStart.Valid && r.WindowEnd.Valid {
		c.TimeWindow = &models.TimeWindow{StartPeriod: int(r.WindowStart.Int64), EndPeriod: int(r.WindowEnd.Int64)}
	}
	return c
}

func constraintRowFrom(c models.TeacherConstraint) teacherConstraintRow {
	row := teacherConstraintRow{
		TeacherID:             c.TeacherID,
		MaxPeriodsPerDay:      c.MaxPeriodsPerDay,
		MaxConsecutivePeriods: c.MaxConsecutivePeriods,
		UnavailableDays:       pq.StringArray(c.UnavailableDays),
		UnavailablePeriods:    make(pq.Int64Array, 0, len(c.UnavailablePeriods)),
		PreferenceLevel:       string(c.PreferenceLevel),
		UpdatedAt:             time.Now().UTC(),
	}
	if row.UnavailableDays == nil {
		row.UnavailableDays = pq.StringArray{}
	}
	for _, p := range c.UnavailablePeriods {
		row.UnavailablePeriods = append(row.UnavailablePeriods, int64(p))
	}
	if c.TimeWindow != nil {
		row.WindowStart = sql.NullInt64{Int64: int64(c.TimeWindow.StartPeriod), Valid: true}
		row.WindowEnd = sql.NullInt64{Int64: int64(c.TimeWindow.EndPeriod), Valid: true}
	}
	return row
}

const teacherConstraintColumns = `teacher_id, max_periods_per_day, max_consecutive_periods, unavailable_days,
unavailable_periods, window_start, window_end, preference_level, updated_at`

// TeacherConstraintRepository persists per-teacher constraint overrides.
type TeacherConstraintRepository struct {
	db *sqlx.DB
}

// NewTeacherConstraintRepository constructs the repository.
func NewTeacherConstraintRepository(db *sqlx.DB) *TeacherConstraintRepository {
	return &TeacherConstraintRepository{db: db}
}

// List returns every stored override.
func (r *TeacherConstraintRepository) List(ctx context.Context) ([]models.TeacherConstraint, error) {
	query := `SELECT ` + teacherConstraintColumns + ` FROM teacher_constraints ORDER BY teacher_id ASC`
	var rows []teacherConstraintRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher constraints: %w", err)
	}
	out := make([]models.TeacherConstraint, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// GetByTeacher returns the stored override for a teacher. sql.ErrNoRows is returned
// unwrapped when none exists.
func (r *TeacherConstraintRepository) GetByTeacher(ctx context.Context, teacherID string) (*models.TeacherConstraint, error) {
	query := `SELECT ` + teacherConstraintColumns + ` FROM teacher_constraints WHERE teacher_id = $1`
	var row teacherConstraintRow
	if err := r.db.GetContext(ctx, &row, query, teacherID); err != nil {
		return nil, err
	}
	c := row.toModel()
	return &c, nil
}

// Upsert creates or updates a teacher override.
func (r *TeacherConstraintRepository) Upsert(ctx context.Context, c models.TeacherConstraint) error {
	const query = `INSERT INTO teacher_constraints (teacher_id, max_periods_per_day, max_consecutive_periods, unavailable_days,
	unavailable_periods, window_start, window_end, preference_level, updated_at)
VALUES (:teacher_id, :max_periods_per_day, :max_consecutive_periods, :unavailable_days,
	:unavailable_periods, :window_start, :window_end, :preference_level, :updated_at)
ON CONFLICT (teacher_id) DO UPDATE
SET max_periods_per_day = EXCLUDED.max_periods_per_day,
    max_consecutive_periods = EXCLUDED.max_consecutive_periods,
    unavailable_days = EXCLUDED.unavailable_days,
    unavailable_periods = EXCLUDED.unavailable_periods,
    window_start = EXCLUDED.window_start,
    window_end = EXCLUDED.window_end,
    preference_level = EXCLUDED.preference_level,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, constraintRowFrom(c)); err != nil {
		return fmt.Errorf("upsert teacher constraint: %w", err)
	}
	return nil
}

// Delete removes a teacher override. Missing rows are not an error.
func (r *TeacherConstraintRepository) Delete(ctx context.Context, teacherID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_constraints WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("delete teacher constraint: %w", err)
	}
	return nil
}
