package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type teacherLoadRow struct {
	TeacherID        string         `db:"teacher_id"`
	TeacherName      string         `db:"teacher_name"`
	Subjects         pq.StringArray `db:"subjects"`
	WorkingDays      pq.StringArray `db:"working_days"`
	PeriodsPerWeek   int            `db:"periods_per_week"`
	AllowedBatches   types.JSONText `db:"allowed_batches"`
	AvoidFirstPeriod bool           `db:"avoid_first_period"`
	AvoidLastPeriod  bool           `db:"avoid_last_period"`
}

func (r teacherLoadRow) toModel() (models.TeacherLoad, error) {
	load := models.TeacherLoad{
		TeacherID:        r.TeacherID,
		TeacherName:      r.TeacherName,
		Subjects:         []string(r.Subjects),
		WorkingDays:      []string(r.WorkingDays),
		PeriodsPerWeek:   r.PeriodsPerWeek,
		AvoidFirstPeriod: r.AvoidFirstPeriod,
		AvoidLastPeriod:  r.AvoidLastPeriod,
	}
	if len(r.AllowedBatches) > 0 {
		if err := json.Unmarshal(r.AllowedBatches, &load.AllowedBatches); err != nil {
			return models.TeacherLoad{}, fmt.Errorf("decode allowed batches for %s: %w", r.TeacherID, err)
		}
	}
	return load, nil
}

// TeacherLoadRepository reads the teacher roster. Rows keep their insertion order
// because subject resolution depends on it.
type TeacherLoadRepository struct {
	db *sqlx.DB
}

// NewTeacherLoadRepository builds the repository.
func NewTeacherLoadRepository(db *sqlx.DB) *TeacherLoadRepository {
	return &TeacherLoadRepository{db: db}
}

// List returns all teacher loads in roster order.
func (r *TeacherLoadRepository) List(ctx context.Context) ([]models.TeacherLoad, error) {
	const query = `SELECT teacher_id, teacher_name, subjects, working_days, periods_per_week, allowed_batches,
avoid_first_period, avoid_last_period FROM teacher_loads ORDER BY roster_position ASC, teacher_id ASC`
	var rows []teacherLoadRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list teacher loads: %w", err)
	}
	loads := make([]models.TeacherLoad, 0, len(rows))
	for _, row := range rows {
		load, err := row.toModel()
		if err != nil {
			return nil, err
		}
		loads = append(loads, load)
	}
	return loads, nil
}
