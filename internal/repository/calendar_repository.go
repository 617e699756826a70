package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// HolidayFilter narrows holiday listings.
type HolidayFilter struct {
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// CalendarRepository persists holidays and exam periods.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func (r *CalendarRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListHolidays returns a page of holidays and the total count matching filter.
func (r *CalendarRepository) ListHolidays(ctx context.Context, filter HolidayFilter) ([]models.Holiday, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 366 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, date, name, source, created_at FROM holidays WHERE %s ORDER BY date ASC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list holidays: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM holidays WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count holidays: %w", err)
	}
	return holidays, total, nil
}

// AllHolidays returns every holiday, used to seed the scheduling calendar.
func (r *CalendarRepository) AllHolidays(ctx context.Context) ([]models.Holiday, error) {
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, `SELECT id, date, name, source, created_at FROM holidays ORDER BY date ASC`); err != nil {
		return nil, fmt.Errorf("list all holidays: %w", err)
	}
	return holidays, nil
}

// UpsertHoliday inserts a holiday or renames the existing one on the same date.
func (r *CalendarRepository) UpsertHoliday(ctx context.Context, exec sqlx.ExtContext, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = time.Now().UTC()
	}
	if holiday.Source == "" {
		holiday.Source = "manual"
	}
	const query = `INSERT INTO holidays (id, date, name, source, created_at)
VALUES (:id, :date, :name, :source, :created_at)
ON CONFLICT (date) DO UPDATE SET name = EXCLUDED.name, source = EXCLUDED.source`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, holiday); err != nil {
		return fmt.Errorf("upsert holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a holiday by id and reports whether a row was deleted.
func (r *CalendarRepository) DeleteHoliday(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete holiday: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete holiday: %w", err)
	}
	return n > 0, nil
}

// ListExamPeriods returns exam periods ordered by start date.
func (r *CalendarRepository) ListExamPeriods(ctx context.Context) ([]models.ExamPeriod, error) {
	var periods []models.ExamPeriod
	if err := r.db.SelectContext(ctx, &periods, `SELECT id, name, start_date, end_date FROM exam_periods ORDER BY start_date ASC`); err != nil {
		return nil, fmt.Errorf("list exam periods: %w", err)
	}
	return periods, nil
}

// CreateExamPeriod inserts an exam period.
func (r *CalendarRepository) CreateExamPeriod(ctx context.Context, period *models.ExamPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	const query = `INSERT INTO exam_periods (id, name, start_date, end_date) VALUES (:id, :name, :start_date, :end_date)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create exam period: %w", err)
	}
	return nil
}
