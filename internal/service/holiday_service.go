package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	icsMaxFileSize   = 5 * 1024 * 1024
	icsSource        = "ics"
	maxHolidaySpread = 31
)

type holidayRepository interface {
	ListHolidays(ctx context.Context, filter repository.HolidayFilter) ([]models.Holiday, int, error)
	AllHolidays(ctx context.Context) ([]models.Holiday, error)
	UpsertHoliday(ctx context.Context, exec sqlx.ExtContext, holiday *models.Holiday) error
	DeleteHoliday(ctx context.Context, id string) (bool, error)
	ListExamPeriods(ctx context.Context) ([]models.ExamPeriod, error)
	CreateExamPeriod(ctx context.Context, period *models.ExamPeriod) error
}

type calendarSession interface {
	RefreshCalendar(holidays []models.Holiday, exams []models.ExamPeriod)
}

// HolidayServiceConfig tunes calendar handling.
type HolidayServiceConfig struct {
	Location     *time.Location
	FetchTimeout time.Duration
}

// HolidayService manages holidays and exam periods and keeps the scheduling calendar in sync.
type HolidayService struct {
	repo      holidayRepository
	session   calendarSession
	tx        txProvider
	client    *http.Client
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
}

// NewHolidayService constructs the service. A nil client gets one bounded by cfg.FetchTimeout.
func NewHolidayService(repo holidayRepository, session calendarSession, tx txProvider, client *http.Client, validate *validator.Validate, logger *zap.Logger, cfg HolidayServiceConfig) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &HolidayService{repo: repo, session: session, tx: tx, client: client, validator: validate, logger: logger, loc: cfg.Location}
}

// List returns a page of holidays.
func (s *HolidayService) List(ctx context.Context, query dto.HolidayListQuery) ([]models.Holiday, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday query")
	}
	filter := repository.HolidayFilter{Page: query.Page, PageSize: query.PageSize}
	if query.From != "" {
		from, _ := time.Parse(time.DateOnly, query.From)
		filter.From = &from
	}
	if query.To != "" {
		to, _ := time.Parse(time.DateOnly, query.To)
		filter.To = &to
	}
	holidays, total, err := s.repo.ListHolidays(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	return holidays, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create adds a holiday, renaming the existing one on the same date.
func (s *HolidayService) Create(ctx context.Context, req dto.HolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	holiday := &models.Holiday{Date: date, Name: strings.TrimSpace(req.Name)}
	if err := s.repo.UpsertHoliday(ctx, nil, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save holiday")
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return holiday, nil
}

// Delete removes a holiday.
func (s *HolidayService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteHoliday(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
	}
	return s.Sync(ctx)
}

// ExamPeriods lists exam periods.
func (s *HolidayService) ExamPeriods(ctx context.Context) ([]models.ExamPeriod, error) {
	periods, err := s.repo.ListExamPeriods(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam periods")
	}
	return periods, nil
}

// CreateExamPeriod adds an inclusive exam date range.
func (s *HolidayService) CreateExamPeriod(ctx context.Context, req dto.ExamPeriodRequest) (*models.ExamPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam period payload")
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	period := &models.ExamPeriod{Name: strings.TrimSpace(req.Name), StartDate: start, EndDate: end}
	if err := s.repo.CreateExamPeriod(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save exam period")
	}
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return period, nil
}

// Import reads an iCalendar feed, from the request body or a URL, and upserts one
// holiday per event day in a single transaction.
func (s *HolidayService) Import(ctx context.Context, req dto.ImportHolidaysRequest) (result *dto.ImportHolidaysResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday import payload")
	}

	var reader io.Reader = strings.NewReader(req.Calendar)
	if req.URL != "" {
		body, fetchErr := s.fetch(ctx, req.URL)
		if fetchErr != nil {
			return nil, fetchErr
		}
		defer body.Close()
		reader = io.LimitReader(body, icsMaxFileSize)
	}

	holidays, skipped, err := ParseHolidayCalendar(reader, s.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid iCalendar data")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for i := range holidays {
		if err = s.repo.UpsertHoliday(ctx, tx, &holidays[i]); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save imported holiday")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit holiday import")
		return nil, err
	}
	if err = s.Sync(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("holidays imported", zap.Int("imported", len(holidays)), zap.Int("skipped", skipped))
	return &dto.ImportHolidaysResponse{Imported: len(holidays), Skipped: skipped, Holidays: holidays}, nil
}

// Sync reloads the calendar into the scheduling session.
func (s *HolidayService) Sync(ctx context.Context) error {
	holidays, err := s.repo.AllHolidays(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload holidays")
	}
	exams, err := s.repo.ListExamPeriods(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload exam periods")
	}
	s.session.RefreshCalendar(holidays, exams)
	return nil
}

func (s *HolidayService) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	target := rawURL
	if strings.HasPrefix(target, "webcal://") {
		target = "https://" + strings.TrimPrefix(target, "webcal://")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar URL")
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to fetch calendar")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, appErrors.Clone(appErrors.ErrUnavailable, fmt.Sprintf("failed to fetch calendar: HTTP %d", resp.StatusCode))
	}
	return resp.Body, nil
}

// ParseHolidayCalendar converts VEVENTs into holidays, one per covered day. An all-day
// event's DTEND is exclusive. Events without a summary or start date are skipped and
// counted. The result is ordered by date with duplicates collapsed.
func ParseHolidayCalendar(r io.Reader, loc *time.Location) ([]models.Holiday, int, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse calendar: %w", err)
	}

	byDate := make(map[string]models.Holiday)
	skipped := 0
	for _, evt := range cal.Events() {
		summaryProp := evt.GetProperty(ics.ComponentPropertySummary)
		if summaryProp == nil || strings.TrimSpace(summaryProp.Value) == "" {
			skipped++
			continue
		}
		start, allDay, err := eventDate(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			skipped++
			continue
		}
		end := start
		if last, endAllDay, err := eventDate(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
			if endAllDay || allDay {
				last = last.AddDate(0, 0, -1)
			}
			if last.After(start) {
				end = last
			}
		}
		if end.Sub(start) > maxHolidaySpread*24*time.Hour {
			skipped++
			continue
		}
		name := strings.TrimSpace(summaryProp.Value)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			key := d.Format(time.DateOnly)
			if _, exists := byDate[key]; exists {
				continue
			}
			byDate[key] = models.Holiday{Date: d, Name: name, Source: icsSource}
		}
	}

	out := make([]models.Holiday, 0, len(byDate))
	for _, h := range byDate {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, skipped, nil
}

// eventDate returns the calendar day of a date or date-time property in UTC midnight form.
func eventDate(evt *ics.VEvent, prop ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	p := evt.GetProperty(prop)
	if p == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", prop)
	}
	val := strings.TrimSpace(p.Value)
	if t, err := time.Parse("20060102", val); err == nil {
		return t, true, nil
	}

	tz := loc
	for k, v := range p.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			if l, err := time.LoadLocation(v[0]); err == nil {
				tz = l
			}
		}
	}
	var t time.Time
	var err error
	if strings.HasSuffix(val, "Z") {
		t, err = time.Parse("20060102T150405Z", val)
	} else {
		t, err = time.ParseInLocation("20060102T150405", val, tz)
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", prop, err)
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), false, nil
}
