package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/events"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const conflictCachePrefix = "timetable:conflicts:"

type timetableEntryRepository interface {
	ListByWeek(ctx context.Context, week string) ([]models.TimetableEntry, error)
	ApplyChanges(ctx context.Context, exec sqlx.ExtContext, changes []scheduling.Change) error
	ListOutsideStructure(ctx context.Context, workingDays []string, periodsPerDay int) ([]models.TimetableEntry, error)
}

type teacherLoadReader interface {
	List(ctx context.Context) ([]models.TeacherLoad, error)
}

type teacherConstraintReader interface {
	List(ctx context.Context) ([]models.TeacherConstraint, error)
}

type facilityReader interface {
	List(ctx context.Context) ([]models.Facility, error)
}

type periodStructureReader interface {
	Get(ctx context.Context) (*models.PeriodStructure, error)
}

type calendarReader interface {
	AllHolidays(ctx context.Context) ([]models.Holiday, error)
	ListExamPeriods(ctx context.Context) ([]models.ExamPeriod, error)
}

type conflictCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableConfig governs the scheduling session.
type TimetableConfig struct {
	HistoryLimit     int
	DefaultStructure models.PeriodStructure
	ConflictCacheTTL time.Duration
}

// WeekView is a consistent copy of one week used for rendering.
type WeekView struct {
	WeekStart   string
	Structure   models.PeriodStructure
	TimeMapping map[int]models.PeriodTime
	Entries     []models.TimetableEntry
	Roster      []models.TeacherLoad
}

// TimetableService owns the scheduling session. Every committed action is written
// through to PostgreSQL before the call returns; a failed write reverts the session.
type TimetableService struct {
	mu      sync.Mutex
	session *scheduling.Session

	entries     timetableEntryRepository
	loads       teacherLoadReader
	constraints teacherConstraintReader
	facilities  facilityReader
	structures  periodStructureReader
	calendar    calendarReader
	cache       conflictCache
	publisher   events.Publisher
	metrics     *MetricsService
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         TimetableConfig
}

// NewTimetableService wires timetable dependencies. Call Load before serving requests.
func NewTimetableService(
	entries timetableEntryRepository,
	loads teacherLoadReader,
	constraints teacherConstraintReader,
	facilities facilityReader,
	structures periodStructureReader,
	calendar calendarReader,
	cache conflictCache,
	publisher events.Publisher,
	metrics *MetricsService,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCacheService(nil, metrics, cfg.ConflictCacheTTL, logger, false)
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TimetableService{
		entries:     entries,
		loads:       loads,
		constraints: constraints,
		facilities:  facilities,
		structures:  structures,
		calendar:    calendar,
		cache:       cache,
		publisher:   publisher,
		metrics:     metrics,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Load reads master data and starts a fresh session. Opened weeks and history are dropped.
func (s *TimetableService) Load(ctx context.Context) error {
	data, err := s.loadMasterData(ctx)
	if err != nil {
		return err
	}
	session, err := scheduling.NewSession(data, scheduling.SessionOptions{HistoryLimit: s.cfg.HistoryLimit})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "stored period structure is invalid")
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	s.logger.Info("timetable session loaded",
		zap.Int("teachers", len(data.Loads)),
		zap.Int("constraints", len(data.Constraints)),
		zap.Int("facilities", len(data.Facilities)),
		zap.Int("holidays", len(data.Holidays)),
	)
	return nil
}

func (s *TimetableService) loadMasterData(ctx context.Context) (scheduling.MasterData, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("timetable_master_data", time.Since(start)) }()

	data := scheduling.MasterData{Structure: s.cfg.DefaultStructure}
	stored, err := s.structures.Get(ctx)
	switch {
	case err == nil:
		data.Structure = *stored
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Info("no stored period structure, using defaults")
	default:
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period structure")
	}

	if data.Loads, err = s.loads.List(ctx); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher roster")
	}
	if data.Constraints, err = s.constraints.List(ctx); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher constraints")
	}
	if data.Facilities, err = s.facilities.List(ctx); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facilities")
	}
	if data.Holidays, err = s.calendar.AllHolidays(ctx); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}
	if data.ExamPeriods, err = s.calendar.ListExamPeriods(ctx); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam periods")
	}
	return data, nil
}

// Ready reports whether Load has completed.
func (s *TimetableService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Structure returns the active period structure.
func (s *TimetableService) Structure() (models.PeriodStructure, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return models.PeriodStructure{}, err
	}
	defer unlock()
	return session.Structure(), nil
}

// TimeMapping resolves the clock window of every period.
func (s *TimetableService) TimeMapping() (*dto.TimeMappingResponse, error) {
	structure, err := s.Structure()
	if err != nil {
		return nil, err
	}
	mapping, err := scheduling.ResolvedTimeMapping(structure)
	if err != nil {
		return nil, s.translate(err)
	}
	return &dto.TimeMappingResponse{
		PeriodsPerDay: structure.PeriodsPerDay,
		Generated:     !structure.UseTimeMapping,
		Periods:       mapping,
	}, nil
}

// ReplaceStructure derives a new structure from the current one and persists it with
// save. Stored entries of weeks that are not opened are checked against the new grid as
// well. The previous structure is restored when the check or save fails.
func (s *TimetableService) ReplaceStructure(
	ctx context.Context,
	mutate func(models.PeriodStructure) (models.PeriodStructure, error),
	save func(context.Context, models.PeriodStructure) error,
) (models.PeriodStructure, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return models.PeriodStructure{}, err
	}
	defer unlock()

	prev := session.Structure()
	next, err := mutate(prev)
	if err != nil {
		return models.PeriodStructure{}, s.translate(err)
	}
	applied, err := session.SetStructure(next)
	if err != nil {
		return models.PeriodStructure{}, s.translate(err)
	}
	restore := func() {
		if _, restoreErr := session.SetStructure(prev); restoreErr != nil {
			s.logger.Error("failed to restore period structure", zap.Error(restoreErr))
		}
	}
	stored, err := s.entries.ListOutsideStructure(ctx, applied.WorkingDays, applied.PeriodsPerDay)
	if err != nil {
		restore()
		s.logger.Error("failed to check stored entries against structure", zap.Error(err))
		return models.PeriodStructure{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check stored entries")
	}
	if len(stored) > 0 {
		restore()
		return models.PeriodStructure{}, s.translate(&scheduling.OrphanedEntriesError{Entries: stored})
	}
	if err := save(ctx, applied); err != nil {
		restore()
		return models.PeriodStructure{}, err
	}
	s.logger.Info("period structure updated",
		zap.Int("periods_per_day", applied.PeriodsPerDay),
		zap.Strings("working_days", applied.WorkingDays),
		zap.Int("breaks", len(applied.Breaks)),
	)
	return applied, nil
}

// Constraint returns the effective constraint of a teacher and whether it is an override.
func (s *TimetableService) Constraint(teacherID string) (models.TeacherConstraint, bool, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return models.TeacherConstraint{}, false, err
	}
	defer unlock()
	if err := requireTeacher(session, teacherID); err != nil {
		return models.TeacherConstraint{}, false, err
	}
	c, override := session.Constraint(teacherID)
	return c, override, nil
}

// UpdateConstraint validates and stores an override, persisting it with save.
func (s *TimetableService) UpdateConstraint(
	ctx context.Context,
	c models.TeacherConstraint,
	save func(context.Context, models.TeacherConstraint) error,
) (models.TeacherConstraint, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return models.TeacherConstraint{}, err
	}
	defer unlock()
	if err := requireTeacher(session, c.TeacherID); err != nil {
		return models.TeacherConstraint{}, err
	}

	prev, hadOverride := session.Constraint(c.TeacherID)
	stored, err := session.SetConstraint(c)
	if err != nil {
		return models.TeacherConstraint{}, s.translate(err)
	}
	if err := save(ctx, stored); err != nil {
		restoreConstraint(session, prev, hadOverride)
		return models.TeacherConstraint{}, err
	}
	return stored, nil
}

// ResetConstraint drops an override and returns the default now in effect.
func (s *TimetableService) ResetConstraint(
	ctx context.Context,
	teacherID string,
	remove func(context.Context, string) error,
) (models.TeacherConstraint, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return models.TeacherConstraint{}, err
	}
	defer unlock()
	if err := requireTeacher(session, teacherID); err != nil {
		return models.TeacherConstraint{}, err
	}

	prev, hadOverride := session.Constraint(teacherID)
	session.ResetConstraint(teacherID)
	if err := remove(ctx, teacherID); err != nil {
		restoreConstraint(session, prev, hadOverride)
		return models.TeacherConstraint{}, err
	}
	c, _ := session.Constraint(teacherID)
	return c, nil
}

func restoreConstraint(session *scheduling.Session, prev models.TeacherConstraint, hadOverride bool) {
	if hadOverride {
		_, _ = session.SetConstraint(prev)
		return
	}
	session.ResetConstraint(prev.TeacherID)
}

func requireTeacher(session *scheduling.Session, teacherID string) error {
	for _, load := range session.Roster() {
		if load.TeacherID == teacherID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
}

// RefreshCalendar swaps the holiday and exam calendar used for validation and copying.
func (s *TimetableService) RefreshCalendar(holidays []models.Holiday, exams []models.ExamPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	s.session.SetCalendar(holidays, exams)
}

// Entries lists the entries of a week, optionally narrowed to a teacher or batch.
func (s *TimetableService) Entries(ctx context.Context, week, teacherID, batchID string) ([]models.TimetableEntry, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	entries, err := session.Entries(key, scheduling.SlotFilter{TeacherID: teacherID, BatchID: batchID})
	if err != nil {
		return nil, s.translate(err)
	}
	return entries, nil
}

// EligibleBatches lists the batches a teacher may take in a cell.
func (s *TimetableService) EligibleBatches(ctx context.Context, week string, query dto.EligibilityQuery) ([]scheduling.Option, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eligibility query")
	}
	if query.TeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher_id is required")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	options, err := session.EligibleBatches(key, query.TeacherID, query.Day, query.PeriodNumber)
	if err != nil {
		return nil, s.translate(err)
	}
	return options, nil
}

// EligibleTeachers lists the teachers that may teach a batch in a cell.
func (s *TimetableService) EligibleTeachers(ctx context.Context, week string, query dto.EligibilityQuery) ([]scheduling.Option, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eligibility query")
	}
	if query.BatchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch_id is required")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	options, err := session.EligibleTeachers(key, query.BatchID, query.Day, query.PeriodNumber)
	if err != nil {
		return nil, s.translate(err)
	}
	return options, nil
}

// Assign validates and commits a new placement.
func (s *TimetableService) Assign(ctx context.Context, week string, req dto.AssignEntryRequest) (*dto.PlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	placement, action, err := session.Assign(key, req.Candidate())
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.commit(ctx, session, action); err != nil {
		return nil, err
	}
	return placementResponse(session, placement, action), nil
}

// Replace swaps an entry for a new validated placement.
func (s *TimetableService) Replace(ctx context.Context, week, id string, req dto.AssignEntryRequest) (*dto.PlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	placement, action, err := session.Replace(key, id, req.Candidate())
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.commit(ctx, session, action); err != nil {
		return nil, err
	}
	return placementResponse(session, placement, action), nil
}

// Move relocates an entry to another cell as one action.
func (s *TimetableService) Move(ctx context.Context, week, id string, req dto.MoveEntryRequest) (*dto.PlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	placement, action, err := session.Move(key, id, req.Day, req.PeriodNumber)
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.commit(ctx, session, action); err != nil {
		return nil, err
	}
	return placementResponse(session, placement, action), nil
}

// Remove deletes an entry.
func (s *TimetableService) Remove(ctx context.Context, week, id string) (*dto.ActionResponse, error) {
	return s.mutate(ctx, week, func(session *scheduling.Session, key string) (scheduling.Action, error) {
		return session.Remove(key, id)
	})
}

// Substitute records a substitute teacher on an entry.
func (s *TimetableService) Substitute(ctx context.Context, week, id string, req dto.SubstituteRequest) (*dto.ActionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution payload")
	}
	return s.mutate(ctx, week, func(session *scheduling.Session, key string) (scheduling.Action, error) {
		return session.Substitute(key, id, req.SubstituteTeacherID, req.SubstituteTeacherName)
	})
}

// ClearSubstitution returns an entry to its regular teacher.
func (s *TimetableService) ClearSubstitution(ctx context.Context, week, id string) (*dto.ActionResponse, error) {
	return s.mutate(ctx, week, func(session *scheduling.Session, key string) (scheduling.Action, error) {
		return session.ClearSubstitution(key, id)
	})
}

// Import bulk-loads entries without clash screening. Clashes surface in Conflicts.
func (s *TimetableService) Import(ctx context.Context, week string, req dto.ImportEntriesRequest) (*dto.ActionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	return s.mutate(ctx, week, func(session *scheduling.Session, key string) (scheduling.Action, error) {
		return session.Import(key, req.ToModels(), req.Description)
	})
}

func (s *TimetableService) mutate(ctx context.Context, week string, fn func(*scheduling.Session, string) (scheduling.Action, error)) (*dto.ActionResponse, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	action, err := fn(session, key)
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.commit(ctx, session, action); err != nil {
		return nil, err
	}
	return &dto.ActionResponse{Action: dto.NewActionSummary(action), History: session.HistoryState()}, nil
}

// CopyWeek replicates a week onto target weeks as one undoable action.
func (s *TimetableService) CopyWeek(ctx context.Context, week string, req dto.CopyWeekRequest) (*dto.CopyWeekResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid copy payload")
	}
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	for _, target := range req.TargetWeeks {
		if _, err := s.openWeek(ctx, session, target); err != nil {
			return nil, err
		}
	}

	result, action, err := session.CopyWeek(key, req.TargetWeeks, req.Options())
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.commit(ctx, session, action); err != nil {
		return nil, err
	}

	resp := &dto.CopyWeekResponse{
		Weeks:   make([]dto.CopiedWeek, 0, len(result.Weeks)),
		Staged:  result.StagedCount(),
		Skipped: result.Skipped,
		History: session.HistoryState(),
	}
	for _, w := range result.Weeks {
		resp.Weeks = append(resp.Weeks, dto.CopiedWeek{WeekStart: w.WeekStart, Staged: len(w.Staged), Replaced: len(w.Replaced)})
	}
	if resp.Skipped == nil {
		resp.Skipped = []scheduling.SkippedEntry{}
	}
	if !action.Empty() {
		resp.Action = dto.NewActionSummary(action)
	}
	s.logger.Info("week copied",
		zap.String("week", key),
		zap.Strings("targets", req.TargetWeeks),
		zap.Int("staged", resp.Staged),
		zap.Int("skipped", len(resp.Skipped)),
	)
	return resp, nil
}

// Undo reverts the latest action. Applied is false when there was nothing to undo.
func (s *TimetableService) Undo(ctx context.Context) (*dto.HistoryStepResponse, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	action, ok, err := session.Undo()
	if err != nil {
		return nil, s.translate(err)
	}
	if !ok {
		return &dto.HistoryStepResponse{History: session.HistoryState()}, nil
	}
	if err := s.persist(ctx, action); err != nil {
		if _, _, redoErr := session.Redo(); redoErr != nil {
			s.logger.Error("failed to restore undone action", zap.String("action", action.ID), zap.Error(redoErr))
		}
		return nil, err
	}
	s.afterCommit(ctx, action)
	return &dto.HistoryStepResponse{Applied: true, Action: dto.NewActionSummary(action), History: session.HistoryState()}, nil
}

// Redo reapplies the most recently undone action.
func (s *TimetableService) Redo(ctx context.Context) (*dto.HistoryStepResponse, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	action, ok, err := session.Redo()
	if err != nil {
		return nil, s.translate(err)
	}
	if !ok {
		return &dto.HistoryStepResponse{History: session.HistoryState()}, nil
	}
	if err := s.persist(ctx, action); err != nil {
		if _, _, undoErr := session.Undo(); undoErr != nil {
			s.logger.Error("failed to revert redone action", zap.String("action", action.ID), zap.Error(undoErr))
		}
		return nil, err
	}
	s.afterCommit(ctx, action)
	return &dto.HistoryStepResponse{Applied: true, Action: dto.NewActionSummary(action), History: session.HistoryState()}, nil
}

// History reports the undo/redo stacks.
func (s *TimetableService) History() (scheduling.HistoryState, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return scheduling.HistoryState{}, err
	}
	defer unlock()
	return session.HistoryState(), nil
}

// Conflicts runs the conflict detector over a week, caching the report until the week changes.
func (s *TimetableService) Conflicts(ctx context.Context, week string) ([]models.Conflict, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}

	cacheKey := conflictCachePrefix + key
	var cached []models.Conflict
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	conflicts, err := session.Conflicts(key)
	if err != nil {
		return nil, s.translate(err)
	}
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	_ = s.cache.Set(ctx, cacheKey, conflicts, s.cfg.ConflictCacheTTL)
	return conflicts, nil
}

// LoadSummaries reports per-teacher workload for a week.
func (s *TimetableService) LoadSummaries(ctx context.Context, week string) ([]models.TeacherLoadSummary, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	summaries, err := session.LoadSummaries(key)
	if err != nil {
		return nil, s.translate(err)
	}
	return summaries, nil
}

// Week returns a copy of one week together with the structure needed to draw it.
func (s *TimetableService) Week(ctx context.Context, week string) (*WeekView, error) {
	session, unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	key, err := s.openWeek(ctx, session, week)
	if err != nil {
		return nil, err
	}
	entries, err := session.Entries(key, scheduling.SlotFilter{})
	if err != nil {
		return nil, s.translate(err)
	}
	structure := session.Structure()
	mapping, err := scheduling.ResolvedTimeMapping(structure)
	if err != nil {
		return nil, s.translate(err)
	}
	return &WeekView{
		WeekStart:   key,
		Structure:   structure,
		TimeMapping: mapping,
		Entries:     entries,
		Roster:      session.Roster(),
	}, nil
}

func (s *TimetableService) lock() (*scheduling.Session, func(), error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, nil, appErrors.Clone(appErrors.ErrUnavailable, "timetable session is not loaded")
	}
	return s.session, s.mu.Unlock, nil
}

// openWeek loads a week from storage the first time it is touched.
func (s *TimetableService) openWeek(ctx context.Context, session *scheduling.Session, week string) (string, error) {
	start, err := scheduling.ParseWeek(week)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week, expected YYYY-MM-DD")
	}
	key := scheduling.WeekKey(start)
	if session.IsOpen(key) {
		return key, nil
	}

	begin := time.Now()
	entries, err := s.entries.ListByWeek(ctx, key)
	s.metrics.ObserveDBQuery("timetable_entries_by_week", time.Since(begin))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	if _, err := session.OpenWeek(key, entries); err != nil {
		return "", s.translate(err)
	}
	s.logger.Debug("week opened", zap.String("week", key), zap.Int("entries", len(entries)))
	return key, nil
}

func (s *TimetableService) commit(ctx context.Context, session *scheduling.Session, action scheduling.Action) error {
	if action.Empty() {
		return nil
	}
	if err := s.persist(ctx, action); err != nil {
		if _, rbErr := session.Rollback(action.ID); rbErr != nil {
			s.logger.Error("failed to roll back unpersisted action", zap.String("action", action.ID), zap.Error(rbErr))
		}
		return err
	}
	s.afterCommit(ctx, action)
	return nil
}

func (s *TimetableService) persist(ctx context.Context, action scheduling.Action) (err error) {
	start := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.entries.ApplyChanges(ctx, tx, action.Changes); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable changes")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable changes")
		return err
	}
	s.metrics.ObserveDBQuery("timetable_apply_changes", time.Since(start))
	return nil
}

// afterCommit runs the side effects of a persisted action. None of them can fail the action.
func (s *TimetableService) afterCommit(ctx context.Context, action scheduling.Action) {
	weeks := action.Weeks()
	for _, week := range weeks {
		_ = s.cache.Invalidate(ctx, conflictCachePrefix+week)
	}
	s.metrics.RecordAction(string(action.Kind))
	if err := s.publisher.Publish(ctx, events.FromAction(action)); err != nil {
		s.metrics.RecordEventFailure()
		s.logger.Warn("failed to publish timetable change", zap.String("action", action.ID), zap.Error(err))
	}
	s.logger.Info("timetable action committed",
		zap.String("action", action.ID),
		zap.String("kind", string(action.Kind)),
		zap.Strings("weeks", weeks),
	)
}

func (s *TimetableService) translate(err error) error {
	var (
		rejection *scheduling.Rejection
		cfgErr    *scheduling.ConfigError
		orphans   *scheduling.OrphanedEntriesError
		appErr    *appErrors.Error
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &rejection):
		s.metrics.RecordRejection(string(rejection.Reason))
		base := appErrors.ErrValidation
		if rejection.IsClash() {
			base = appErrors.ErrConflict
		}
		return appErrors.WithDetails(appErrors.Wrap(err, base.Code, base.Status, rejection.Message), rejection)
	case errors.As(err, &cfgErr):
		return appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, cfgErr.Error()), cfgErr)
	case errors.As(err, &orphans):
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, orphans.Error()),
			map[string]interface{}{"orphaned": orphans.Entries},
		)
	case errors.Is(err, scheduling.ErrEntryNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "timetable entry not found")
	case errors.Is(err, scheduling.ErrUnknownWeek):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "week not found")
	case errors.Is(err, scheduling.ErrDuplicateEntryID):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable entry id already in use")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable operation failed")
	}
}

func placementResponse(session *scheduling.Session, placement scheduling.Placement, action scheduling.Action) *dto.PlacementResponse {
	hints := placement.Hints
	if hints == nil {
		hints = []scheduling.Hint{}
	}
	return &dto.PlacementResponse{
		Entry:   placement.Entry,
		Hints:   hints,
		Action:  dto.NewActionSummary(action),
		History: session.HistoryState(),
	}
}
