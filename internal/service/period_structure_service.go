package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/scheduling"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type periodStructureWriter interface {
	Save(ctx context.Context, structure models.PeriodStructure) error
}

type structureSession interface {
	Structure() (models.PeriodStructure, error)
	TimeMapping() (*dto.TimeMappingResponse, error)
	ReplaceStructure(ctx context.Context, mutate func(models.PeriodStructure) (models.PeriodStructure, error), save func(context.Context, models.PeriodStructure) error) (models.PeriodStructure, error)
}

// PeriodStructureService manages the shape of the teaching week.
type PeriodStructureService struct {
	session   structureSession
	repo      periodStructureWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodStructureService constructs the service.
func NewPeriodStructureService(session structureSession, repo periodStructureWriter, validate *validator.Validate, logger *zap.Logger) *PeriodStructureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodStructureService{session: session, repo: repo, validator: validate, logger: logger}
}

// Get returns the active structure.
func (s *PeriodStructureService) Get() (models.PeriodStructure, error) {
	return s.session.Structure()
}

// TimeMapping returns the resolved clock window of every period.
func (s *PeriodStructureService) TimeMapping() (*dto.TimeMappingResponse, error) {
	return s.session.TimeMapping()
}

// Update replaces the structure. Changes that would strand committed entries are refused.
func (s *PeriodStructureService) Update(ctx context.Context, req dto.PeriodStructureRequest) (models.PeriodStructure, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.PeriodStructure{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period structure payload")
	}
	next := req.ToModel()
	return s.session.ReplaceStructure(ctx, func(models.PeriodStructure) (models.PeriodStructure, error) {
		return next, nil
	}, s.save)
}

// AddBreak inserts a break, taking the first free slot when none is given.
func (s *PeriodStructureService) AddBreak(ctx context.Context, req dto.BreakRequest) (models.Break, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Break{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid break payload")
	}
	var added models.Break
	_, err := s.session.ReplaceStructure(ctx, func(current models.PeriodStructure) (models.PeriodStructure, error) {
		next, b, err := scheduling.AddBreak(current, models.Break{
			Name:            req.Name,
			AfterPeriod:     req.AfterPeriod,
			DurationMinutes: req.DurationMinutes,
		})
		added = b
		return next, err
	}, s.save)
	if err != nil {
		return models.Break{}, err
	}
	return added, nil
}

// RemoveBreak drops a break by id.
func (s *PeriodStructureService) RemoveBreak(ctx context.Context, id string) (models.PeriodStructure, error) {
	found := false
	structure, err := s.session.ReplaceStructure(ctx, func(current models.PeriodStructure) (models.PeriodStructure, error) {
		for _, b := range current.Breaks {
			if b.ID == id {
				found = true
			}
		}
		if !found {
			return current, appErrors.Clone(appErrors.ErrNotFound, "break not found")
		}
		return scheduling.RemoveBreak(current, id)
	}, s.save)
	if err != nil {
		return models.PeriodStructure{}, err
	}
	return structure, nil
}

func (s *PeriodStructureService) save(ctx context.Context, structure models.PeriodStructure) error {
	if err := s.repo.Save(ctx, structure); err != nil {
		s.logger.Error("failed to save period structure", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save period structure")
	}
	return nil
}
