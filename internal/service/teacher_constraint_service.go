package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherConstraintWriter interface {
	Upsert(ctx context.Context, c models.TeacherConstraint) error
	Delete(ctx context.Context, teacherID string) error
}

type constraintSession interface {
	Constraint(teacherID string) (models.TeacherConstraint, bool, error)
	UpdateConstraint(ctx context.Context, c models.TeacherConstraint, save func(context.Context, models.TeacherConstraint) error) (models.TeacherConstraint, error)
	ResetConstraint(ctx context.Context, teacherID string, remove func(context.Context, string) error) (models.TeacherConstraint, error)
}

// TeacherConstraintService manages per-teacher availability and workload overrides.
type TeacherConstraintService struct {
	session   constraintSession
	repo      teacherConstraintWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherConstraintService constructs the service.
func NewTeacherConstraintService(session constraintSession, repo teacherConstraintWriter, validate *validator.Validate, logger *zap.Logger) *TeacherConstraintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherConstraintService{session: session, repo: repo, validator: validate, logger: logger}
}

// Get returns the effective constraint, which is the default when no override exists.
func (s *TeacherConstraintService) Get(teacherID string) (*dto.TeacherConstraintResponse, error) {
	c, override, err := s.session.Constraint(teacherID)
	if err != nil {
		return nil, err
	}
	return &dto.TeacherConstraintResponse{TeacherConstraint: c, IsDefault: !override}, nil
}

// Update stores an override for a teacher.
func (s *TeacherConstraintService) Update(ctx context.Context, teacherID string, req dto.TeacherConstraintRequest) (*dto.TeacherConstraintResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid constraint payload")
	}
	stored, err := s.session.UpdateConstraint(ctx, req.ToModel(teacherID), func(ctx context.Context, c models.TeacherConstraint) error {
		if err := s.repo.Upsert(ctx, c); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save teacher constraint")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("teacher constraint updated", zap.String("teacher_id", teacherID), zap.String("preference", string(stored.PreferenceLevel)))
	return &dto.TeacherConstraintResponse{TeacherConstraint: stored}, nil
}

// Reset removes an override and returns the default now in effect.
func (s *TeacherConstraintService) Reset(ctx context.Context, teacherID string) (*dto.TeacherConstraintResponse, error) {
	c, err := s.session.ResetConstraint(ctx, teacherID, func(ctx context.Context, id string) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher constraint")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("teacher constraint reset", zap.String("teacher_id", teacherID))
	return &dto.TeacherConstraintResponse{TeacherConstraint: c, IsDefault: true}, nil
}
