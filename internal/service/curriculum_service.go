package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type curriculumRepository interface {
	ListCore(ctx context.Context, level models.CurriculumLevel) ([]models.CurriculumSubject, error)
	ListByStream(ctx context.Context, stream string) ([]models.CurriculumSubject, error)
	ListByLevel(ctx context.Context, level models.CurriculumLevel) ([]models.CurriculumSubject, error)
}

// CurriculumService resolves the subject set a student must or may enroll in.
type CurriculumService struct {
	repo   curriculumRepository
	logger *zap.Logger
}

// NewCurriculumService constructs CurriculumService.
func NewCurriculumService(repo curriculumRepository, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{repo: repo, logger: logger}
}

// ResolveSubjects computes the subjects for a grade level and optional
// stream. Core compulsory subjects are non-optional; stream subjects are
// flagged optional. A stream-fetch failure degrades the result to core-only
// and is reported through the returned warning, not as an error. An empty
// result is a valid outcome, distinct from a lookup failure.
func (s *CurriculumService) ResolveSubjects(ctx context.Context, gradeLevel int, stream *string) ([]models.ResolvedSubject, string, error) {
	level := models.LevelForGrade(gradeLevel)

	core, err := s.repo.ListCore(ctx, level)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load core subjects")
	}

	resolved := make([]models.ResolvedSubject, 0, len(core))
	seen := make(map[string]bool, len(core))
	for _, subject := range core {
		resolved = append(resolved, models.ResolvedSubject{
			SubjectID:   subject.SubjectID,
			SubjectName: subject.SubjectName,
			IsOptional:  false,
			Requirement: models.RequirementCore,
		})
		seen[subject.SubjectID] = true
	}

	warning := ""
	if level == models.CurriculumLevelSenior && stream != nil && *stream != "" {
		streamSubjects, err := s.repo.ListByStream(ctx, *stream)
		if err != nil {
			// Core enrollment must not be aborted by a stream lookup failure.
			warning = "stream subjects unavailable, enrolled in core subjects only"
			s.logger.Warn("stream subject lookup failed",
				zap.String("stream", *stream),
				zap.Error(err))
		} else {
			for _, subject := range streamSubjects {
				if seen[subject.SubjectID] {
					continue
				}
				resolved = append(resolved, models.ResolvedSubject{
					SubjectID:   subject.SubjectID,
					SubjectName: subject.SubjectName,
					IsOptional:  true,
					Requirement: models.RequirementStream,
				})
				seen[subject.SubjectID] = true
			}
		}
	}

	return resolved, warning, nil
}

// ListCurriculum returns the configured curriculum of a band.
func (s *CurriculumService) ListCurriculum(ctx context.Context, level models.CurriculumLevel) ([]models.CurriculumSubject, error) {
	if level != models.CurriculumLevelJunior && level != models.CurriculumLevelSenior {
		return nil, appErrors.Clone(appErrors.ErrValidation, "level must be junior or senior")
	}
	subjects, err := s.repo.ListByLevel(ctx, level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculum")
	}
	return subjects, nil
}
