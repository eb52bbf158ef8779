package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

const (
	cacheKeyActiveYear = "calendar:active_year"
	cacheKeyActiveTerm = "calendar:active_term:"
)

type calendarRepository interface {
	FindActiveYear(ctx context.Context) (*models.AcademicYear, error)
	FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error)
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	CreateYear(ctx context.Context, year *models.AcademicYear) error
	SetActiveYear(ctx context.Context, id string) error
	FindActiveTerm(ctx context.Context, yearID string) (*models.Term, error)
	FindTermByID(ctx context.Context, id string) (*models.Term, error)
	ListTerms(ctx context.Context, yearID string) ([]models.Term, error)
	CreateTerm(ctx context.Context, term *models.Term) error
	SetActiveTerm(ctx context.Context, id, yearID string) error
}

// CreateYearRequest describes payload for creating academic years.
type CreateYearRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CreateTermRequest describes payload for creating terms.
type CreateTermRequest struct {
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Ordinal        int       `json:"ordinal" validate:"required,min=1"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
}

// CalendarService owns the academic calendar registry: active year/term
// resolution (cached) and transactional activation.
type CalendarService struct {
	repo      calendarRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService. The redis client is
// optional; without it every lookup hits the store.
func NewCalendarService(repo calendarRepository, cache *redis.Client, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CalendarService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, validator: validate, logger: logger}
}

// GetActiveYear returns the active academic year. Absence is the typed
// ErrNoActiveYear outcome, an expected state for a freshly configured school.
func (s *CalendarService) GetActiveYear(ctx context.Context) (*models.AcademicYear, error) {
	if year := s.cachedYear(ctx); year != nil {
		return year, nil
	}
	year, err := s.repo.FindActiveYear(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveYear
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active year")
	}
	s.cacheSet(ctx, cacheKeyActiveYear, year)
	return year, nil
}

// GetActiveTerm returns the active term of a year, or ErrNoActiveTerm.
func (s *CalendarService) GetActiveTerm(ctx context.Context, yearID string) (*models.Term, error) {
	if term := s.cachedTerm(ctx, yearID); term != nil {
		return term, nil
	}
	term, err := s.repo.FindActiveTerm(ctx, yearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveTerm
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	s.cacheSet(ctx, cacheKeyActiveTerm+yearID, term)
	return term, nil
}

// ActiveContext resolves the current year and, when one is active, the term.
// A missing year propagates ErrNoActiveYear; a missing term leaves
// ctx.Term nil because term-less periods are a legal calendar state.
func (s *CalendarService) ActiveContext(ctx context.Context) (*models.ActiveContext, error) {
	year, err := s.GetActiveYear(ctx)
	if err != nil {
		return nil, err
	}
	active := &models.ActiveContext{Year: year}
	term, err := s.GetActiveTerm(ctx, year.ID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNoActiveTerm) {
			return active, nil
		}
		return nil, err
	}
	active.Term = term
	return active, nil
}

// CreateYear adds a new academic year (inactive; activation is explicit).
func (s *CalendarService) CreateYear(ctx context.Context, req CreateYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid year payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	year := &models.AcademicYear{Name: req.Name, StartDate: req.StartDate, EndDate: req.EndDate}
	if err := s.repo.CreateYear(ctx, year); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create year")
	}
	return year, nil
}

// GetYear returns an academic year by its ID.
func (s *CalendarService) GetYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.repo.FindYearByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year")
	}
	return year, nil
}

// ListYears returns all academic years.
func (s *CalendarService) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list years")
	}
	return years, nil
}

// ActivateYear flips the target year to active. Deactivation of the previous
// holder happens in the same store transaction as the activation.
func (s *CalendarService) ActivateYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	year, err := s.repo.FindYearByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year")
	}
	if err := s.repo.SetActiveYear(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate year")
	}
	year.IsActive = true
	s.invalidate(ctx, cacheKeyActiveYear)
	return year, nil
}

// CreateTerm adds a new term to a year (inactive; activation is explicit).
func (s *CalendarService) CreateTerm(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	if _, err := s.repo.FindYearByID(ctx, req.AcademicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year")
	}
	term := &models.Term{
		AcademicYearID: req.AcademicYearID,
		Name:           req.Name,
		Ordinal:        req.Ordinal,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := s.repo.CreateTerm(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// ListTerms returns the terms of an academic year.
func (s *CalendarService) ListTerms(ctx context.Context, yearID string) ([]models.Term, error) {
	terms, err := s.repo.ListTerms(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// ActivateTerm flips the target term to active within its year, deactivating
// siblings in the same transaction.
func (s *CalendarService) ActivateTerm(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindTermByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if err := s.repo.SetActiveTerm(ctx, id, term.AcademicYearID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	term.IsActive = true
	s.invalidate(ctx, cacheKeyActiveTerm+term.AcademicYearID)
	return term, nil
}

func (s *CalendarService) cachedYear(ctx context.Context) *models.AcademicYear {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKeyActiveYear).Bytes()
	if err != nil {
		s.metrics.RecordCacheOperation(false)
		return nil
	}
	var year models.AcademicYear
	if err := json.Unmarshal(raw, &year); err != nil {
		return nil
	}
	s.metrics.RecordCacheOperation(true)
	return &year
}

func (s *CalendarService) cachedTerm(ctx context.Context, yearID string) *models.Term {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKeyActiveTerm+yearID).Bytes()
	if err != nil {
		s.metrics.RecordCacheOperation(false)
		return nil
	}
	var term models.Term
	if err := json.Unmarshal(raw, &term); err != nil {
		return nil
	}
	s.metrics.RecordCacheOperation(true)
	return &term
}

func (s *CalendarService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("calendar cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CalendarService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("calendar cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
