package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// CalendarRepository handles persistence of academic years and terms.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// FindActiveYear returns the academic year currently flagged active.
func (r *CalendarRepository) FindActiveYear(ctx context.Context) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years WHERE is_active = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindYearByID returns an academic year by its ID.
func (r *CalendarRepository) FindYearByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// ListYears returns all academic years newest first.
func (r *CalendarRepository) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years ORDER BY start_date DESC`
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// CreateYear persists a new academic year.
func (r *CalendarRepository) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt = now
	year.UpdatedAt = now
	const query = `INSERT INTO academic_years (id, name, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :name, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}
	return nil
}

// SetActiveYear marks the provided year as active and deactivates the rest
// within a single transaction.
func (r *CalendarRepository) SetActiveYear(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active year tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE academic_years SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate other years: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE academic_years SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate year: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active year tx: %w", err)
	}
	return nil
}

// FindActiveTerm returns the active term scoped to an academic year.
func (r *CalendarRepository) FindActiveTerm(ctx context.Context, yearID string) (*models.Term, error) {
	const query = `SELECT id, academic_year_id, name, ordinal, start_date, end_date, is_active, created_at, updated_at
        FROM terms WHERE academic_year_id = $1 AND is_active = TRUE LIMIT 1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, yearID); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindTermByID returns a term by its ID.
func (r *CalendarRepository) FindTermByID(ctx context.Context, id string) (*models.Term, error) {
	const query = `SELECT id, academic_year_id, name, ordinal, start_date, end_date, is_active, created_at, updated_at FROM terms WHERE id = $1`
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// ListTerms returns the terms of an academic year in ordinal order.
func (r *CalendarRepository) ListTerms(ctx context.Context, yearID string) ([]models.Term, error) {
	const query = `SELECT id, academic_year_id, name, ordinal, start_date, end_date, is_active, created_at, updated_at
        FROM terms WHERE academic_year_id = $1 ORDER BY ordinal ASC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, yearID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// CreateTerm persists a new term.
func (r *CalendarRepository) CreateTerm(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	term.CreatedAt = now
	term.UpdatedAt = now
	const query = `INSERT INTO terms (id, academic_year_id, name, ordinal, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :academic_year_id, :name, :ordinal, :start_date, :end_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// SetActiveTerm marks the provided term as active and deactivates its
// siblings within the same academic year, in a single transaction.
func (r *CalendarRepository) SetActiveTerm(ctx context.Context, id, yearID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active term tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_active = FALSE, updated_at = $1 WHERE academic_year_id = $2 AND is_active = TRUE AND id <> $3`, time.Now().UTC(), yearID, id); err != nil {
		return fmt.Errorf("deactivate other terms: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate term: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active term tx: %w", err)
	}
	return nil
}
