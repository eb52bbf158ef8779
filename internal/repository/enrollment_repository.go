package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jkimaru/registrar-api/internal/models"
)

// EnrollmentRepository handles persistence of year enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Upsert inserts or refreshes the enrollment for (student, year). The unique
// key on that pair collapses concurrent registration retries to one row.
func (r *EnrollmentRepository) Upsert(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO enrollments (id, student_id, class_id, academic_year_id, status, enrolled_at, updated_at)
        VALUES (:id, :student_id, :class_id, :academic_year_id, :status, :enrolled_at, :updated_at)
        ON CONFLICT (student_id, academic_year_id)
        DO UPDATE SET class_id = EXCLUDED.class_id, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

// FindByStudentAndYear returns the enrollment row for (student, year).
func (r *EnrollmentRepository) FindByStudentAndYear(ctx context.Context, studentID, yearID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, academic_year_id, status, enrolled_at, updated_at
        FROM enrollments WHERE student_id = $1 AND academic_year_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, yearID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, academic_year_id, status, enrolled_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateStatus transitions an enrollment's lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListByYear returns enrollments for an academic year, optionally filtered
// by class.
func (r *EnrollmentRepository) ListByYear(ctx context.Context, yearID, classID string) ([]models.Enrollment, error) {
	query := `SELECT id, student_id, class_id, academic_year_id, status, enrolled_at, updated_at FROM enrollments WHERE academic_year_id = $1`
	args := []interface{}{yearID}
	if classID != "" {
		query += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, classID)
	}
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}
